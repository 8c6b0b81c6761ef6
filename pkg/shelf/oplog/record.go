// Package oplog is the durable, undoable log of every filesystem action
// shelf has applied.
//
// Records are created once by the executor and afterwards change in a
// single way: the undo engine stamps UndoneAt. A record that is already
// undone can never be stamped again, which makes undo one-shot.
//
// Two backends implement Store: an embedded badger database (the default)
// and a SQLite database with embedded migrations.
package oplog

import (
	"fmt"
	"time"

	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

// OpType is the kind of operation a record describes.
type OpType string

// Operation types.
const (
	OpMove    OpType = "move"
	OpCopy    OpType = "copy"
	OpDelete  OpType = "delete"
	OpArchive OpType = "archive"
	OpRename  OpType = "rename"
)

// ParseOpType validates s as an operation type.
func ParseOpType(s string) (OpType, error) {
	switch t := OpType(s); t {
	case OpMove, OpCopy, OpDelete, OpArchive, OpRename:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown operation type %q", types.ErrValidation, s)
	}
}

// Record is one applied filesystem action.
type Record struct {
	// ID increases monotonically; it is assigned by Store.Insert.
	ID   int64  `json:"id"`
	Type OpType `json:"type"`

	Source string `json:"source"`

	// Destination is the new location, the trash path for soft deletes,
	// or empty for permanent deletes.
	Destination string `json:"destination,omitempty"`

	RuleName   string   `json:"rule_name,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UndoneAt  *time.Time `json:"undone_at,omitempty"`

	// BatchID groups records written by one batch execution.
	BatchID string `json:"batch_id,omitempty"`

	// Compressed is set for archive records whose destination is a
	// compressed copy rather than the original bytes.
	Compressed bool `json:"compressed,omitempty"`
}

// Undone reports whether the record has been undone.
func (r *Record) Undone() bool {
	return r.UndoneAt != nil
}

// PathRef is what shelf remembers about a file it organized, keyed by
// the file's current path.
type PathRef struct {
	Path      string         `json:"path"`
	Size      int64          `json:"size"`
	ModTime   time.Time      `json:"mod_time"`
	Category  types.Category `json:"category,omitempty"`
	Rule      string         `json:"rule,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func recordNotFound(id int64) error {
	return fmt.Errorf("%w: operation %d", types.ErrNotFound, id)
}

func alreadyUndone(id int64) error {
	return fmt.Errorf("%w: operation %d", types.ErrAlreadyUndone, id)
}
