package executor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/shelf/pkg/shelf/oplog"
	"github.com/jamesainslie/shelf/pkg/shelf/pathlock"
	"github.com/jamesainslie/shelf/pkg/shelf/suggest"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

// Origin describes why a request was made. It is copied into the record.
type Origin struct {
	RuleName   string
	Confidence *float64

	// Category is remembered with the path reference of moved files.
	Category types.Category
}

// Request is one filesystem action. The set of implementations is closed.
type Request interface {
	// Type is the operation type recorded for the request.
	Type() oplog.OpType

	// Source is the path the request acts on.
	Source() string

	// lockKeys lists the paths to lock, source first.
	lockKeys() []string

	origin() Origin
	validate() error
}

// MoveRequest moves Src to Dst.
type MoveRequest struct {
	Src, Dst string
	Origin
}

// CopyRequest copies Src to Dst.
type CopyRequest struct {
	Src, Dst string
	Origin
}

// DeleteRequest deletes Src, into the trash when ToTrash is set.
type DeleteRequest struct {
	Src     string
	ToTrash bool
	Origin
}

// ArchiveRequest archives Src to Dst. With Compress the destination is a
// gzip copy, and DeleteOriginal removes Src once it is written. Without
// Compress the request is a move recorded as an archive.
type ArchiveRequest struct {
	Src, Dst       string
	Compress       bool
	DeleteOriginal bool
	Origin
}

// RenameRequest renames Src within its directory.
type RenameRequest struct {
	Src     string
	NewName string
	Origin
}

func (MoveRequest) Type() oplog.OpType    { return oplog.OpMove }
func (CopyRequest) Type() oplog.OpType    { return oplog.OpCopy }
func (DeleteRequest) Type() oplog.OpType  { return oplog.OpDelete }
func (ArchiveRequest) Type() oplog.OpType { return oplog.OpArchive }
func (RenameRequest) Type() oplog.OpType  { return oplog.OpRename }

func (r MoveRequest) Source() string    { return r.Src }
func (r CopyRequest) Source() string    { return r.Src }
func (r DeleteRequest) Source() string  { return r.Src }
func (r ArchiveRequest) Source() string { return r.Src }
func (r RenameRequest) Source() string  { return r.Src }

func (r MoveRequest) lockKeys() []string    { return keys(r.Src, r.Dst) }
func (r CopyRequest) lockKeys() []string    { return keys(r.Src, r.Dst) }
func (r DeleteRequest) lockKeys() []string  { return keys(r.Src) }
func (r ArchiveRequest) lockKeys() []string { return keys(r.Src, r.Dst) }
func (r RenameRequest) lockKeys() []string  { return keys(r.Src, r.Target()) }

func (r MoveRequest) origin() Origin    { return r.Origin }
func (r CopyRequest) origin() Origin    { return r.Origin }
func (r DeleteRequest) origin() Origin  { return r.Origin }
func (r ArchiveRequest) origin() Origin { return r.Origin }
func (r RenameRequest) origin() Origin  { return r.Origin }

// Target returns the path the file will have after the rename.
func (r RenameRequest) Target() string {
	return filepath.Join(filepath.Dir(r.Src), r.NewName)
}

func keys(paths ...string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, pathlock.Key(p))
	}
	return out
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrValidation, fmt.Sprintf(format, args...))
}

func requirePaths(src, dst string) error {
	if src == "" {
		return invalid("source path is empty")
	}
	if dst == "" {
		return invalid("destination path is empty")
	}
	if filepath.Clean(src) == filepath.Clean(dst) {
		return invalid("source and destination are the same path")
	}
	return nil
}

func (r MoveRequest) validate() error { return requirePaths(r.Src, r.Dst) }
func (r CopyRequest) validate() error { return requirePaths(r.Src, r.Dst) }

func (r DeleteRequest) validate() error {
	if r.Src == "" {
		return invalid("source path is empty")
	}
	return nil
}

func (r ArchiveRequest) validate() error {
	if !r.Compress && r.DeleteOriginal {
		return invalid("delete original requires compression")
	}
	return requirePaths(r.Src, r.Dst)
}

func (r RenameRequest) validate() error {
	if r.Src == "" {
		return invalid("source path is empty")
	}
	name := r.NewName
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return invalid("invalid new name %q", name)
	}
	return requirePaths(r.Src, r.Target())
}

// FromSuggestion converts an approved suggestion into a request. Archive
// suggestions compress and drop the original; deletes go to the trash when
// toTrash is set.
func FromSuggestion(s suggest.Suggestion, toTrash bool) (Request, error) {
	if s.File == nil {
		return nil, invalid("suggestion has no file")
	}
	conf := s.Confidence
	origin := Origin{RuleName: s.RuleName, Confidence: &conf, Category: s.File.Category}

	switch s.Action {
	case suggest.ActionMove:
		return MoveRequest{Src: s.File.Path, Dst: s.Destination, Origin: origin}, nil
	case suggest.ActionCopy:
		return CopyRequest{Src: s.File.Path, Dst: s.Destination, Origin: origin}, nil
	case suggest.ActionDelete:
		return DeleteRequest{Src: s.File.Path, ToTrash: toTrash, Origin: origin}, nil
	case suggest.ActionArchive:
		return ArchiveRequest{
			Src: s.File.Path, Dst: s.Destination, Compress: true, DeleteOriginal: true, Origin: origin,
		}, nil
	default:
		return nil, invalid("unknown action %q", s.Action)
	}
}
