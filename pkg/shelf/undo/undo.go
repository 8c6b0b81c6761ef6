// Package undo reverses operations recorded in the operation log.
//
// Each record can be undone once. The engine locks the record id and the
// record's paths, re-reads the record, reverses the filesystem change for
// its type and then stamps the record as undone. A failure leaves the
// record unstamped.
package undo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"

	"github.com/jamesainslie/shelf/pkg/shelf/fsops"
	"github.com/jamesainslie/shelf/pkg/shelf/logging"
	"github.com/jamesainslie/shelf/pkg/shelf/oplog"
	"github.com/jamesainslie/shelf/pkg/shelf/pathlock"
	"github.com/jamesainslie/shelf/pkg/shelf/trash"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

const opName = "undo"

// Outcome is the result of undoing one record.
type Outcome struct {
	ID int64

	// Record is the undone record; nil when the record could not be read.
	Record *oplog.Record

	Err error
}

// OK reports whether the record was undone.
func (o Outcome) OK() bool { return o.Err == nil }

// Engine undoes log records. It is safe for concurrent use.
type Engine struct {
	fs     *fsops.FS
	store  oplog.Store
	locks  *pathlock.Manager
	trash  *trash.Trash
	clock  types.Clock
	logger *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for undo timestamps.
func WithClock(c types.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New creates an engine. tr may be nil, in which case soft deletes cannot
// be undone. locks should be the manager the executor uses.
func New(fs *fsops.FS, store oplog.Store, locks *pathlock.Manager, tr *trash.Trash, opts ...Option) *Engine {
	e := &Engine{
		fs:     fs,
		store:  store,
		locks:  locks,
		trash:  tr,
		clock:  types.SystemClock{},
		logger: logging.Get("undo"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Undo reverses the record with id.
func (e *Engine) Undo(ctx context.Context, id int64) error {
	_, err := e.undo(ctx, id)
	return err
}

// UndoLast reverses the most recent record that is not yet undone.
func (e *Engine) UndoLast(ctx context.Context) (*oplog.Record, error) {
	outcomes, err := e.UndoRecent(ctx, 1)
	if err != nil {
		return nil, err
	}
	return outcomes[0].Record, outcomes[0].Err
}

// UndoRecent reverses the n most recent records that are not yet undone,
// newest first. It fails with types.ErrNotFound when there is nothing to
// undo.
func (e *Engine) UndoRecent(ctx context.Context, n int) ([]Outcome, error) {
	recs, err := e.store.List(ctx, 0)
	if err != nil {
		return nil, types.NewOpError(opName, "", types.ErrIO, err)
	}
	var ids []int64
	for _, rec := range recs {
		if len(ids) == n {
			break
		}
		if !rec.Undone() {
			ids = append(ids, rec.ID)
		}
	}
	if len(ids) == 0 {
		return nil, types.NewOpError(opName, "", types.ErrNotFound, errors.New("nothing to undo"))
	}
	return e.UndoMultiple(ctx, ids), nil
}

// UndoMultiple reverses each id, newest (highest id) first. Failures do
// not stop the remaining ids.
func (e *Engine) UndoMultiple(ctx context.Context, ids []int64) []Outcome {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)
	slices.Reverse(ordered)

	outcomes := make([]Outcome, 0, len(ordered))
	for _, id := range ordered {
		rec, err := e.undo(ctx, id)
		outcomes = append(outcomes, Outcome{ID: id, Record: rec, Err: err})
	}
	return outcomes
}

// UndoBatch reverses the records of one batch that are not yet undone. An
// empty batchID selects the most recent batch.
func (e *Engine) UndoBatch(ctx context.Context, batchID string) ([]Outcome, error) {
	if batchID == "" {
		latest, err := e.store.LatestBatch(ctx)
		if err != nil {
			return nil, types.NewOpError(opName, "", nil, err)
		}
		batchID = latest
	}
	recs, err := e.store.ListBatch(ctx, batchID)
	if err != nil {
		return nil, types.NewOpError(opName, "", nil, err)
	}
	var ids []int64
	for _, rec := range recs {
		if !rec.Undone() {
			ids = append(ids, rec.ID)
		}
	}
	e.logger.Info("undoing batch", "batch", batchID, "records", len(ids))
	return e.UndoMultiple(ctx, ids), nil
}

// Key returns the lock key that serializes undo of one record.
func Key(id int64) string {
	return fmt.Sprintf("oplog:%d", id)
}

func (e *Engine) undo(ctx context.Context, id int64) (*oplog.Record, error) {
	log := e.logger.With("id", id)

	rec, err := e.load(ctx, id)
	if err != nil {
		return rec, err
	}

	release, err := e.locks.AcquireAll(ctx, Key(id), pathlock.Key(rec.Source), lockKey(rec.Destination))
	if err != nil {
		return rec, types.NewOpError(opName, rec.Source, types.ErrIO, err)
	}
	defer release()

	// Another caller may have undone it while we waited.
	if rec, err = e.load(ctx, id); err != nil {
		return rec, err
	}

	if err := e.reverse(rec); err != nil {
		log.Warn("undo failed", "type", rec.Type, "error", err)
		return rec, err
	}

	if rec.Type != oplog.OpCopy && rec.Type != oplog.OpDelete && !rec.Compressed {
		if err := e.store.UpdatePathReferences(ctx, rec.Destination, rec.Source); err != nil {
			log.Warn("restoring path references", "error", err)
		}
	}

	at := e.clock.Now()
	if err := e.store.MarkUndone(ctx, id, at); err != nil {
		return rec, types.NewOpError(opName, rec.Source, nil, err)
	}
	rec.UndoneAt = &at
	log.Info("undone", "type", rec.Type, "source", rec.Source, "destination", rec.Destination)
	return rec, nil
}

func (e *Engine) load(ctx context.Context, id int64) (*oplog.Record, error) {
	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, types.NewOpError(opName, "", nil, err)
	}
	if rec.Undone() {
		return rec, types.NewOpError(opName, rec.Source, types.ErrAlreadyUndone,
			fmt.Errorf("operation %d was undone at %s", id, rec.UndoneAt.Format("2006-01-02 15:04:05")))
	}
	return rec, nil
}

func lockKey(path string) string {
	if path == "" {
		return ""
	}
	return pathlock.Key(path)
}

func (e *Engine) reverse(rec *oplog.Record) error {
	switch rec.Type {
	case oplog.OpMove, oplog.OpRename:
		return e.moveBack(rec)
	case oplog.OpCopy:
		return e.removeCopy(rec)
	case oplog.OpDelete:
		return e.restore(rec)
	case oplog.OpArchive:
		if !rec.Compressed {
			return e.moveBack(rec)
		}
		return e.unarchive(rec)
	default:
		return types.NewOpError(opName, rec.Source, types.ErrValidation,
			fmt.Errorf("unknown operation type %q", rec.Type))
	}
}

func (e *Engine) moveBack(rec *oplog.Record) error {
	exists, err := e.fs.Exists(rec.Destination)
	if err != nil {
		return types.NewOpError(opName, rec.Destination, nil, err)
	}
	if !exists {
		return types.NewOpError(opName, rec.Destination, types.ErrNotFound,
			errors.New("file is no longer at its destination"))
	}
	if taken, err := e.fs.Exists(rec.Source); err != nil {
		return types.NewOpError(opName, rec.Source, nil, err)
	} else if taken {
		return types.NewOpError(opName, rec.Source, types.ErrConflict,
			errors.New("original location is occupied"))
	}
	if _, err := e.fs.Relocate(rec.Destination, rec.Source); err != nil {
		return types.NewOpError(opName, rec.Source, nil, err)
	}
	return nil
}

func (e *Engine) removeCopy(rec *oplog.Record) error {
	err := e.fs.Remove(rec.Destination)
	if errors.Is(err, fs.ErrNotExist) {
		e.logger.Debug("copy already gone", "path", rec.Destination)
		return nil
	}
	if err != nil {
		return types.NewOpError(opName, rec.Destination, nil, err)
	}
	return nil
}

func (e *Engine) restore(rec *oplog.Record) error {
	if rec.Destination == "" {
		return types.NewOpError(opName, rec.Source, types.ErrUnrecoverable,
			errors.New("file was deleted permanently"))
	}
	if e.trash == nil {
		return types.NewOpError(opName, rec.Source, types.ErrUnrecoverable,
			errors.New("trash is not configured"))
	}
	exists, err := e.trash.Exists(rec.Destination)
	if err != nil {
		return types.NewOpError(opName, rec.Destination, nil, err)
	}
	if !exists {
		return types.NewOpError(opName, rec.Destination, types.ErrUnrecoverable,
			errors.New("file is no longer in the trash"))
	}
	if err := e.trash.Restore(rec.Destination, rec.Source); err != nil {
		return types.NewOpError(opName, rec.Source, nil, err)
	}
	return nil
}

// unarchive reverses a compressed archive. The artifact is dropped when the
// original is still in place, and expanded back to the source otherwise.
// With no artifact left there is nothing to reverse and the undo succeeds.
func (e *Engine) unarchive(rec *oplog.Record) error {
	srcExists, err := e.fs.Exists(rec.Source)
	if err != nil {
		return types.NewOpError(opName, rec.Source, nil, err)
	}
	artExists, err := e.fs.Exists(rec.Destination)
	if err != nil {
		return types.NewOpError(opName, rec.Destination, nil, err)
	}

	switch {
	case !artExists:
		if !srcExists {
			e.logger.Warn("archive and original both gone, nothing to restore",
				"id", rec.ID, "source", rec.Source, "archive", rec.Destination)
		}
		return nil
	case srcExists:
		if err := e.fs.Remove(rec.Destination); err != nil {
			return types.NewOpError(opName, rec.Destination, nil, err)
		}
		return nil
	}

	if err := e.fs.Decompress(rec.Destination, rec.Source); err != nil {
		return types.NewOpError(opName, rec.Destination, types.ErrUnrecoverable, err)
	}
	if err := e.fs.Remove(rec.Destination); err != nil {
		e.logger.Warn("removing archive after restore", "path", rec.Destination, "error", err)
	}
	return nil
}
