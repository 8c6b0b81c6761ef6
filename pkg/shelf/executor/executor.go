// Package executor applies filesystem actions under path locks and records
// each committed action in the operation log.
//
// Every request runs through the same lifecycle:
//
//	REQUESTED -> IN_PROGRESS -> COMMITTED | FAILED
//
// The source and destination locks are taken before the first filesystem
// call and released after the log write. A filesystem failure aborts the
// request before anything is written to the log.
package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/shelf/pkg/shelf/fsops"
	"github.com/jamesainslie/shelf/pkg/shelf/logging"
	"github.com/jamesainslie/shelf/pkg/shelf/oplog"
	"github.com/jamesainslie/shelf/pkg/shelf/pathlock"
	"github.com/jamesainslie/shelf/pkg/shelf/trash"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

// Result is the outcome of one request.
type Result struct {
	Request Request
	State   State

	// Record is the committed log entry; nil on failure.
	Record *oplog.Record

	// Err is a *types.OpError on failure.
	Err error
}

// OK reports whether the request committed.
func (r Result) OK() bool { return r.Err == nil && r.State == StateCommitted }

// Reason returns a human-readable failure reason, or "" on success.
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Executor applies requests. It is safe for concurrent use.
type Executor struct {
	fs     *fsops.FS
	store  oplog.Store
	locks  *pathlock.Manager
	trash  *trash.Trash
	clock  types.Clock
	logger *logging.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithTrash enables soft deletes.
func WithTrash(t *trash.Trash) Option {
	return func(e *Executor) { e.trash = t }
}

// WithClock sets the clock used for record timestamps.
func WithClock(c types.Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// New creates an executor. locks may be shared with an undo engine so
// that undo and execution serialize on the same paths.
func New(fs *fsops.FS, store oplog.Store, locks *pathlock.Manager, opts ...Option) *Executor {
	e := &Executor{
		fs:     fs,
		store:  store,
		locks:  locks,
		clock:  types.SystemClock{},
		logger: logging.Get("executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Move moves src to dst.
func (e *Executor) Move(ctx context.Context, src, dst string) (*oplog.Record, error) {
	res := e.Execute(ctx, MoveRequest{Src: src, Dst: dst})
	return res.Record, res.Err
}

// Copy copies src to dst.
func (e *Executor) Copy(ctx context.Context, src, dst string) (*oplog.Record, error) {
	res := e.Execute(ctx, CopyRequest{Src: src, Dst: dst})
	return res.Record, res.Err
}

// Delete deletes src, into the trash when toTrash is set.
func (e *Executor) Delete(ctx context.Context, src string, toTrash bool) (*oplog.Record, error) {
	res := e.Execute(ctx, DeleteRequest{Src: src, ToTrash: toTrash})
	return res.Record, res.Err
}

// Archive archives src to dst.
func (e *Executor) Archive(ctx context.Context, src, dst string, compress, deleteOriginal bool) (*oplog.Record, error) {
	res := e.Execute(ctx, ArchiveRequest{Src: src, Dst: dst, Compress: compress, DeleteOriginal: deleteOriginal})
	return res.Record, res.Err
}

// Rename renames src to newName within its directory.
func (e *Executor) Rename(ctx context.Context, src, newName string) (*oplog.Record, error) {
	res := e.Execute(ctx, RenameRequest{Src: src, NewName: newName})
	return res.Record, res.Err
}

// Execute runs one request to completion.
func (e *Executor) Execute(ctx context.Context, req Request) Result {
	return e.execute(ctx, req, "")
}

func (e *Executor) execute(ctx context.Context, req Request, batchID string) Result {
	res := Result{Request: req, State: StateRequested}
	op := string(req.Type())
	log := e.logger.With("op", op, "source", req.Source())

	fail := func(path string, kind, err error) Result {
		if tErr := transition(&res.State, res.State, StateFailed); tErr != nil {
			log.Error("state machine", "error", tErr)
		}
		res.Err = asOpError(op, path, kind, err)
		log.Warn("operation failed", "error", res.Err)
		return res
	}

	if err := req.validate(); err != nil {
		return fail(req.Source(), types.ErrValidation, err)
	}

	release, err := e.locks.AcquireAll(ctx, req.lockKeys()...)
	if err != nil {
		return fail(req.Source(), types.ErrIO, err)
	}
	defer release()

	if err := transition(&res.State, StateRequested, StateInProgress); err != nil {
		return fail(req.Source(), types.ErrIO, err)
	}
	log.Debug("state", "state", res.State)

	rec, undoFS, err := e.apply(req)
	if err != nil {
		return fail(pathOf(err, req.Source()), nil, err)
	}

	origin := req.origin()
	rec.Type = req.Type()
	rec.Source = req.Source()
	rec.RuleName = origin.RuleName
	rec.Confidence = origin.Confidence
	rec.CreatedAt = e.clock.Now()
	rec.BatchID = batchID

	if err := e.updateReferences(ctx, rec, origin); err != nil {
		log.Warn("updating path references", "error", err)
	}

	if err := e.store.Insert(ctx, rec); err != nil {
		// Put the filesystem back so that no unlogged change survives.
		if undoFS != nil {
			if rbErr := undoFS(); rbErr != nil {
				log.Error("reverting after log failure", "error", rbErr)
				err = errors.Join(err, rbErr)
			}
		}
		return fail(req.Source(), types.ErrIO, err)
	}

	if err := transition(&res.State, StateInProgress, StateCommitted); err != nil {
		log.Error("state machine", "error", err)
	}
	res.Record = rec
	log.Info("committed", "id", rec.ID, "destination", rec.Destination)
	return res
}

// apply performs the filesystem work. The returned function reverses it
// and is used only when the log write fails.
func (e *Executor) apply(req Request) (*oplog.Record, func() error, error) {
	switch r := req.(type) {
	case MoveRequest:
		return e.move(r.Src, r.Dst)
	case RenameRequest:
		return e.move(r.Src, r.Target())
	case CopyRequest:
		return e.copy(r.Src, r.Dst)
	case DeleteRequest:
		return e.delete(r)
	case ArchiveRequest:
		return e.archive(r)
	default:
		return nil, nil, invalid("unsupported request %T", req)
	}
}

func (e *Executor) checkSource(src string) (os.FileInfo, error) {
	info, err := e.fs.Stat(src)
	if err != nil {
		return nil, &os.PathError{Op: "stat", Path: src, Err: err}
	}
	return info, nil
}

func (e *Executor) checkFree(dst string) error {
	exists, err := e.fs.Exists(dst)
	if err != nil {
		return err
	}
	if exists {
		return &os.PathError{Op: "check", Path: dst, Err: types.ErrConflict}
	}
	return nil
}

func (e *Executor) move(src, dst string) (*oplog.Record, func() error, error) {
	if _, err := e.checkSource(src); err != nil {
		return nil, nil, err
	}
	if err := e.checkFree(dst); err != nil {
		return nil, nil, err
	}
	crossed, err := e.fs.Relocate(src, dst)
	if err != nil {
		return nil, nil, err
	}
	if crossed {
		e.logger.Debug("moved across devices", "source", src, "destination", dst)
	}
	undo := func() error {
		_, err := e.fs.Relocate(dst, src)
		return err
	}
	return &oplog.Record{Destination: dst}, undo, nil
}

func (e *Executor) copy(src, dst string) (*oplog.Record, func() error, error) {
	if _, err := e.checkSource(src); err != nil {
		return nil, nil, err
	}
	if err := e.checkFree(dst); err != nil {
		return nil, nil, err
	}
	if err := e.fs.Copy(src, dst); err != nil {
		return nil, nil, err
	}
	return &oplog.Record{Destination: dst}, func() error { return e.fs.Remove(dst) }, nil
}

func (e *Executor) delete(r DeleteRequest) (*oplog.Record, func() error, error) {
	if _, err := e.checkSource(r.Src); err != nil {
		return nil, nil, err
	}
	if !r.ToTrash {
		if err := e.fs.Remove(r.Src); err != nil {
			return nil, nil, err
		}
		return &oplog.Record{}, nil, nil
	}
	if e.trash == nil {
		return nil, nil, invalid("trash is not configured")
	}
	trashed, err := e.trash.Put(r.Src)
	if err != nil {
		return nil, nil, err
	}
	return &oplog.Record{Destination: trashed}, func() error { return e.trash.Restore(trashed, r.Src) }, nil
}

func (e *Executor) archive(r ArchiveRequest) (*oplog.Record, func() error, error) {
	if !r.Compress {
		return e.move(r.Src, r.Dst)
	}

	info, err := e.checkSource(r.Src)
	if err != nil {
		return nil, nil, err
	}
	if info.IsDir() {
		return nil, nil, invalid("cannot compress directory %s", r.Src)
	}

	dst := r.Dst
	if !strings.HasSuffix(strings.ToLower(dst), fsops.GzipExt) {
		dst += fsops.GzipExt
	}
	if dst, err = e.fs.Disambiguate(dst); err != nil {
		return nil, nil, err
	}
	if err := e.fs.Compress(r.Src, dst); err != nil {
		return nil, nil, err
	}

	undo := func() error { return e.fs.Remove(dst) }
	if r.DeleteOriginal {
		if err := e.fs.Remove(r.Src); err != nil {
			_ = e.fs.Remove(dst)
			return nil, nil, err
		}
		undo = func() error {
			if err := e.fs.Decompress(dst, r.Src); err != nil {
				return err
			}
			return e.fs.Remove(dst)
		}
	}
	return &oplog.Record{Destination: dst, Compressed: true}, undo, nil
}

// updateReferences rewrites stored path references for relocations and
// remembers where rule-driven moves put a file.
func (e *Executor) updateReferences(ctx context.Context, rec *oplog.Record, origin Origin) error {
	switch {
	case rec.Type == oplog.OpCopy, rec.Type == oplog.OpDelete, rec.Compressed:
		return nil
	}
	if err := e.store.UpdatePathReferences(ctx, rec.Source, rec.Destination); err != nil {
		return err
	}
	if origin.RuleName == "" {
		return nil
	}
	info, err := e.fs.Stat(rec.Destination)
	if err != nil {
		return err
	}
	return e.store.TrackPath(ctx, oplog.PathRef{
		Path:      rec.Destination,
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		Category:  origin.Category,
		Rule:      origin.RuleName,
		UpdatedAt: e.clock.Now(),
	})
}

// pathOf extracts the path from a *os.PathError or *os.LinkError.
func pathOf(err error, fallback string) string {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return filepath.Clean(pe.Path)
	}
	var le *os.LinkError
	if errors.As(err, &le) {
		return le.Old
	}
	return fallback
}

func asOpError(op, path string, kind, err error) error {
	var oe *types.OpError
	if errors.As(err, &oe) {
		return oe
	}
	return types.NewOpError(op, path, kind, err)
}
