package oplog

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/jamesainslie/shelf/pkg/shelf/logging"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

var (
	opPrefix  = []byte("op:")
	refPrefix = []byte("ref:")
	seqKey    = []byte("seq:op")
)

const seqBandwidth = 64

// BadgerStore keeps records in badger. Records live under "op:" followed
// by the big-endian id so key order is id order; path references live
// under "ref:" followed by the path.
type BadgerStore struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *logging.Logger
}

// OpenBadger opens or creates a badger store at dir.
func OpenBadger(dir string, inMemory bool) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating oplog directory: %w", err)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening oplog: %w", err)
	}
	seq, err := db.GetSequence(seqKey, seqBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening oplog sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq, logger: logging.Get("oplog")}, nil
}

func opKey(id int64) []byte {
	key := make([]byte, len(opPrefix)+8)
	copy(key, opPrefix)
	binary.BigEndian.PutUint64(key[len(opPrefix):], uint64(id))
	return key
}

func refKey(path string) []byte {
	return append(append([]byte{}, refPrefix...), path...)
}

// Insert implements Store.
func (s *BadgerStore) Insert(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := ParseOpType(string(rec.Type)); err != nil {
		return err
	}

	next, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("allocating operation id: %w", err)
	}
	// Sequences start at zero; ids start at one.
	rec.ID = int64(next) + 1

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding operation: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(opKey(rec.ID), value)
	}); err != nil {
		return fmt.Errorf("writing operation %d: %w", rec.ID, err)
	}
	s.logger.Debug("recorded operation", "id", rec.ID, "type", rec.Type, "source", rec.Source)
	return nil
}

func getRecord(txn *badger.Txn, id int64) (*Record, error) {
	item, err := txn.Get(opKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, recordNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
		return nil, fmt.Errorf("decoding operation %d: %w", id, err)
	}
	return &rec, nil
}

// Get implements Store.
func (s *BadgerStore) Get(ctx context.Context, id int64) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	return rec, err
}

// scanNewestFirst calls fn for each record from newest to oldest until fn
// returns false.
func (s *BadgerStore) scanNewestFirst(fn func(Record) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = opPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, opPrefix...), bytes.Repeat([]byte{0xff}, 8)...)
		for it.Seek(seek); it.ValidForPrefix(opPrefix); it.Next() {
			var rec Record
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				return fmt.Errorf("decoding %x: %w", it.Item().Key(), err)
			}
			if !fn(rec) {
				return nil
			}
		}
		return nil
	})
}

// List implements Store.
func (s *BadgerStore) List(ctx context.Context, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records := []Record{}
	err := s.scanNewestFirst(func(rec Record) bool {
		records = append(records, rec)
		return limit <= 0 || len(records) < limit
	})
	return records, err
}

// ListBatch implements Store.
func (s *BadgerStore) ListBatch(ctx context.Context, batchID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records := []Record{}
	err := s.scanNewestFirst(func(rec Record) bool {
		if rec.BatchID == batchID {
			records = append(records, rec)
		}
		return true
	})
	return records, err
}

// LatestBatch implements Store.
func (s *BadgerStore) LatestBatch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var batch string
	err := s.scanNewestFirst(func(rec Record) bool {
		batch = rec.BatchID
		return batch == ""
	})
	if err != nil {
		return "", err
	}
	if batch == "" {
		return "", fmt.Errorf("%w: no batch recorded", types.ErrNotFound)
	}
	return batch, nil
}

// MarkUndone implements Store.
func (s *BadgerStore) MarkUndone(ctx context.Context, id int64, t time.Time) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.markUndone(id, t)
		// A concurrent stamp wins the transaction; retrying reports it.
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
}

func (s *BadgerStore) markUndone(id int64, t time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, id)
		if err != nil {
			return err
		}
		if rec.Undone() {
			return alreadyUndone(id)
		}
		rec.UndoneAt = &t
		value, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(opKey(id), value)
	})
}

// TrackPath implements Store.
func (s *BadgerStore) TrackPath(ctx context.Context, ref PathRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(ref)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(refKey(ref.Path), value)
	})
}

// LookupPath implements Store.
func (s *BadgerStore) LookupPath(ctx context.Context, path string) (*PathRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ref PathRef
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(refKey(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: path %s", types.ErrNotFound, path)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &ref) })
	})
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// UpdatePathReferences implements Store.
func (s *BadgerStore) UpdatePathReferences(ctx context.Context, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		type moved struct {
			oldKey []byte
			ref    PathRef
		}
		var pending []moved

		prefix := refKey(oldPath)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			path := string(item.Key()[len(refPrefix):])
			target, ok := rebase(path, oldPath, newPath)
			if !ok {
				continue
			}
			var ref PathRef
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &ref) }); err != nil {
				it.Close()
				return err
			}
			ref.Path = target
			pending = append(pending, moved{oldKey: item.KeyCopy(nil), ref: ref})
		}
		it.Close()

		for _, m := range pending {
			if err := txn.Delete(m.oldKey); err != nil {
				return err
			}
		}
		for _, m := range pending {
			value, err := json.Marshal(m.ref)
			if err != nil {
				return err
			}
			if err := txn.Set(refKey(m.ref.Path), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Prune implements Store.
func (s *BadgerStore) Prune(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: opPrefix, PrefetchValues: true})
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(opPrefix); it.Next() {
			var rec Record
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				return fmt.Errorf("decoding %x: %w", it.Item().Key(), err)
			}
			if rec.CreatedAt.Before(before) {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil || len(stale) == 0 {
		return 0, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("pruning operations: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("pruning operations: %w", err)
	}
	s.logger.Info("pruned operations", "count", len(stale), "before", before)
	return len(stale), nil
}

// Close releases the sequence and closes the database.
func (s *BadgerStore) Close() error {
	seqErr := s.seq.Release()
	if err := s.db.Close(); err != nil {
		return err
	}
	return seqErr
}
