package main

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"github.com/jamesainslie/shelf/pkg/shelf/config"
	"github.com/jamesainslie/shelf/pkg/shelf/executor"
	"github.com/jamesainslie/shelf/pkg/shelf/fsops"
	"github.com/jamesainslie/shelf/pkg/shelf/logging"
	"github.com/jamesainslie/shelf/pkg/shelf/oplog"
	"github.com/jamesainslie/shelf/pkg/shelf/pathlock"
	"github.com/jamesainslie/shelf/pkg/shelf/trash"
	"github.com/jamesainslie/shelf/pkg/shelf/undo"
)

// app holds the collaborators shared by the commands that touch files.
// The executor and the undo engine share one lock manager so an undo never
// races an organize run in the same process.
type app struct {
	cfg   *config.Config
	store oplog.Store
	ops   *fsops.FS
	trash *trash.Trash
	exec  *executor.Executor
	undo  *undo.Engine
}

func newApp(cfg *config.Config, fsys afero.Fs) (*app, error) {
	store, err := oplog.Open(cfg.OplogOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open operation log: %w", err)
	}

	ops := fsops.New(fsys)
	locks := pathlock.New()
	tr := trash.New(ops, cfg.TrashDir())

	return &app{
		cfg:   cfg,
		store: store,
		ops:   ops,
		trash: tr,
		exec:  executor.New(ops, store, locks, executor.WithTrash(tr)),
		undo:  undo.New(ops, store, locks, tr),
	}, nil
}

// openApp loads the configuration and opens the app on the real filesystem.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg, afero.NewOsFs())
}

func (a *app) Close() error {
	err := a.store.Close()
	return errors.Join(err, logging.Close())
}
