// Package deskfs is the virtual file store behind a simulated desktop: an
// in-memory tree of files and folders mirrored to a durable snapshot, with
// a browser, a shell and an editor navigating it through their own cursors.
//
// The tree lives in package filesystem, persistence in snapshot and kv, and
// the single owning session in session. This package wires them from a
// config.Config and declares what each collaborator needs.
package deskfs

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/brettbedarf/deskfs/config"
	"github.com/brettbedarf/deskfs/internal/util"
	"github.com/brettbedarf/deskfs/kv"
	"github.com/brettbedarf/deskfs/metrics"
	"github.com/brettbedarf/deskfs/session"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	_ Browser       = (*session.Cursor)(nil)
	_ ShellBackend  = (*session.Cursor)(nil)
	_ EditorBackend = (*session.Cursor)(nil)
)

// Runtime is an open session together with the store and metrics wired
// around it
type Runtime struct {
	Config   *config.Config
	Session  *session.Session
	Registry *prometheus.Registry
}

// StorePath returns where the configured backend keeps its data. The file
// backend uses DataPath as is; badger and sqlite get their own entry
// beneath it unless DataPath already names a database file.
func StorePath(cfg *config.Config) string {
	switch cfg.Backend {
	case kv.BackendBadger:
		return filepath.Join(cfg.DataPath, "badger")
	case kv.BackendSQLite:
		if filepath.Ext(cfg.DataPath) != "" {
			return cfg.DataPath
		}
		return filepath.Join(cfg.DataPath, "deskfs.db")
	default:
		return cfg.DataPath
	}
}

// Open validates cfg, opens its store and restores or seeds the session.
// onPersistError may be nil.
func Open(ctx context.Context, cfg *config.Config, onPersistError func(error)) (*Runtime, error) {
	logger := util.GetLogger("deskfs.Open")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	path := StorePath(cfg)
	store, err := kv.Open(ctx, cfg.Backend, path)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	sess, err := session.Open(ctx, store, session.Options{
		SnapshotKey:    cfg.SnapshotKey,
		Metrics:        metrics.New(reg),
		OnPersistError: onPersistError,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Debug().Str("backend", string(cfg.Backend)).Str("path", path).Msg("Opened store")
	return &Runtime{Config: cfg, Session: sess, Registry: reg}, nil
}

// Close flushes the final snapshot and closes the store
func (r *Runtime) Close() error {
	return r.Session.Close()
}
