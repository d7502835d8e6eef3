// Package store selects and opens the configured record store backend.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/warp/leave-tracker/config"
	"github.com/warp/leave-tracker/leave"
	"github.com/warp/leave-tracker/store/jsonfile"
	"github.com/warp/leave-tracker/store/sqlite"
	"go.uber.org/zap"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns the backend named by cfg.Driver and a closer for it.
func Open(cfg config.StoreConfig, logger *zap.Logger) (leave.Store, io.Closer, error) {
	switch cfg.Driver {
	case "", "json":
		s, err := jsonfile.New(cfg.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case "sqlite":
		s, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// BackupPath returns <dir>/<name>_backup_<timestamp>.json next to path.
func BackupPath(path string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(filepath.Dir(path), fmt.Sprintf("%s_backup_%s.json", base, now.Format("20060102-150405")))
}

// Backup writes the full collection of s to dst as a JSON document and
// returns how many records it holds.
func Backup(ctx context.Context, s leave.Store, dst string) (int, error) {
	records, err := s.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode backup: %w", err)
	}
	if err := jsonfile.WriteFileAtomic(dst, data, 0o644); err != nil {
		return 0, &leave.StoreError{Op: "backup", Err: err}
	}
	return len(records), nil
}
