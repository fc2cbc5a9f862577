package store

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/geoplan/internal/checksum"
	"github.com/starford/geoplan/internal/planparse"
	"github.com/starford/geoplan/internal/storage"
)

// Plan watcher event kinds.
const (
	PlanCreated = "created"
	PlanUpdated = "updated"
	PlanMissing = "missing"
)

// EventCallback is called after a watcher-driven plan change. planID is zero
// for PlanMissing events on files that were never registered.
type EventCallback func(kind string, planID int64, file string)

// Watch starts an fsnotify watcher on the plan library and re-registers plan
// files as they change until ctx is cancelled. Writes are debounced per file
// because image editors save in several steps.
func Watch(ctx context.Context, db *DB, lib storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	const debounce = 150 * time.Millisecond
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case now := <-ticker.C:
			for rel, at := range pending {
				if now.Sub(at) < debounce {
					continue
				}
				delete(pending, rel)
				refreshPlan(ctx, db, lib, rel, logger, cb)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					continue
				}
			}

			if !planparse.Supported(ev.Name) {
				continue
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				pending[rel] = time.Now()

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(pending, rel)
				var planID int64
				if p, err := db.GetPlanByFile(ctx, rel); err == nil {
					planID = p.ID
				}
				logger.Warn("watcher: plan file gone", slog.String("file", rel))
				if cb != nil {
					cb(PlanMissing, planID, rel)
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// refreshPlan re-reads one plan file and upserts it when its checksum changed.
func refreshPlan(ctx context.Context, db *DB, lib storage.Provider, rel string, logger *slog.Logger, cb EventCallback) {
	data, err := lib.Read(rel)
	if err != nil {
		logger.Warn("watcher: read failed", slog.String("file", rel), slog.String("error", err.Error()))
		return
	}
	kind := PlanCreated
	if existing, err := db.GetPlanByFile(ctx, rel); err == nil {
		if existing.Checksum == checksum.Sum(data) {
			return
		}
		kind = PlanUpdated
	}
	if err := registerPlanFile(ctx, db, rel, data); err != nil {
		logger.Warn("watcher: register failed", slog.String("file", rel), slog.String("error", err.Error()))
		return
	}
	p, err := db.GetPlanByFile(ctx, rel)
	if err != nil {
		return
	}
	logger.Debug("watcher: registered", slog.String("file", rel), slog.String("op", kind))
	if cb != nil {
		cb(kind, p.ID, rel)
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
