package store

import (
	"context"
	"log/slog"

	"github.com/starford/geoplan/internal/checksum"
	"github.com/starford/geoplan/internal/planparse"
	"github.com/starford/geoplan/internal/storage"
)

// SyncPlans walks the plan library and registers new or changed plan files.
// Plans whose file disappeared are kept (their positions stay addressable)
// and reported through the returned slice.
func SyncPlans(ctx context.Context, db *DB, lib storage.Provider, logger *slog.Logger) (missing []string, err error) {
	metas, err := lib.List("")
	if err != nil {
		return nil, err
	}

	checksums, err := db.PlanChecksums(ctx)
	if err != nil {
		return nil, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := lib.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("file", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := registerPlanFile(ctx, db, m.Path, data); err != nil {
			logger.Warn("sync: register failed", slog.String("file", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: registered", slog.String("file", m.Path))
		}
	}

	for f := range checksums {
		if _, ok := disk[f]; !ok {
			logger.Warn("sync: plan file missing", slog.String("file", f))
			missing = append(missing, f)
		}
	}
	return missing, nil
}

// registerPlanFile parses data and upserts the plan row.
func registerPlanFile(ctx context.Context, db *DB, file string, data []byte) error {
	res, err := planparse.Parse(file, data)
	if err != nil {
		return err
	}
	_, err = db.UpsertPlanFile(ctx, file, res, checksum.Sum(data))
	return err
}
