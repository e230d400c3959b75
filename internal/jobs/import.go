package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mydia/mydia/internal/importer"
)

// KindImport is the job kind for import reconciliation runs.
const KindImport = "import"

type importArgs struct {
	DownloadID  int64 `json:"download_id"`
	SnoozeCount int   `json:"snooze_count"`
}

// ImportScheduler enqueues import jobs for completed downloads. It is
// what the download manager calls when a client reports completion.
type ImportScheduler struct {
	store *Store
}

func NewImportScheduler(store *Store) *ImportScheduler {
	return &ImportScheduler{store: store}
}

// ScheduleImport queues one import run per download. The unique key
// collapses duplicate scheduling from repeated refresh cycles.
func (s *ImportScheduler) ScheduleImport(ctx context.Context, downloadID int64) error {
	_, err := s.store.Schedule(KindImport, importArgs{DownloadID: downloadID}, Options{
		UniqueKey: fmt.Sprintf("import-%d", downloadID),
	})
	return err
}

// RegisterImportHandler binds the import reconciler to the queue. The
// snooze counter travels in the job arguments, separate from the
// attempt counter which only tracks handler errors.
func RegisterImportHandler(r *Runner, imp *importer.Importer) {
	r.Register(KindImport, func(ctx context.Context, job *Job) (*Reschedule, error) {
		var args importArgs
		if err := json.Unmarshal(job.Args, &args); err != nil {
			return nil, fmt.Errorf("decode import args: %w", err)
		}

		res, err := imp.Run(ctx, args.DownloadID, args.SnoozeCount)
		if err != nil {
			return nil, err
		}
		if res.Done {
			return nil, nil
		}
		return &Reschedule{
			After: res.RetryIn,
			Args:  importArgs{DownloadID: args.DownloadID, SnoozeCount: res.SnoozeCount},
		}, nil
	})
}
