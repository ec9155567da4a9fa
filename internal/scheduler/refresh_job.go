package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/mkarlis/rebalancer/internal/database"
)

// Refresher recomputes and re-caches analysis reports.
// Implemented by services.AnalysisService.
type Refresher interface {
	Refresh() error
}

// RefreshJob periodically recomputes the portfolio analysis so the report
// cache stays warm and stale entries are pruned. After a successful refresh
// it checkpoints the databases so their WAL files do not grow unbounded
// between recomputes.
type RefreshJob struct {
	refresher Refresher
	dbs       []*database.DB
	log       zerolog.Logger
}

// NewRefreshJob creates the analysis refresh job.
func NewRefreshJob(refresher Refresher, dbs []*database.DB, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		refresher: refresher,
		dbs:       dbs,
		log:       log.With().Str("job", "analysis_refresh").Logger(),
	}
}

// Name returns the job name for scheduler logging.
func (j *RefreshJob) Name() string {
	return "analysis_refresh"
}

// Run recomputes cached reports for every scope, then checkpoints the WALs.
func (j *RefreshJob) Run() error {
	if err := j.refresher.Refresh(); err != nil {
		return err
	}

	for _, db := range j.dbs {
		if err := db.WALCheckpoint(""); err != nil {
			// Checkpoint failures never fail the refresh; sqlite will retry
			// on the autocheckpoint cadence.
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
		}
	}

	return nil
}
