package repository

import (
	"context"
	"time"

	"envscope/internal/modules/analysis/types"
)

// RecordLog writes every extracted record to the analysis log.
type RecordLog struct {
	repo AnalysisRepository
	now  func() time.Time
}

func NewRecordLog(repo AnalysisRepository, now func() time.Time) *RecordLog {
	if now == nil {
		now = time.Now
	}
	return &RecordLog{repo: repo, now: now}
}

func (l *RecordLog) Name() string { return "analysis-log" }

func (l *RecordLog) RecordExtracted(ctx context.Context, sessionID string, rec *types.EnvironmentalRecord) error {
	_, err := l.repo.InsertAnalysis(ctx, sessionID, l.now(), rec)
	return err
}
