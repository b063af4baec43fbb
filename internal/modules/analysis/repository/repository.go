package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"envscope/internal/modules/analysis/types"
)

//go:embed sql/insert-analysis.sql
var insertAnalysisSQL string

//go:embed sql/get-latest-analyses.sql
var getLatestAnalysesSQL string

//go:embed sql/get-analyses.sql
var getAnalysesSQL string

//go:embed sql/get-analyses-count.sql
var getAnalysesCountSQL string

// timeLayout has a fixed-width fraction so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type AnalysisRepository interface {
	InsertAnalysis(ctx context.Context, sessionID string, ts time.Time, rec *types.EnvironmentalRecord) (int64, error)
	GetLatestAnalyses(ctx context.Context, sessionID string, limit int) ([]types.Analysis, error)
	GetAnalyses(ctx context.Context, sessionID string, from time.Time, to time.Time, limit int, offset int) ([]types.Analysis, error)
	GetAnalysesCount(ctx context.Context, sessionID string, from time.Time, to time.Time) (int, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) AnalysisRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) InsertAnalysis(ctx context.Context, sessionID string, ts time.Time, rec *types.EnvironmentalRecord) (int64, error) {
	if rec == nil {
		return 0, fmt.Errorf("insert analysis: nil record")
	}
	if sessionID == "" {
		return 0, fmt.Errorf("insert analysis: empty session id")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encode analysis payload: %w", err)
	}

	var azimuth, sunElevation, direction, speed, height, slope, temperature, humidity any
	if rec.SunPath != nil {
		azimuth, sunElevation = nullable(rec.SunPath.Azimuth), nullable(rec.SunPath.Elevation)
	}
	if rec.Wind != nil {
		if rec.Wind.Direction != nil && rec.Wind.Direction.Valid() {
			direction = float64(*rec.Wind.Direction)
		}
		speed = nullable(rec.Wind.Speed)
	}
	if rec.Elevation != nil {
		height, slope = nullable(rec.Elevation.Height), nullable(rec.Elevation.Slope)
	}
	if rec.Climate != nil {
		temperature, humidity = nullable(rec.Climate.Temperature), nullable(rec.Climate.Humidity)
	}

	res, err := r.db.ExecContext(ctx, insertAnalysisSQL,
		sessionID, formatTime(ts),
		azimuth, sunElevation,
		direction, speed,
		height, slope,
		temperature, humidity,
		string(payload),
	)
	if err != nil {
		return 0, fmt.Errorf("insert analysis: %w", err)
	}
	return res.LastInsertId()
}

func (r *repositoryImpl) GetLatestAnalyses(ctx context.Context, sessionID string, limit int) ([]types.Analysis, error) {
	rows, err := r.db.QueryContext(ctx, getLatestAnalysesSQL, sessionID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close latest analyses rows", "error", err)
		}
	}()
	return scanAnalyses(rows)
}

func (r *repositoryImpl) GetAnalyses(ctx context.Context, sessionID string, from time.Time, to time.Time, limit int, offset int) ([]types.Analysis, error) {
	rows, err := r.db.QueryContext(ctx, getAnalysesSQL, sessionID, sessionID, formatTime(from), formatTime(to), limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close analyses rows", "error", err)
		}
	}()
	return scanAnalyses(rows)
}

func (r *repositoryImpl) GetAnalysesCount(ctx context.Context, sessionID string, from time.Time, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, getAnalysesCountSQL, sessionID, sessionID, formatTime(from), formatTime(to)).Scan(&n)
	return n, err
}

func scanAnalyses(rows *sql.Rows) ([]types.Analysis, error) {
	var out []types.Analysis
	for rows.Next() {
		var (
			a       types.Analysis
			ts      string
			payload string
		)
		if err := rows.Scan(
			&a.ID, &a.SessionID, &ts,
			&a.SunAzimuth, &a.SunElevation, &a.WindDirection, &a.WindSpeed,
			&a.Height, &a.Slope, &a.TemperatureC, &a.HumidityPct,
			&payload,
		); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		a.CreatedAt = t
		if err := json.Unmarshal([]byte(payload), &a.Record); err != nil {
			return nil, fmt.Errorf("decode payload of analysis %d: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullable(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
