// Package store persists accepted buoy observations so the supervisor's
// last-known-good fallback survives process restarts. The Postgres
// implementation is the operational one; the in-memory implementation backs
// tests and DB-less deployments.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/storm-surge-forecast/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS buoy_observations (
	buoy_id     TEXT NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL,
	quality     TEXT NOT NULL,
	water_level DOUBLE PRECISION,
	wind_speed  DOUBLE PRECISION,
	wind_direction DOUBLE PRECISION,
	pressure    DOUBLE PRECISION,
	wave_height DOUBLE PRECISION,
	PRIMARY KEY (buoy_id, observed_at)
)`

// Postgres stores observations in a buoy_observations table keyed by
// (buoy_id, observed_at). Inserts are idempotent: replaying a run re-inserts
// the same rows and conflicts are ignored.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database and ensures the schema exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect observation store: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure observation schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Put inserts observations, ignoring rows already present.
func (p *Postgres) Put(ctx context.Context, obs []domain.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, o := range obs {
		batch.Queue(`
			INSERT INTO buoy_observations
				(buoy_id, observed_at, quality, water_level, wind_speed, wind_direction, pressure, wave_height)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (buoy_id, observed_at) DO NOTHING`,
			o.BuoyID, o.Timestamp, string(o.Quality),
			o.WaterLevel, o.WindSpeed, o.WindDirection, o.Pressure, o.WaveHeight,
		)
	}
	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range obs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("persist observation: %w", err)
		}
	}
	return nil
}

// Latest returns the newest stored observation for a buoy.
func (p *Postgres) Latest(ctx context.Context, buoyID string) (domain.Observation, bool, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT buoy_id, observed_at, quality, water_level, wind_speed, wind_direction, pressure, wave_height
		FROM buoy_observations
		WHERE buoy_id = $1
		ORDER BY observed_at DESC
		LIMIT 1`, buoyID)

	var (
		o       domain.Observation
		quality string
	)
	err := row.Scan(&o.BuoyID, &o.Timestamp, &quality,
		&o.WaterLevel, &o.WindSpeed, &o.WindDirection, &o.Pressure, &o.WaveHeight)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Observation{}, false, nil
	}
	if err != nil {
		return domain.Observation{}, false, fmt.Errorf("load latest observation: %w", err)
	}
	o.Timestamp = o.Timestamp.UTC()
	o.Quality = domain.QualityFlag(quality)
	return o, true, nil
}

// History returns the buoy's stored observations at or after since, in
// timestamp-ascending order.
func (p *Postgres) History(ctx context.Context, buoyID string, since time.Time) ([]domain.Observation, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT buoy_id, observed_at, quality, water_level, wind_speed, wind_direction, pressure, wave_height
		FROM buoy_observations
		WHERE buoy_id = $1 AND observed_at >= $2
		ORDER BY observed_at ASC`, buoyID, since)
	if err != nil {
		return nil, fmt.Errorf("load observation history: %w", err)
	}
	defer rows.Close()

	var out []domain.Observation
	for rows.Next() {
		var (
			o       domain.Observation
			quality string
		)
		if err := rows.Scan(&o.BuoyID, &o.Timestamp, &quality,
			&o.WaterLevel, &o.WindSpeed, &o.WindDirection, &o.Pressure, &o.WaveHeight); err != nil {
			return nil, fmt.Errorf("scan observation history: %w", err)
		}
		o.Timestamp = o.Timestamp.UTC()
		o.Quality = domain.QualityFlag(quality)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load observation history: %w", err)
	}
	return out, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
