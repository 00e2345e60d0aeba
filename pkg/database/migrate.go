package database

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
)

// Table names shared with the store package
const (
	TableAnalyses    = "analyses"
	TableCompetitors = "competitors"
)

// schema is written with a {{ts}} placeholder for the timestamp type,
// which differs between postgres and sqlite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		product TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'DRAFT',
		summary TEXT,
		aggregate_score DOUBLE PRECISION,
		owner_id TEXT NOT NULL,
		organization_id TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_org ON analyses (organization_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses (status, updated_at)`,
	`CREATE TABLE IF NOT EXISTS competitors (
		id TEXT PRIMARY KEY,
		analysis_id TEXT NOT NULL REFERENCES analyses (id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		url TEXT,
		description TEXT,
		category TEXT,
		tagline TEXT,
		features TEXT NOT NULL DEFAULT '[]',
		pricing TEXT,
		scrape_status TEXT NOT NULL DEFAULT 'PENDING',
		scrape_error TEXT,
		scraped_at {{ts}},
		scraped_data TEXT,
		overall_score DOUBLE PRECISION,
		feature_score DOUBLE PRECISION,
		pricing_score DOUBLE PRECISION,
		ux_score DOUBLE PRECISION,
		market_score DOUBLE PRECISION,
		scores TEXT,
		strengths TEXT NOT NULL DEFAULT '[]',
		weaknesses TEXT NOT NULL DEFAULT '[]',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_competitors_analysis ON competitors (analysis_id, scrape_status)`,
}

// Migrate creates the tables and indexes when missing
func (c *Client) Migrate(ctx context.Context) error {
	ts := "TIMESTAMPTZ"
	if c.dialect == dialect.SQLite {
		ts = "DATETIME"
	}

	for _, stmt := range schema {
		if err := c.Driver.Exec(ctx, strings.ReplaceAll(stmt, "{{ts}}", ts), []any{}, nil); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
