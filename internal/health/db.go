// Package health provides health check implementations for external
// dependencies: the prediction database and the Redis rank cache.
package health

import (
	"context"
	"database/sql"
)

// DBChecker implements health checking for the snapshot database.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck reports database reachability.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	return d.db.PingContext(ctx)
}
