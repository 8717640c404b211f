// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/apperr"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/database/schema"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/dberr"
)

// PostgresStore reads the catalog from the procbridge.catalog table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a catalog store over the shared pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var catalogColumns = strings.Join(schema.ProcBridgeCatalog.Columns(), ", ")

// FindByCode looks up one entry by its exact code.
func (repository *PostgresStore) FindByCode(ctx context.Context, code string) (*Entry, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		catalogColumns, schema.ProcBridgeCatalog.Table, schema.ProcBridgeCatalog.Code)

	entry, err := scanEntry(repository.pool.QueryRow(ctx, query, code))
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, apperr.NotFoundMsg(fmt.Sprintf("operation '%s' not found in catalog", code))
		}
		return nil, fmt.Errorf("postgres_catalog_find_failed: %w", err)
	}

	return entry, nil
}

// List returns every entry ordered by code.
func (repository *PostgresStore) List(ctx context.Context) ([]Entry, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s ASC`,
		catalogColumns, schema.ProcBridgeCatalog.Table, schema.ProcBridgeCatalog.Code)

	rows, err := repository.pool.Query(ctx, query)
	if err != nil {
		return nil, dberr.Wrap(err, "list_catalog")
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "scan_catalog_entry")
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "list_catalog")
	}

	return entries, nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		entry Entry
		roles string
	)

	err := row.Scan(
		&entry.Code,
		&entry.TargetName,
		&entry.Description,
		&entry.RequiresIdentity,
		&roles,
		&entry.Transactional,
		&entry.Active,
	)
	if err != nil {
		return nil, err
	}

	entry.AllowedRoles = ParseRoles(roles)
	return &entry, nil
}
