package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/tableflow/internal/domain"
)

const tablesSchema = `
	CREATE TABLE IF NOT EXISTS tableflow_tables (
		name       TEXT PRIMARY KEY,
		columns    JSONB NOT NULL,
		rows       JSONB NOT NULL,
		row_count  INTEGER NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)
`

// TableRepo — хранилище таблиц в PostgreSQL.
//
// Таблица хранится одной записью: колонки и строки в JSONB.
type TableRepo struct {
	pool *pgxpool.Pool
}

// NewTableRepo создаёт новый TableRepo.
func NewTableRepo(pool *pgxpool.Pool) *TableRepo {
	return &TableRepo{pool: pool}
}

// EnsureSchema создаёт таблицу хранения, если её нет.
func (r *TableRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, tablesSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Load возвращает таблицу по имени.
func (r *TableRepo) Load(ctx context.Context, name string) (*domain.Table, error) {
	query := `
		SELECT columns, rows
		FROM tableflow_tables
		WHERE name = $1
	`

	var columnsJSON, rowsJSON []byte
	err := r.pool.QueryRow(ctx, query, name).Scan(&columnsJSON, &rowsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("select table: %w", err)
	}

	var columns []string
	if err := json.Unmarshal(columnsJSON, &columns); err != nil {
		return nil, fmt.Errorf("%w: unmarshal columns: %v", ErrInvalidData, err)
	}
	var rows []domain.Row
	if err := json.Unmarshal(rowsJSON, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal rows: %v", ErrInvalidData, err)
	}

	table, err := domain.NewTable(columns, rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return table, nil
}

// Save создаёт или перезаписывает таблицу.
func (r *TableRepo) Save(ctx context.Context, name string, table *domain.Table) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	columnsJSON, err := json.Marshal(table.Columns)
	if err != nil {
		return fmt.Errorf("%w: marshal columns: %v", ErrWriteFailed, err)
	}
	rowsJSON, err := json.Marshal(table.Rows)
	if err != nil {
		return fmt.Errorf("%w: marshal rows: %v", ErrWriteFailed, err)
	}

	query := `
		INSERT INTO tableflow_tables (name, columns, rows, row_count, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE
		SET columns = EXCLUDED.columns,
		    rows = EXCLUDED.rows,
		    row_count = EXCLUDED.row_count,
		    updated_at = EXCLUDED.updated_at
	`
	_, err = r.pool.Exec(ctx, query, name, columnsJSON, rowsJSON, table.Len(), time.Now())
	if err != nil {
		return fmt.Errorf("%w: upsert table: %v", ErrWriteFailed, err)
	}
	return nil
}

// List возвращает список сохранённых таблиц.
// Size — количество строк.
func (r *TableRepo) List(ctx context.Context) ([]SourceInfo, error) {
	query := `
		SELECT name, row_count, updated_at
		FROM tableflow_tables
		ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	sources := make([]SourceInfo, 0)
	for rows.Next() {
		var s SourceInfo
		var rowCount int
		if err := rows.Scan(&s.Name, &rowCount, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		s.Size = int64(rowCount)
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return sources, nil
}
