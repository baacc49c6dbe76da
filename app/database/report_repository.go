package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type ReportRepository struct {
	db *DB
}

func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Save inserts the report and returns its ID. CreatedAt defaults to now.
func (r *ReportRepository) Save(ctx context.Context, report *Report) (int64, error) {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO reports (
			snapshot_date, reference_date, content,
			added_count, removed_count, retained_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, report.SnapshotDate, report.ReferenceDate, report.Content,
		report.Summary.Added, report.Summary.Removed, report.Summary.Retained,
		report.CreatedAt.UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to save report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get report id: %w", err)
	}
	report.ID = id

	return id, nil
}

func (r *ReportRepository) Latest(ctx context.Context) (*Report, error) {
	reports, err := r.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, ErrReportNotFound
	}
	return &reports[0], nil
}

// List returns the most recent reports first
func (r *ReportRepository) List(ctx context.Context, limit int) ([]Report, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, snapshot_date, reference_date, content,
		       added_count, removed_count, retained_count, created_at
		FROM reports
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := make([]Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}

	return reports, nil
}

func scanReport(rows *sql.Rows) (*Report, error) {
	var report Report
	var createdAt string

	err := rows.Scan(
		&report.ID, &report.SnapshotDate, &report.ReferenceDate, &report.Content,
		&report.Summary.Added, &report.Summary.Removed, &report.Summary.Retained,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan report row: %w", err)
	}

	if report.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at for report %d: %w", report.ID, err)
	}

	return &report, nil
}
