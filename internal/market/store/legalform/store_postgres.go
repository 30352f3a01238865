package legalform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"market/internal/market/models"
	"market/internal/platform/postgres"
	id "market/pkg/domain"
	"market/pkg/platform/sentinel"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByID(ctx context.Context, formID id.LegalFormID) (*models.LegalForm, error) {
	var f models.LegalForm
	err := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, name, description FROM legal_forms WHERE id = $1`, int64(formID),
	).Scan(&f.ID, &f.Name, &f.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("legal form %d: %w", formID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find legal form: %w", err)
	}
	return &f, nil
}

func (s *PostgresStore) Save(ctx context.Context, form *models.LegalForm) error {
	if form == nil {
		return fmt.Errorf("legal form is required")
	}
	_, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO legal_forms (id, name, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description
	`, int64(form.ID), form.Name, form.Description)
	if err != nil {
		return fmt.Errorf("save legal form: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.LegalForm, error) {
	rows, err := postgres.ExecutorFrom(ctx, s.db).QueryContext(ctx,
		`SELECT id, name, description FROM legal_forms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list legal forms: %w", err)
	}
	defer rows.Close()

	var out []*models.LegalForm
	for rows.Next() {
		var f models.LegalForm
		if err := rows.Scan(&f.ID, &f.Name, &f.Description); err != nil {
			return nil, fmt.Errorf("scan legal form: %w", err)
		}
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legal forms: %w", err)
	}
	return out, nil
}
