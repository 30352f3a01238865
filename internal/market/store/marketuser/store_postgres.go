package marketuser

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"market/internal/market/models"
	"market/internal/platform/postgres"
	id "market/pkg/domain"
	"market/pkg/platform/sentinel"
)

// PostgresStore persists market users and their payment details. Save should run
// inside a transaction so the record and its details land together.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, m *models.MarketUser) error {
	if m == nil {
		return fmt.Errorf("market user is required")
	}
	exec := postgres.ExecutorFrom(ctx, s.db)

	var assigned int64
	err := exec.QueryRowContext(ctx, `
		INSERT INTO market_users (
			user_id, legal_form_id, balance_in_cents, is_terms_accepted,
			email, legal_address, legal_name, personal_name,
			country, payment_regime, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		uuid.UUID(m.UserID),
		int64(m.LegalFormID),
		m.BalanceInCents,
		m.IsTermsAccepted,
		m.Email,
		m.LegalAddress,
		m.LegalName,
		m.PersonalName,
		m.Country,
		m.PaymentRegime,
		m.CreatedAt,
	).Scan(&assigned)
	if err != nil {
		return fmt.Errorf("insert market user: %w", err)
	}

	if len(m.PaymentDetails) > 0 {
		kinds := make([]string, len(m.PaymentDetails))
		addresses := make([]string, len(m.PaymentDetails))
		for i, d := range m.PaymentDetails {
			kinds[i] = d.Kind
			addresses[i] = d.Address
		}
		// Batch insert using unnest for one round trip.
		_, err := exec.ExecContext(ctx, `
			INSERT INTO payment_details (market_user_id, kind, address)
			SELECT $1, unnest($2::text[]), unnest($3::text[])
		`, assigned, pq.Array(kinds), pq.Array(addresses))
		if err != nil {
			return fmt.Errorf("insert payment details: %w", err)
		}
	}

	m.ID = id.MarketUserID(assigned)
	return nil
}

const selectMarketUser = `
	SELECT id, user_id, legal_form_id, balance_in_cents, is_terms_accepted,
		   email, legal_address, legal_name, personal_name,
		   country, payment_regime, created_at
	FROM market_users
`

func (s *PostgresStore) FindByID(ctx context.Context, marketUserID id.MarketUserID) (*models.MarketUser, error) {
	exec := postgres.ExecutorFrom(ctx, s.db)
	m, err := scanMarketUser(exec.QueryRowContext(ctx, selectMarketUser+` WHERE id = $1`, int64(marketUserID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("market user %d: %w", marketUserID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find market user: %w", err)
	}
	details, err := s.paymentDetails(ctx, exec, []int64{int64(m.ID)})
	if err != nil {
		return nil, err
	}
	m.PaymentDetails = details[int64(m.ID)]
	return m, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.MarketUser, error) {
	exec := postgres.ExecutorFrom(ctx, s.db)
	rows, err := exec.QueryContext(ctx, selectMarketUser+` WHERE user_id = $1 ORDER BY id`, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list market users: %w", err)
	}
	defer rows.Close()

	var (
		out []*models.MarketUser
		ids []int64
	)
	for rows.Next() {
		m, err := scanMarketUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan market user: %w", err)
		}
		out = append(out, m)
		ids = append(ids, int64(m.ID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market users: %w", err)
	}
	if len(ids) == 0 {
		return out, nil
	}

	details, err := s.paymentDetails(ctx, exec, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range out {
		m.PaymentDetails = details[int64(m.ID)]
	}
	return out, nil
}

func (s *PostgresStore) paymentDetails(ctx context.Context, exec postgres.Executor, ids []int64) (map[int64][]models.PaymentDetail, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT market_user_id, kind, address
		FROM payment_details
		WHERE market_user_id = ANY($1::bigint[])
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query payment details: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]models.PaymentDetail, len(ids))
	for _, i := range ids {
		out[i] = []models.PaymentDetail{}
	}
	for rows.Next() {
		var (
			owner int64
			d     models.PaymentDetail
		)
		if err := rows.Scan(&owner, &d.Kind, &d.Address); err != nil {
			return nil, fmt.Errorf("scan payment detail: %w", err)
		}
		out[owner] = append(out[owner], d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment details: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMarketUser(row rowScanner) (*models.MarketUser, error) {
	var (
		m      models.MarketUser
		mID    int64
		userID uuid.UUID
		formID int64
	)
	if err := row.Scan(&mID, &userID, &formID, &m.BalanceInCents, &m.IsTermsAccepted,
		&m.Email, &m.LegalAddress, &m.LegalName, &m.PersonalName,
		&m.Country, &m.PaymentRegime, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.ID = id.MarketUserID(mID)
	m.UserID = id.UserID(userID)
	m.LegalFormID = id.LegalFormID(formID)
	return &m, nil
}
