package repository

import (
	"context"
	"errors"
	"strings"

	"ton_miner/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := r.db.QueryRow(ctx, `SELECT payload::text FROM state_documents WHERE key = $1`, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Put stores payload as jsonb. Payload that is not valid JSON is rejected by postgres.
func (r *PostgresRepository) Put(ctx context.Context, key string, payload []byte) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO state_documents (key, payload, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
	`, key, string(payload))
	return err
}

func (r *PostgresRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM state_documents WHERE key = $1`, key)
	return err
}

func (r *PostgresRepository) ClaimReferralCode(ctx context.Context, code string, userID int64) error {
	code = strings.ToUpper(code)
	tag, err := r.db.Exec(ctx, `
		INSERT INTO referral_codes (code, user_id) VALUES ($1, $2)
		ON CONFLICT (code) DO NOTHING
	`, code, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		// unique violation on user_id: the user already owns another code
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrCodeTaken
		}
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	owner, err := r.ResolveReferralCode(ctx, code)
	if err != nil {
		return err
	}
	if owner != userID {
		return ErrCodeTaken
	}
	return nil
}

func (r *PostgresRepository) ResolveReferralCode(ctx context.Context, code string) (int64, error) {
	var userID int64
	err := r.db.QueryRow(ctx, `SELECT user_id FROM referral_codes WHERE code = $1`, strings.ToUpper(code)).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return userID, err
}

func (r *PostgresRepository) ReferralCodeFor(ctx context.Context, userID int64) (string, error) {
	var code string
	err := r.db.QueryRow(ctx, `SELECT code FROM referral_codes WHERE user_id = $1`, userID).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return code, err
}

func (r *PostgresRepository) IndexWithdrawal(ctx context.Context, ref WithdrawalRef) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO withdrawal_index (id, user_id, amount, address, status, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status
	`, ref.ID, ref.UserID, ref.Amount.String(), ref.Address, string(ref.Status), ref.CreatedAt)
	return err
}

func (r *PostgresRepository) FindWithdrawal(ctx context.Context, id string) (WithdrawalRef, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, amount::text, address, status, created_at
		FROM withdrawal_index
		WHERE id = $1
	`, id)
	ref, err := scanWithdrawalRef(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return WithdrawalRef{}, ErrNotFound
	}
	return ref, err
}

func (r *PostgresRepository) ListWithdrawals(ctx context.Context, status domain.WithdrawalStatus, limit int) ([]WithdrawalRef, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, amount::text, address, status, created_at
		FROM withdrawal_index
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, string(status), clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]WithdrawalRef, 0)
	for rows.Next() {
		ref, err := scanWithdrawalRef(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func scanWithdrawalRef(row pgx.Row) (WithdrawalRef, error) {
	var (
		ref    WithdrawalRef
		amount string
		status string
	)
	if err := row.Scan(&ref.ID, &ref.UserID, &amount, &ref.Address, &status, &ref.CreatedAt); err != nil {
		return WithdrawalRef{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return WithdrawalRef{}, err
	}
	ref.Amount = d
	ref.Status = domain.WithdrawalStatus(status)
	return ref, nil
}
