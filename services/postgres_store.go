package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"matchConnectAPI/internal/apperror"
	"matchConnectAPI/internal/types/quota"
	"matchConnectAPI/internal/types/request"
)

const pgUniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

type PostgresStore struct {
	db     *pgxpool.Pool
	policy QuotaPolicy
}

func NewPostgresStore(db *pgxpool.Pool, policy QuotaPolicy) *PostgresStore {
	return &PostgresStore{db: db, policy: policy}
}

// q returns the transaction bound to ctx, or the pool.
func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

const requestColumns = `id, sender_id, receiver_id, status, message, created_at, responded_at`

func scanRequest(row pgx.Row) (*request.ConnectionRequest, error) {
	req := &request.ConnectionRequest{}
	err := row.Scan(
		&req.ID,
		&req.SenderID,
		&req.ReceiverID,
		&req.Status,
		&req.Message,
		&req.CreatedAt,
		&req.RespondedAt,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *PostgresStore) Create(ctx context.Context, senderID, receiverID string, message *string, at time.Time) (*request.ConnectionRequest, error) {
	if senderID == receiverID {
		return nil, apperror.ErrSelfRequest
	}

	query := `
	INSERT INTO connection_requests (id, sender_id, receiver_id, status, message, created_at)
	VALUES ($1, $2, $3, 'pending', $4, $5)
	RETURNING ` + requestColumns

	req, err := scanRequest(s.q(ctx).QueryRow(ctx, query, uuid.New(), senderID, receiverID, message, at))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, apperror.ErrDuplicateActiveRequest
		}
		return nil, apperror.Internal(fmt.Errorf("failed to create request: %w", err), "Failed to send request")
	}

	return req, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*request.ConnectionRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM connection_requests WHERE id = $1`

	req, err := scanRequest(s.q(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.ErrNotFound
		}
		return nil, apperror.Internal(fmt.Errorf("failed to get request: %w", err), "Failed to load request")
	}

	return req, nil
}

func (s *PostgresStore) ListForUser(ctx context.Context, userID string) (*request.MyRequests, error) {
	query := `
	SELECT ` + requestColumns + `
	FROM connection_requests
	WHERE (receiver_id = $1 AND status = 'pending')
	   OR (sender_id = $1 AND status = 'pending')
	   OR ((sender_id = $1 OR receiver_id = $1) AND status = 'accepted')
	ORDER BY created_at DESC
	`

	rows, err := s.q(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("failed to list requests: %w", err), "Failed to load requests")
	}
	defer rows.Close()

	result := request.NewMyRequests()
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, apperror.Internal(fmt.Errorf("failed to scan request: %w", err), "Failed to load requests")
		}
		result.Add(userID, req)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Internal(fmt.Errorf("failed to iterate requests: %w", err), "Failed to load requests")
	}

	return result, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, status request.Status, at time.Time) (*request.ConnectionRequest, error) {
	query := `
	UPDATE connection_requests
	SET status = $2, responded_at = $3
	WHERE id = $1 AND status = 'pending'
	RETURNING ` + requestColumns

	req, err := scanRequest(s.q(ctx).QueryRow(ctx, query, id, status, at))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.Internal(fmt.Errorf("failed to update request status: %w", err), "Failed to update request")
	}

	return nil, s.explainMiss(ctx, id, "")
}

func (s *PostgresStore) Cancel(ctx context.Context, id uuid.UUID, senderID string, at time.Time) (*request.ConnectionRequest, error) {
	query := `
	UPDATE connection_requests
	SET status = 'cancelled', responded_at = $3
	WHERE id = $1 AND sender_id = $2 AND status = 'pending'
	RETURNING ` + requestColumns

	req, err := scanRequest(s.q(ctx).QueryRow(ctx, query, id, senderID, at))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.Internal(fmt.Errorf("failed to cancel request: %w", err), "Failed to cancel request")
	}

	return nil, s.explainMiss(ctx, id, senderID)
}

// explainMiss works out why a conditional update matched no row.
func (s *PostgresStore) explainMiss(ctx context.Context, id uuid.UUID, senderID string) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if senderID != "" && current.SenderID != senderID {
		return apperror.ErrForbidden
	}
	return apperror.WithMeta(apperror.ErrInvalidTransition, map[string]any{"request": current})
}

func (s *PostgresStore) CheckAndConsume(ctx context.Context, userID string) (int, error) {
	day, err := time.Parse(quota.DayLayout, s.policy.Today())
	if err != nil {
		return 0, apperror.Internal(err, "Failed to compute quota day")
	}

	query := `
	INSERT INTO request_quotas (user_id, quota_day, sent_count)
	VALUES ($1, $2, 1)
	ON CONFLICT (user_id, quota_day) DO UPDATE
	SET sent_count = request_quotas.sent_count + 1
	WHERE request_quotas.sent_count < $3
	RETURNING sent_count
	`

	var sent int
	err = s.q(ctx).QueryRow(ctx, query, userID, day, s.policy.Limit).Scan(&sent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperror.WithMeta(apperror.ErrQuotaExceeded, map[string]any{"remainingRequests": 0})
		}
		return 0, apperror.Internal(fmt.Errorf("failed to consume quota: %w", err), "Failed to send request")
	}

	return quota.Remaining(s.policy.Limit, sent), nil
}

func (s *PostgresStore) Remaining(ctx context.Context, userID string) (int, error) {
	day, err := time.Parse(quota.DayLayout, s.policy.Today())
	if err != nil {
		return 0, apperror.Internal(err, "Failed to compute quota day")
	}

	var sent int
	err = s.q(ctx).QueryRow(ctx,
		`SELECT sent_count FROM request_quotas WHERE user_id = $1 AND quota_day = $2`,
		userID, day,
	).Scan(&sent)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, apperror.Internal(fmt.Errorf("failed to read quota: %w", err), "Failed to load quota")
	}

	return quota.Remaining(s.policy.Limit, sent), nil
}

func (s *PostgresStore) DailyLimit() int {
	return s.policy.Limit
}

func (s *PostgresStore) PruneBefore(ctx context.Context, day string) (int64, error) {
	cutoff, err := time.Parse(quota.DayLayout, day)
	if err != nil {
		return 0, fmt.Errorf("invalid quota day %q: %w", day, err)
	}

	result, err := s.q(ctx).Exec(ctx, `DELETE FROM request_quotas WHERE quota_day < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune quota rows: %w", err)
	}

	return result.RowsAffected(), nil
}
