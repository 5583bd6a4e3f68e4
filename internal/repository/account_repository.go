package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"threadline/internal/models"
)

type AccountRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	ListByTenantID(ctx context.Context, tenantID int64) ([]*models.Account, error)
	ListTokenExpiring(ctx context.Context, initialTime, finalTime time.Time) ([]*models.Account, error)
	SetAccessToken(ctx context.Context, accountID int64, encryptedToken string, expiresAt time.Time) error
	Remove(ctx context.Context, id int64) error
}

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `id, tenant_id, username, posting_method, remote_user_id,
	access_token, token_expires_at, session_token, csrf_token, device_id, machine_id,
	account_status, created_at, updated_at`

func scanAccount(row interface{ Scan(...interface{}) error }) (*models.Account, error) {
	var acc models.Account
	err := row.Scan(&acc.ID, &acc.TenantID, &acc.Username, &acc.PostingMethod,
		&acc.RemoteUserID, &acc.AccessToken, &acc.TokenExpiresAt, &acc.SessionToken,
		&acc.CSRFToken, &acc.DeviceID, &acc.MachineID, &acc.AccountStatus,
		&acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return acc, nil
}

func (r *accountRepository) ListByTenantID(ctx context.Context, tenantID int64) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE tenant_id = $1`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

func (r *accountRepository) ListTokenExpiring(ctx context.Context, initialTime, finalTime time.Time) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE posting_method = $1
		AND ((token_expires_at BETWEEN $2 AND $3) OR token_expires_at < $2)`

	rows, err := r.db.QueryContext(ctx, query, models.PostingMethodGraph, initialTime, finalTime)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, acc)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return accounts, nil
}

func (r *accountRepository) SetAccessToken(ctx context.Context, accountID int64, encryptedToken string, expiresAt time.Time) error {
	query := `
		UPDATE accounts
		SET access_token = $1,
			token_expires_at = $2,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, encryptedToken, expiresAt, accountID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *accountRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM accounts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
