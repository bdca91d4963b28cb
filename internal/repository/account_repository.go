package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/calebms/postbridge/internal/models"
)

type SocialAccountRepository interface {
	Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.SocialAccount, error)
	GetDefault(ctx context.Context, userID int64, platform string, orgID int64) (*models.SocialAccount, error)
	ListInfoByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	ListExpiring(ctx context.Context, until time.Time) ([]*models.SocialAccount, error)
	CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error)
	SetToken(ctx context.Context, accountID int64, sa *models.SocialAccount) error
	Deactivate(ctx context.Context, id int64) error
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

const accountColumns = `id, user_id, org_id, platform, account_type, account_id,
	account_name, account_username, access_token, refresh_token, token_expires_at,
	is_active, is_default, metadata, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*models.SocialAccount, error) {
	var sa models.SocialAccount
	var meta []byte
	err := row.Scan(&sa.ID, &sa.UserID, &sa.OrgID, &sa.Platform, &sa.AccountType,
		&sa.AccountID, &sa.AccountName, &sa.AccountUsername, &sa.AccessToken,
		&sa.RefreshToken, &sa.TokenExpiresAt, &sa.IsActive, &sa.IsDefault, &meta,
		&sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &sa.Metadata); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
	}
	return &sa, nil
}

// Upsert links an account in one serializable transaction. An existing row
// for (user, platform, external account id, org) gets its credential and
// metadata refreshed in place and is reactivated without touching
// is_default; a new row becomes the default only when no other active
// default exists for (user, platform, org).
func (r *socialAccountRepository) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	meta, err := json.Marshal(sa.Metadata)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	defer tx.Rollback()

	var id int64
	selectQuery := `
		SELECT id FROM social_accounts
		WHERE user_id = $1 AND platform = $2 AND account_id = $3 AND org_id = $4
		FOR UPDATE
	`
	err = tx.QueryRowContext(ctx, selectQuery, sa.UserID, sa.Platform, sa.AccountID, sa.OrgID).Scan(&id)
	switch {
	case err == nil:
		updateQuery := `
			UPDATE social_accounts
			SET account_type = $2,
				account_name = $3,
				account_username = $4,
				access_token = $5,
				refresh_token = $6,
				token_expires_at = $7,
				metadata = $8,
				is_active = TRUE,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = $1
		`
		_, err = tx.ExecContext(ctx, updateQuery, id, sa.AccountType, sa.AccountName,
			sa.AccountUsername, sa.AccessToken, sa.RefreshToken, sa.TokenExpiresAt, meta)
		if err != nil {
			slog.Info(err.Error())
			return 0, err
		}

	case err == sql.ErrNoRows:
		insertQuery := `
			INSERT INTO social_accounts(
				user_id, org_id, platform, account_type, account_id,
				account_name, account_username, access_token, refresh_token,
				token_expires_at, metadata, is_active, is_default
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, TRUE,
				NOT EXISTS (
					SELECT 1 FROM social_accounts
					WHERE user_id = $1 AND platform = $3 AND org_id = $2
						AND is_active AND is_default
				))
			RETURNING id
		`
		err = tx.QueryRowContext(ctx, insertQuery, sa.UserID, sa.OrgID, sa.Platform,
			sa.AccountType, sa.AccountID, sa.AccountName, sa.AccountUsername,
			sa.AccessToken, sa.RefreshToken, sa.TokenExpiresAt, meta).Scan(&id)
		if err != nil {
			slog.Info(err.Error())
			return 0, err
		}

	default:
		slog.Info(err.Error())
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts WHERE id = $1`
	sa, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return sa, nil
}

func (r *socialAccountRepository) GetDefault(ctx context.Context, userID int64, platform string, orgID int64) (*models.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts
		WHERE user_id = $1 AND platform = $2 AND org_id = $3 AND is_active AND is_default`
	sa, err := scanAccount(r.db.QueryRowContext(ctx, query, userID, platform, orgID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return sa, nil
}

// ListInfoByUserID returns active accounts without credential columns.
func (r *socialAccountRepository) ListInfoByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	query := `SELECT id, platform, account_type, account_id, account_name,
		account_username, is_default, created_at
		FROM social_accounts WHERE user_id = $1 AND is_active
		ORDER BY platform, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		var sa models.SocialAccount
		err := rows.Scan(&sa.ID, &sa.Platform, &sa.AccountType, &sa.AccountID,
			&sa.AccountName, &sa.AccountUsername, &sa.IsDefault, &sa.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		sa.UserID = userID
		sa.IsActive = true
		accounts = append(accounts, &sa)
	}
	return accounts, rows.Err()
}

func (r *socialAccountRepository) ListExpiring(ctx context.Context, until time.Time) ([]*models.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts
		WHERE is_active AND token_expires_at <= $1
		ORDER BY token_expires_at`
	rows, err := r.db.QueryContext(ctx, query, until)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := scanAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, sa)
	}
	return accounts, rows.Err()
}

func (r *socialAccountRepository) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	query := `SELECT 1 FROM social_accounts WHERE id = $1 AND user_id = $2 AND is_active`

	var result int
	err := r.db.QueryRowContext(ctx, query, accountID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}
	return result == 1, nil
}

func (r *socialAccountRepository) SetToken(ctx context.Context, accountID int64, sa *models.SocialAccount) error {
	query := `
		UPDATE social_accounts
		SET access_token = COALESCE(NULLIF($2, ''), access_token),
			refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
			token_expires_at = $4,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, accountID, sa.AccessToken, sa.RefreshToken, sa.TokenExpiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Deactivate soft-deletes a linked account. Rows are never hard-deleted
// here.
func (r *socialAccountRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE social_accounts
		SET is_active = FALSE, is_default = FALSE, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
