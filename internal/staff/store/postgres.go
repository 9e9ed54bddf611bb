package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"enrolld/internal/staff/models"
	id "enrolld/pkg/domain"
	"enrolld/pkg/platform/sentinel"
	"enrolld/pkg/platform/tx"
)

// PostgresStore persists staff accounts in the staff_accounts table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const staffColumns = `
	id, org_id, email, name, password_hash, role,
	created_at, updated_at, last_login_at`

func (s *PostgresStore) Create(ctx context.Context, account *models.StaffAccount) error {
	query := `INSERT INTO staff_accounts (` + staffColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		account.ID.String(), account.OrgID.String(),
		strings.ToLower(account.Email), account.Name,
		account.PasswordHash, string(account.Role),
		account.CreatedAt, account.UpdatedAt, account.LastLoginAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert staff account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, staffID id.StaffID) (*models.StaffAccount, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_accounts WHERE id = $1`

	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, staffID.String())
	return scanStaffAccount(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.StaffAccount, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_accounts WHERE email = $1`

	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, strings.ToLower(email))
	return scanStaffAccount(row)
}

func (s *PostgresStore) Update(ctx context.Context, account *models.StaffAccount) error {
	query := `UPDATE staff_accounts SET
		email = $2, name = $3, password_hash = $4, role = $5,
		updated_at = $6, last_login_at = $7
		WHERE id = $1`

	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		account.ID.String(), strings.ToLower(account.Email), account.Name,
		account.PasswordHash, string(account.Role),
		account.UpdatedAt, account.LastLoginAt,
	)
	if err != nil {
		return fmt.Errorf("update staff account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update staff account: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByOrg(ctx context.Context, orgID id.OrgID) ([]*models.StaffAccount, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_accounts WHERE org_id = $1 ORDER BY email`

	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query, orgID.String())
	if err != nil {
		return nil, fmt.Errorf("list staff accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.StaffAccount
	for rows.Next() {
		account, err := scanStaffAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStaffAccount(row rowScanner) (*models.StaffAccount, error) {
	var (
		account models.StaffAccount
		staffID string
		orgID   string
		role    string
	)
	err := row.Scan(&staffID, &orgID, &account.Email, &account.Name,
		&account.PasswordHash, &role,
		&account.CreatedAt, &account.UpdatedAt, &account.LastLoginAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan staff account: %w", err)
	}

	account.ID, err = id.ParseStaffID(staffID)
	if err != nil {
		return nil, fmt.Errorf("scan staff account: %w", err)
	}
	account.OrgID, err = id.ParseOrgID(orgID)
	if err != nil {
		return nil, fmt.Errorf("scan staff account: %w", err)
	}
	account.Role = models.Role(role)
	return &account, nil
}
