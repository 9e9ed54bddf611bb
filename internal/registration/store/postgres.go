package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"enrolld/internal/registration/models"
	id "enrolld/pkg/domain"
	"enrolld/pkg/platform/sentinel"
	"enrolld/pkg/platform/tx"
)

// PostgresStore persists registrations in the registrations table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const registrationColumns = `
	id, org_id, template_id, registration_number, status,
	first_name, last_name, email, phone, birth_date, form_data,
	access_token, access_token_expiry,
	sms_verification_code, email_verification_token, code_expiry, code_origin, verification_attempts,
	phone_verified, email_verified,
	assigned_to, comments,
	submitted_at, validated_at, rejected_at, rejection_reason,
	last_reminder_sent_at,
	created_at, updated_at, deleted_at`

func (s *PostgresStore) Create(ctx context.Context, reg *models.Registration) error {
	query := `INSERT INTO registrations (` + registrationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)`

	comments, err := json.Marshal(reg.Comments)
	if err != nil {
		return fmt.Errorf("marshal comments: %w", err)
	}

	_, err = tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		reg.ID.String(), reg.OrgID.String(), reg.TemplateID.String(),
		reg.RegistrationNumber, string(reg.Status),
		reg.FirstName, reg.LastName, reg.Email, reg.Phone, reg.BirthDate,
		nullableJSON(reg.FormData),
		nullString(reg.AccessToken), reg.AccessTokenExpiry,
		nullString(reg.SMSVerificationCode), nullString(reg.EmailVerificationToken),
		reg.CodeExpiry, string(reg.CodeOrigin), reg.VerificationAttempts,
		reg.PhoneVerified, reg.EmailVerified,
		nullStaffID(reg.AssignedTo), comments,
		reg.SubmittedAt, reg.ValidatedAt, reg.RejectedAt, nullString(reg.RejectionReason),
		reg.LastReminderSentAt,
		reg.CreatedAt, reg.UpdatedAt, reg.DeletedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations WHERE id = $1 AND deleted_at IS NULL`

	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, regID.String())
	return scanRegistration(row)
}

func (s *PostgresStore) FindByAccessToken(ctx context.Context, token string) (*models.Registration, error) {
	if token == "" {
		return nil, sentinel.ErrNotFound
	}

	query := `SELECT ` + registrationColumns + `
		FROM registrations WHERE access_token = $1 AND deleted_at IS NULL`

	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, token)
	return scanRegistration(row)
}

func (s *PostgresStore) Update(ctx context.Context, reg *models.Registration) error {
	query := `UPDATE registrations SET
		status = $2, first_name = $3, last_name = $4, email = $5, phone = $6,
		birth_date = $7, form_data = $8,
		access_token = $9, access_token_expiry = $10,
		sms_verification_code = $11, email_verification_token = $12,
		code_expiry = $13, code_origin = $14, verification_attempts = $15,
		phone_verified = $16, email_verified = $17,
		assigned_to = $18, comments = $19,
		submitted_at = $20, validated_at = $21, rejected_at = $22, rejection_reason = $23,
		last_reminder_sent_at = $24,
		updated_at = $25, deleted_at = $26
		WHERE id = $1`

	comments, err := json.Marshal(reg.Comments)
	if err != nil {
		return fmt.Errorf("marshal comments: %w", err)
	}

	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		reg.ID.String(),
		string(reg.Status), reg.FirstName, reg.LastName, reg.Email, reg.Phone,
		reg.BirthDate, nullableJSON(reg.FormData),
		nullString(reg.AccessToken), reg.AccessTokenExpiry,
		nullString(reg.SMSVerificationCode), nullString(reg.EmailVerificationToken),
		reg.CodeExpiry, string(reg.CodeOrigin), reg.VerificationAttempts,
		reg.PhoneVerified, reg.EmailVerified,
		nullStaffID(reg.AssignedTo), comments,
		reg.SubmittedAt, reg.ValidatedAt, reg.RejectedAt, nullString(reg.RejectionReason),
		reg.LastReminderSentAt,
		reg.UpdatedAt, reg.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*models.Registration, int, error) {
	filter = filter.Normalize()

	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if !filter.IncludeDeleted {
		where = append(where, "deleted_at IS NULL")
	}
	if !filter.OrgID.IsZero() {
		add("org_id = $%d", filter.OrgID.String())
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if !filter.AssignedTo.IsZero() {
		add("assigned_to = $%d", filter.AssignedTo.String())
	}
	if filter.Search != "" {
		add("(registration_number ILIKE $%[1]d OR first_name ILIKE $%[1]d OR last_name ILIKE $%[1]d OR email ILIKE $%[1]d)", "%"+filter.Search+"%")
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	q := tx.Resolve(ctx, s.db)

	var total int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM registrations"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}

	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	// SortBy is whitelisted by Normalize, safe to interpolate.
	query := fmt.Sprintf(`SELECT %s FROM registrations%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		registrationColumns, clause, filter.SortBy, direction, len(args)+1, len(args)+2)
	args = append(args, filter.PerPage, (filter.Page-1)*filter.PerPage)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []*models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, 0, err
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate registrations: %w", err)
	}
	return regs, total, nil
}

func (s *PostgresStore) NextSequence(ctx context.Context, orgID id.OrgID, year int) (int, error) {
	query := `INSERT INTO registration_sequences (org_id, year, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (org_id, year)
		DO UPDATE SET last_value = registration_sequences.last_value + 1
		RETURNING last_value`

	var next int
	if err := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, orgID.String(), year).Scan(&next); err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return next, nil
}

func (s *PostgresStore) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations
		WHERE deleted_at IS NULL
		  AND status IN ('draft', 'pending')
		  AND updated_at <= $1
		  AND (last_reminder_sent_at IS NULL OR last_reminder_sent_at <= $1)
		ORDER BY updated_at ASC
		LIMIT $2`

	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale registrations: %w", err)
	}
	defer rows.Close()

	var regs []*models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale registrations: %w", err)
	}
	return regs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (*models.Registration, error) {
	var (
		reg        models.Registration
		regID      string
		orgID      string
		templateID string
		status     string
		codeOrigin string
		formData   []byte
		token      sql.NullString
		smsCode    sql.NullString
		emailToken sql.NullString
		assignedTo sql.NullString
		rejection  sql.NullString
		comments   []byte
	)

	err := row.Scan(
		&regID, &orgID, &templateID, &reg.RegistrationNumber, &status,
		&reg.FirstName, &reg.LastName, &reg.Email, &reg.Phone, &reg.BirthDate, &formData,
		&token, &reg.AccessTokenExpiry,
		&smsCode, &emailToken, &reg.CodeExpiry, &codeOrigin, &reg.VerificationAttempts,
		&reg.PhoneVerified, &reg.EmailVerified,
		&assignedTo, &comments,
		&reg.SubmittedAt, &reg.ValidatedAt, &reg.RejectedAt, &rejection,
		&reg.LastReminderSentAt,
		&reg.CreatedAt, &reg.UpdatedAt, &reg.DeletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan registration: %w", err)
	}

	if reg.ID, err = id.ParseRegistrationID(regID); err != nil {
		return nil, fmt.Errorf("parse registration id: %w", err)
	}
	if reg.OrgID, err = id.ParseOrgID(orgID); err != nil {
		return nil, fmt.Errorf("parse org id: %w", err)
	}
	if reg.TemplateID, err = id.ParseTemplateID(templateID); err != nil {
		return nil, fmt.Errorf("parse template id: %w", err)
	}
	reg.Status = models.Status(status)
	reg.CodeOrigin = models.CodeOrigin(codeOrigin)
	reg.FormData = formData
	reg.AccessToken = token.String
	reg.SMSVerificationCode = smsCode.String
	reg.EmailVerificationToken = emailToken.String
	reg.RejectionReason = rejection.String

	if assignedTo.Valid {
		staffID, err := id.ParseStaffID(assignedTo.String)
		if err != nil {
			return nil, fmt.Errorf("parse assignee id: %w", err)
		}
		reg.AssignedTo = &staffID
	}
	if len(comments) > 0 {
		if err := json.Unmarshal(comments, &reg.Comments); err != nil {
			return nil, fmt.Errorf("unmarshal comments: %w", err)
		}
	}
	return &reg, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStaffID(staffID *id.StaffID) sql.NullString {
	if staffID == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: staffID.String(), Valid: true}
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
