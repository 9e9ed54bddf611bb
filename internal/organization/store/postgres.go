package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"enrolld/internal/organization/models"
	id "enrolld/pkg/domain"
	"enrolld/pkg/platform/sentinel"
	"enrolld/pkg/platform/tx"
)

// PostgresStore persists organizations. Name uniqueness is backed by a
// unique index over LOWER(name).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const organizationColumns = `
	id, name, contact_email, status, created_at, updated_at, deactivated_at`

func (s *PostgresStore) Create(ctx context.Context, org *models.Organization) error {
	query := `INSERT INTO organizations (` + organizationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		org.ID.String(), org.Name, org.ContactEmail, string(org.Status),
		org.CreatedAt, org.UpdatedAt, org.DeactivatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, orgID id.OrgID) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`

	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, orgID.String())
	return scanOrganization(row)
}

func (s *PostgresStore) Update(ctx context.Context, org *models.Organization) error {
	query := `UPDATE organizations SET
		name = $2, contact_email = $3, status = $4,
		updated_at = $5, deactivated_at = $6
		WHERE id = $1`

	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		org.ID.String(), org.Name, org.ContactEmail, string(org.Status),
		org.UpdatedAt, org.DeactivatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update organization: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations ORDER BY name`

	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func scanOrganization(row rowScanner) (*models.Organization, error) {
	var (
		org    models.Organization
		orgID  string
		status string
	)
	err := row.Scan(&orgID, &org.Name, &org.ContactEmail, &status,
		&org.CreatedAt, &org.UpdatedAt, &org.DeactivatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan organization: %w", err)
	}

	org.ID, err = id.ParseOrgID(orgID)
	if err != nil {
		return nil, fmt.Errorf("scan organization: %w", err)
	}
	org.Status = models.OrgStatus(status)
	return &org, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresTemplateStore persists form templates. Field definitions are
// stored as a JSONB document.
type PostgresTemplateStore struct {
	db *sql.DB
}

func NewPostgresTemplateStore(db *sql.DB) *PostgresTemplateStore {
	return &PostgresTemplateStore{db: db}
}

const templateColumns = `
	id, org_id, name, version, fields, active, created_at, updated_at`

func (s *PostgresTemplateStore) Create(ctx context.Context, tpl *models.FormTemplate) error {
	query := `INSERT INTO form_templates (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	fields, err := json.Marshal(tpl.Fields)
	if err != nil {
		return fmt.Errorf("marshal template fields: %w", err)
	}

	_, err = tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		tpl.ID.String(), tpl.OrgID.String(), tpl.Name, tpl.Version,
		fields, tpl.Active, tpl.CreatedAt, tpl.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *PostgresTemplateStore) FindByID(ctx context.Context, templateID id.TemplateID) (*models.FormTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM form_templates WHERE id = $1`

	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, templateID.String())
	return scanTemplate(row)
}

func (s *PostgresTemplateStore) ListByOrg(ctx context.Context, orgID id.OrgID) ([]*models.FormTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM form_templates WHERE org_id = $1 ORDER BY name`

	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query, orgID.String())
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var tpls []*models.FormTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		tpls = append(tpls, tpl)
	}
	return tpls, rows.Err()
}

func scanTemplate(row rowScanner) (*models.FormTemplate, error) {
	var (
		tpl        models.FormTemplate
		templateID string
		orgID      string
		fields     []byte
	)
	err := row.Scan(&templateID, &orgID, &tpl.Name, &tpl.Version,
		&fields, &tpl.Active, &tpl.CreatedAt, &tpl.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}

	tpl.ID, err = id.ParseTemplateID(templateID)
	if err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}
	tpl.OrgID, err = id.ParseOrgID(orgID)
	if err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}
	if err := json.Unmarshal(fields, &tpl.Fields); err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}
	return &tpl, nil
}
