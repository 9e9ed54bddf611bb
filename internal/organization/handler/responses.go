package handler

import (
	"time"

	"enrolld/internal/organization/models"
)

// OrganizationResponse is the wire form of an organization.
type OrganizationResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	ContactEmail  string     `json:"contact_email,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

func FromOrganization(org *models.Organization) OrganizationResponse {
	return OrganizationResponse{
		ID:            org.ID.String(),
		Name:          org.Name,
		ContactEmail:  org.ContactEmail,
		Status:        string(org.Status),
		CreatedAt:     org.CreatedAt,
		DeactivatedAt: org.DeactivatedAt,
	}
}

// ListResponse wraps the organization collection.
type ListResponse struct {
	Organizations []OrganizationResponse `json:"organizations"`
}

func FromOrganizations(orgs []*models.Organization) ListResponse {
	out := make([]OrganizationResponse, len(orgs))
	for i, org := range orgs {
		out[i] = FromOrganization(org)
	}
	return ListResponse{Organizations: out}
}

// TemplateResponse is the wire form of a form template.
type TemplateResponse struct {
	ID        string                   `json:"id"`
	OrgID     string                   `json:"org_id"`
	Name      string                   `json:"name"`
	Version   int                      `json:"version"`
	Fields    []models.FieldDefinition `json:"fields"`
	Active    bool                     `json:"active"`
	CreatedAt time.Time                `json:"created_at"`
}

func FromTemplate(tpl *models.FormTemplate) TemplateResponse {
	return TemplateResponse{
		ID:        tpl.ID.String(),
		OrgID:     tpl.OrgID.String(),
		Name:      tpl.Name,
		Version:   tpl.Version,
		Fields:    tpl.Fields,
		Active:    tpl.Active,
		CreatedAt: tpl.CreatedAt,
	}
}

// TemplateListResponse wraps a template collection.
type TemplateListResponse struct {
	Templates []TemplateResponse `json:"templates"`
}

func FromTemplates(tpls []*models.FormTemplate) TemplateListResponse {
	out := make([]TemplateResponse, len(tpls))
	for i, tpl := range tpls {
		out[i] = FromTemplate(tpl)
	}
	return TemplateListResponse{Templates: out}
}
