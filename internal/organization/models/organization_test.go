package models_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enrolld/internal/organization/models"
	id "enrolld/pkg/domain"
)

var now = time.Date(2026, time.February, 1, 12, 0, 0, 0, time.UTC)

func TestNewOrganization(t *testing.T) {
	org, err := models.NewOrganization(id.NewOrgID(), "Lycée Condorcet", "admin@condorcet.example", now)
	require.NoError(t, err)
	assert.True(t, org.IsActive())
	assert.Equal(t, now, org.CreatedAt)

	_, err = models.NewOrganization(id.NewOrgID(), "", "", now)
	assert.Error(t, err)

	_, err = models.NewOrganization(id.NewOrgID(), strings.Repeat("x", 129), "", now)
	assert.Error(t, err)
}

func TestOrganizationStatusTransitions(t *testing.T) {
	org, err := models.NewOrganization(id.NewOrgID(), "Org", "", now)
	require.NoError(t, err)

	require.NoError(t, org.CanDeactivate())
	org.ApplyDeactivation(now)
	assert.False(t, org.IsActive())
	assert.NotNil(t, org.DeactivatedAt)

	// Double deactivation is refused.
	assert.Error(t, org.CanDeactivate())

	require.NoError(t, org.CanReactivate())
	org.ApplyReactivation(now.Add(time.Hour))
	assert.True(t, org.IsActive())
	assert.Nil(t, org.DeactivatedAt)
	assert.Error(t, org.CanReactivate())
}

func TestNewFormTemplate(t *testing.T) {
	orgID := id.NewOrgID()
	fields := []models.FieldDefinition{
		{Name: "level", Label: "Level", Type: models.FieldTypeSelect, Required: true, Options: []string{"6e", "5e"}},
		{Name: "notes", Label: "Notes", Type: models.FieldTypeText},
	}

	tpl, err := models.NewFormTemplate(id.NewTemplateID(), orgID, "Collège 2026", fields, now)
	require.NoError(t, err)
	assert.Equal(t, 1, tpl.Version)
	assert.True(t, tpl.Active)
}

func TestNewFormTemplateRejectsBadDefinitions(t *testing.T) {
	orgID := id.NewOrgID()
	valid := models.FieldDefinition{Name: "a", Type: models.FieldTypeText}

	cases := map[string][]models.FieldDefinition{
		"empty fields":   {},
		"nameless field": {{Type: models.FieldTypeText}},
		"duplicate name": {valid, {Name: "a", Type: models.FieldTypeText}},
		"bad type":       {{Name: "b", Type: "blob"}},
		"select no opts": {{Name: "c", Type: models.FieldTypeSelect}},
	}
	for name, fields := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := models.NewFormTemplate(id.NewTemplateID(), orgID, "T", fields, now)
			assert.Error(t, err)
		})
	}
}
