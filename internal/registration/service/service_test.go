package service_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"enrolld/internal/registration/models"
	"enrolld/internal/registration/service"
	"enrolld/internal/registration/store"
	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/platform/audit"
	"enrolld/pkg/platform/keylock"
	"enrolld/pkg/requestcontext"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *capturingPublisher) Publish(_ context.Context, event audit.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) actions() []audit.AuditEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]audit.AuditEvent, len(p.events))
	for i, e := range p.events {
		out[i] = e.Action
	}
	return out
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemoryStore
	auditor *capturingPublisher
	svc     *service.Service
	orgID   id.OrgID
	staffID id.StaffID
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.auditor = &capturingPublisher{}
	s.svc = service.New(s.store, keylock.New(), service.WithAuditPublisher(s.auditor))
	s.orgID = id.NewOrgID()
	s.staffID = id.NewStaffID()
	s.now = time.Date(2026, time.April, 2, 9, 30, 0, 0, time.UTC)

	ctx := requestcontext.WithTime(context.Background(), s.now)
	ctx = requestcontext.WithStaffID(ctx, s.staffID)
	s.ctx = ctx
}

func (s *ServiceSuite) create() *models.Registration {
	reg, err := s.svc.Create(s.ctx, s.orgID, service.CreateInput{
		TemplateID: id.NewTemplateID(),
		Fields: models.FieldUpdate{
			FirstName: "Ines",
			LastName:  "Moreau",
			Email:     "ines.moreau@example.com",
		},
	})
	s.Require().NoError(err)
	return reg
}

func (s *ServiceSuite) TestCreateAllocatesSequentialNumbers() {
	first := s.create()
	second := s.create()

	s.Equal("REG-2026-0001", first.RegistrationNumber)
	s.Equal("REG-2026-0002", second.RegistrationNumber)
	s.Equal(models.StatusDraft, first.Status)
	s.Equal("Ines", first.FirstName)
	s.Contains(s.auditor.actions(), audit.EventRegistrationCreated)
}

func (s *ServiceSuite) TestCreateRejectsInvalidFields() {
	_, err := s.svc.Create(s.ctx, s.orgID, service.CreateInput{
		TemplateID: id.NewTemplateID(),
		Fields:     models.FieldUpdate{Email: "not-an-email"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

type fakeOrgGate struct {
	active bool
}

func (g *fakeOrgGate) IsActive(context.Context, id.OrgID) (bool, error) {
	return g.active, nil
}

func (s *ServiceSuite) TestStartPublicIssuesAccessToken() {
	gate := &fakeOrgGate{active: true}
	svc := service.New(s.store, keylock.New(), service.WithOrgGate(gate))

	reg, accessToken, err := svc.StartPublic(s.ctx, s.orgID, service.CreateInput{
		TemplateID: id.NewTemplateID(),
		Fields:     models.FieldUpdate{FirstName: "Ines"},
	})
	s.Require().NoError(err)
	s.NotEmpty(accessToken)
	s.Equal(models.StatusDraft, reg.Status)

	// The token resolves back to the record.
	found, err := s.store.FindByAccessToken(s.ctx, accessToken)
	s.Require().NoError(err)
	s.Equal(reg.ID, found.ID)

	gate.active = false
	_, _, err = svc.StartPublic(s.ctx, s.orgID, service.CreateInput{TemplateID: id.NewTemplateID()})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestGetScopesToOrganization() {
	reg := s.create()

	found, err := s.svc.Get(s.ctx, s.orgID, reg.ID)
	s.Require().NoError(err)
	s.Equal(reg.ID, found.ID)

	// Another organization sees not-found, never forbidden.
	_, err = s.svc.Get(s.ctx, id.NewOrgID(), reg.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestListForcesOrgFilter() {
	s.create()

	other := id.NewOrgID()
	regs, total, err := s.svc.List(s.ctx, other, store.Filter{OrgID: s.orgID})
	s.Require().NoError(err)
	s.Zero(total)
	s.Empty(regs)
}

func (s *ServiceSuite) submit(reg *models.Registration) {
	s.Require().NoError(reg.Submit(s.now))
	s.Require().NoError(s.store.Update(s.ctx, reg))
}

func (s *ServiceSuite) TestValidateAction() {
	reg := s.create()
	s.submit(reg)

	updated, err := s.svc.ApplyAction(s.ctx, s.orgID, reg.ID, models.ActionValidate, service.ActionInput{})
	s.Require().NoError(err)
	s.Equal(models.StatusValidated, updated.Status)
	s.NotNil(updated.ValidatedAt)
	s.Contains(s.auditor.actions(), audit.EventRegistrationValidated)
}

func (s *ServiceSuite) TestValidateDraftFails() {
	reg := s.create()

	_, err := s.svc.ApplyAction(s.ctx, s.orgID, reg.ID, models.ActionValidate, service.ActionInput{})
	s.Error(err)
}

func (s *ServiceSuite) TestRejectRequiresReason() {
	reg := s.create()
	s.submit(reg)

	_, err := s.svc.ApplyAction(s.ctx, s.orgID, reg.ID, models.ActionReject, service.ActionInput{})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	updated, err := s.svc.ApplyAction(s.ctx, s.orgID, reg.ID, models.ActionReject, service.ActionInput{Reason: "incomplete documents"})
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, updated.Status)
	s.Equal("incomplete documents", updated.RejectionReason)
}

func (s *ServiceSuite) TestAssignAndComment() {
	reg := s.create()
	assignee := id.NewStaffID()

	updated, err := s.svc.ApplyAction(s.ctx, s.orgID, reg.ID, models.ActionAssign, service.ActionInput{AssigneeID: assignee})
	s.Require().NoError(err)
	s.Require().NotNil(updated.AssignedTo)
	s.Equal(assignee, *updated.AssignedTo)

	updated, err = s.svc.ApplyAction(s.ctx, s.orgID, reg.ID, models.ActionComment, service.ActionInput{Comment: "left a voicemail"})
	s.Require().NoError(err)
	s.Require().Len(updated.Comments, 1)
	s.Equal(s.staffID, updated.Comments[0].AuthorID)
	s.Equal("left a voicemail", updated.Comments[0].Body)
}

func (s *ServiceSuite) TestCancelAndDelete() {
	reg := s.create()

	updated, err := s.svc.ApplyAction(s.ctx, s.orgID, reg.ID, models.ActionCancel, service.ActionInput{})
	s.Require().NoError(err)
	s.Equal(models.StatusCancelled, updated.Status)

	_, err = s.svc.ApplyAction(s.ctx, s.orgID, reg.ID, models.ActionDelete, service.ActionInput{})
	s.Require().NoError(err)

	// Soft-deleted records are gone from the staff view too.
	_, err = s.svc.Get(s.ctx, s.orgID, reg.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestExportCSV() {
	reg := s.create()
	s.submit(reg)

	var buf bytes.Buffer
	err := s.svc.Export(s.ctx, s.orgID, store.Filter{}, service.FormatCSV, &buf)
	s.Require().NoError(err)

	records, err := csv.NewReader(&buf).ReadAll()
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal("registration_number", records[0][0])
	s.Equal("REG-2026-0001", records[1][0])
	s.Equal("pending", records[1][1])

	// No token, code, or form data column ever appears.
	header := strings.Join(records[0], ",")
	s.NotContains(header, "token")
	s.NotContains(header, "code")
	s.NotContains(header, "form_data")
}

func (s *ServiceSuite) TestExportJSON() {
	s.create()

	var buf bytes.Buffer
	err := s.svc.Export(s.ctx, s.orgID, store.Filter{}, service.FormatJSON, &buf)
	s.Require().NoError(err)

	var records []map[string]any
	s.Require().NoError(json.Unmarshal(buf.Bytes(), &records))
	s.Require().Len(records, 1)
	s.Equal("REG-2026-0001", records[0]["registration_number"])
	s.NotContains(records[0], "access_token")
}

func TestParseExportFormat(t *testing.T) {
	if _, err := service.ParseExportFormat("xml"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	f, err := service.ParseExportFormat("csv")
	if err != nil || f != service.FormatCSV {
		t.Fatalf("ParseExportFormat(csv) = %v, %v", f, err)
	}
}
