//go:build integration

package store_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"enrolld/internal/registration/models"
	"enrolld/internal/registration/store"
	id "enrolld/pkg/domain"
	"enrolld/pkg/platform/sentinel"
	"enrolld/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	orgID    id.OrgID
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "registrations", "registration_sequences")
	s.Require().NoError(err)

	s.orgID = id.NewOrgID()
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) newRegistration(number string) *models.Registration {
	reg, err := models.NewRegistration(id.NewRegistrationID(), s.orgID, id.NewTemplateID(), number, s.now)
	s.Require().NoError(err)
	reg.FirstName = "Amara"
	reg.LastName = "Diallo"
	reg.Email = "amara@example.com"
	reg.Phone = "+33612345678"
	return reg
}

func (s *PostgresStoreSuite) TestCreateFindRoundTrip() {
	ctx := context.Background()

	reg := s.newRegistration("REG-2026-0001")
	reg.IssueAccessToken("tok-"+reg.ID.String(), s.now, 24*time.Hour)
	reg.IssueCode("123456", s.now, 10*time.Minute)
	s.Require().NoError(reg.AddComment(id.NewStaffID(), "called applicant", s.now))
	s.Require().NoError(s.store.Create(ctx, reg))

	found, err := s.store.FindByID(ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(reg.RegistrationNumber, found.RegistrationNumber)
	s.Equal(reg.OrgID, found.OrgID)
	s.Equal(reg.TemplateID, found.TemplateID)
	s.Equal("123456", found.SMSVerificationCode)
	s.Require().NotNil(found.CodeExpiry)
	s.Require().Len(found.Comments, 1)
	s.Equal("called applicant", found.Comments[0].Body)

	byToken, err := s.store.FindByAccessToken(ctx, reg.AccessToken)
	s.Require().NoError(err)
	s.Equal(reg.ID, byToken.ID)
}

func (s *PostgresStoreSuite) TestDuplicateRegistrationNumber() {
	ctx := context.Background()

	s.Require().NoError(s.store.Create(ctx, s.newRegistration("REG-2026-0001")))
	err := s.store.Create(ctx, s.newRegistration("REG-2026-0001"))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestSoftDeletedInvisible() {
	ctx := context.Background()

	reg := s.newRegistration("REG-2026-0001")
	reg.IssueAccessToken("tok-gone", s.now, 24*time.Hour)
	s.Require().NoError(s.store.Create(ctx, reg))

	reg.SoftDelete(s.now)
	s.Require().NoError(s.store.Update(ctx, reg))

	_, err := s.store.FindByID(ctx, reg.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByAccessToken(ctx, "tok-gone")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateNotFound() {
	ctx := context.Background()
	s.ErrorIs(s.store.Update(ctx, s.newRegistration("REG-2026-0001")), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListFilterSortPage() {
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		reg := s.newRegistration(fmt.Sprintf("REG-2026-%04d", i))
		reg.CreatedAt = s.now.Add(time.Duration(i) * time.Minute)
		if i%2 == 0 {
			reg.Status = models.StatusPending
		}
		s.Require().NoError(s.store.Create(ctx, reg))
	}

	page, total, err := s.store.List(ctx, store.Filter{
		OrgID: s.orgID, Page: 1, PerPage: 2, SortBy: "created_at", SortDesc: true,
	})
	s.Require().NoError(err)
	s.Equal(5, total)
	s.Require().Len(page, 2)
	s.Equal("REG-2026-0005", page[0].RegistrationNumber)

	pending, total, err := s.store.List(ctx, store.Filter{OrgID: s.orgID, Status: models.StatusPending})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Len(pending, 2)

	search, _, err := s.store.List(ctx, store.Filter{Search: "0003"})
	s.Require().NoError(err)
	s.Require().Len(search, 1)
	s.Equal("REG-2026-0003", search[0].RegistrationNumber)
}

// TestConcurrentNextSequence verifies that parallel allocations never hand
// out the same number twice.
func (s *PostgresStoreSuite) TestConcurrentNextSequence() {
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	seen := sync.Map{}
	var dupes atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.store.NextSequence(ctx, s.orgID, 2026)
			if err != nil {
				dupes.Add(1)
				return
			}
			if _, loaded := seen.LoadOrStore(n, true); loaded {
				dupes.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(0), dupes.Load(), "every allocation should be unique")

	final, err := s.store.NextSequence(ctx, s.orgID, 2026)
	s.Require().NoError(err)
	s.Equal(goroutines+1, final)
}

func (s *PostgresStoreSuite) TestSequencesIndependentPerYear() {
	ctx := context.Background()

	n, err := s.store.NextSequence(ctx, s.orgID, 2026)
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = s.store.NextSequence(ctx, s.orgID, 2027)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *PostgresStoreSuite) TestListStale() {
	ctx := context.Background()
	cutoff := s.now.Add(-72 * time.Hour)

	stale := s.newRegistration("REG-2026-0001")
	stale.UpdatedAt = cutoff.Add(-time.Hour)

	fresh := s.newRegistration("REG-2026-0002")

	validated := s.newRegistration("REG-2026-0003")
	validated.UpdatedAt = cutoff.Add(-time.Hour)
	validated.Status = models.StatusValidated

	for _, reg := range []*models.Registration{stale, fresh, validated} {
		s.Require().NoError(s.store.Create(ctx, reg))
	}

	got, err := s.store.ListStale(ctx, cutoff, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(stale.ID, got[0].ID)
}
