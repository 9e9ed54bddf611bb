package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"time"

	"enrolld/internal/registration/models"
	"enrolld/internal/registration/store"
	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
)

// ExportFormat selects the export encoding.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ParseExportFormat validates a wire string into an ExportFormat.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(s); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported export format %q", s)
	}
}

// exportBatchSize pages through the store so one export never holds the
// whole table in memory.
const exportBatchSize = 500

// Export streams every registration matching the filter to w. Tokens,
// codes, and form data are never included.
func (s *Service) Export(ctx context.Context, orgID id.OrgID, filter store.Filter, format ExportFormat, w io.Writer) error {
	filter.OrgID = orgID
	filter.PerPage = exportBatchSize

	var write func(*models.Registration) error
	var finish func() error

	switch format {
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(exportHeader); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export header")
		}
		write = func(reg *models.Registration) error {
			return cw.Write(exportRow(reg))
		}
		finish = func() error {
			cw.Flush()
			return cw.Error()
		}

	case FormatJSON:
		enc := json.NewEncoder(w)
		first := true
		if _, err := io.WriteString(w, "["); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export")
		}
		write = func(reg *models.Registration) error {
			if !first {
				if _, err := io.WriteString(w, ","); err != nil {
					return err
				}
			}
			first = false
			return enc.Encode(exportRecord(reg))
		}
		finish = func() error {
			_, err := io.WriteString(w, "]")
			return err
		}

	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "unsupported export format %q", string(format))
	}

	for page := 1; ; page++ {
		filter.Page = page
		regs, _, err := s.store.List(ctx, filter)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registrations for export")
		}
		for _, reg := range regs {
			if err := write(reg); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export row")
			}
		}
		if len(regs) < exportBatchSize {
			break
		}
	}

	if err := finish(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to finish export")
	}
	s.metrics.IncrementExported(string(format))
	return nil
}

var exportHeader = []string{
	"registration_number", "status", "first_name", "last_name", "email",
	"phone", "birth_date", "phone_verified", "email_verified",
	"created_at", "submitted_at", "validated_at",
}

func exportRow(reg *models.Registration) []string {
	return []string{
		reg.RegistrationNumber,
		string(reg.Status),
		reg.FirstName,
		reg.LastName,
		reg.Email,
		reg.Phone,
		formatDate(reg.BirthDate),
		formatBool(reg.PhoneVerified),
		formatBool(reg.EmailVerified),
		reg.CreatedAt.Format(time.RFC3339),
		formatTime(reg.SubmittedAt),
		formatTime(reg.ValidatedAt),
	}
}

// exportedRegistration is the JSON export shape. It deliberately carries a
// subset of the aggregate: no tokens, no codes, no free-form answers.
type exportedRegistration struct {
	RegistrationNumber string     `json:"registration_number"`
	Status             string     `json:"status"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	Email              string     `json:"email"`
	Phone              string     `json:"phone"`
	BirthDate          *time.Time `json:"birth_date,omitempty"`
	PhoneVerified      bool       `json:"phone_verified"`
	EmailVerified      bool       `json:"email_verified"`
	CreatedAt          time.Time  `json:"created_at"`
	SubmittedAt        *time.Time `json:"submitted_at,omitempty"`
	ValidatedAt        *time.Time `json:"validated_at,omitempty"`
}

func exportRecord(reg *models.Registration) exportedRegistration {
	return exportedRegistration{
		RegistrationNumber: reg.RegistrationNumber,
		Status:             string(reg.Status),
		FirstName:          reg.FirstName,
		LastName:           reg.LastName,
		Email:              reg.Email,
		Phone:              reg.Phone,
		BirthDate:          reg.BirthDate,
		PhoneVerified:      reg.PhoneVerified,
		EmailVerified:      reg.EmailVerified,
		CreatedAt:          reg.CreatedAt,
		SubmittedAt:        reg.SubmittedAt,
		ValidatedAt:        reg.ValidatedAt,
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
