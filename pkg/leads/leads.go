package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xhad/de5chat/internal/models"
)

// Store records contact requests from prospective investors and issuers.
type Store interface {
	Add(ctx context.Context, sub Submission) (int64, error)
	List(ctx context.Context) ([]models.Lead, error)
	Close() error
}

// Submission is a lead as received from a client.
type Submission struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required"`
	InquiryType string `json:"inquiry_type"`
}

// ValidationError is returned when a submission is missing required fields.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: missing required fields: %s", strings.Join(e.Fields, ", "))
}

var validate = validator.New()

// Normalize trims surrounding whitespace and checks required fields.
func (s Submission) Normalize() (Submission, error) {
	s.Name = strings.TrimSpace(s.Name)
	s.Email = strings.TrimSpace(s.Email)
	s.InquiryType = strings.TrimSpace(s.InquiryType)

	if err := validate.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return s, fmt.Errorf("failed to validate lead: %w", err)
		}
		fields := make([]string, 0, len(validationErrors))
		for _, fe := range validationErrors {
			fields = append(fields, jsonName(fe.Field()))
		}
		return s, &ValidationError{Fields: fields}
	}
	return s, nil
}

func jsonName(field string) string {
	switch field {
	case "InquiryType":
		return "inquiry_type"
	default:
		return strings.ToLower(field)
	}
}
