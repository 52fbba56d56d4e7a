// Package validation provides input validation for the forecast service.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/unicode/norm"

	"github.com/Yafet01/drug-prescription-app/forecast"
	"github.com/Yafet01/drug-prescription-app/interfaces"
)

const (
	MinYear = 2024
	MaxYear = 2100

	DefaultMaxMedicines = 20

	minMedicineLength = 2
	maxMedicineLength = 50
)

// Pre-compiled regex patterns, compiled once at package initialization
var (
	// Medicine names: letters in any script, digits and safe punctuation
	medicineRegex = regexp.MustCompile(`^[\p{L}\p{N}\s\-\.\+'()/]+$`)

	// Dangerous patterns as strings (faster than regex for simple substring matching)
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"eval(", "expression(", "url(", "@import",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"--", "/*", "*/", "exec(",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
	}
)

// ErrInvalidRequest matches every *ValidationError via errors.Is
var ErrInvalidRequest = errors.New("invalid request")

// ValidationError reports the offending request field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RequestValidatorImpl implements the interfaces.RequestValidator interface
type RequestValidatorImpl struct {
	maxMedicines int
}

var _ interfaces.RequestValidator = (*RequestValidatorImpl)(nil)

// NewRequestValidator creates a validator accepting at most maxMedicines medicines per request
func NewRequestValidator(maxMedicines int) *RequestValidatorImpl {
	if maxMedicines <= 0 {
		maxMedicines = DefaultMaxMedicines
	}
	return &RequestValidatorImpl{maxMedicines: maxMedicines}
}

// ValidateRequest checks the period bounds and returns the request with its medicine selection
// normalized and de-duplicated, first occurrence kept. Season is passed through unchanged.
func (v *RequestValidatorImpl) ValidateRequest(req forecast.PredictionRequest) (forecast.PredictionRequest, error) {
	if req.Year < MinYear || req.Year > MaxYear {
		return req, invalid("year", "must be between %d and %d, got %d", MinYear, MaxYear, req.Year)
	}

	if req.Month < 1 || req.Month > 12 {
		return req, invalid("month", "must be between 1 and 12, got %d", req.Month)
	}

	if len(req.Medicines) == 0 {
		return req, invalid("medicine", "at least one medicine is required")
	}

	seen := make(map[string]struct{}, len(req.Medicines))
	medicines := make([]string, 0, len(req.Medicines))
	for _, raw := range req.Medicines {
		name, err := v.ValidateMedicine(raw)
		if err != nil {
			return req, err
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		medicines = append(medicines, name)
	}

	if len(medicines) > v.maxMedicines {
		return req, invalid("medicine", "at most %d medicines per request, got %d", v.maxMedicines, len(medicines))
	}

	req.Medicines = medicines
	return req, nil
}

// ValidateMedicine validates one medicine name and returns its NFC-normalized, trimmed form.
// Names outside the vocabulary are valid.
func (v *RequestValidatorImpl) ValidateMedicine(input string) (string, error) {
	name := strings.TrimSpace(norm.NFC.String(input))
	if name == "" {
		return "", invalid("medicine", "name cannot be empty")
	}

	length := len([]rune(name))
	if length < minMedicineLength {
		return "", invalid("medicine", "name too short: minimum %d characters", minMedicineLength)
	}
	if length > maxMedicineLength {
		return "", invalid("medicine", "name too long: maximum %d characters", maxMedicineLength)
	}

	lower := strings.ToLower(name)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return "", invalid("medicine", "name contains potentially dangerous content")
		}
	}

	if !medicineRegex.MatchString(name) {
		return "", invalid("medicine", "name contains invalid characters. Only letters, numbers, spaces, hyphens, apostrophes, periods, slashes, parentheses and plus sign are allowed")
	}

	if hasExcessiveRepetition(name) {
		return "", invalid("medicine", "name contains excessive character repetition")
	}

	return name, nil
}

// ParsePeriod parses a free-form date such as "2025-03" or "March 2025" into year and month
func (v *RequestValidatorImpl) ParsePeriod(input string) (int, int, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, 0, invalid("period", "cannot be empty")
	}
	if len(trimmed) > 40 {
		return 0, 0, invalid("period", "too long")
	}

	t, err := dateparse.ParseIn(trimmed, time.UTC)
	if err != nil {
		return 0, 0, invalid("period", "unrecognized date %q", trimmed)
	}
	return t.Year(), int(t.Month()), nil
}

// hasExcessiveRepetition checks for the same character repeated more than 10 times consecutively
func hasExcessiveRepetition(input string) bool {
	runes := []rune(input)
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run > 10 {
				return true
			}
			continue
		}
		run = 1
	}
	return false
}
