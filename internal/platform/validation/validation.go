// Package validation checks decoded request bodies against explicit,
// per-field rule tables. A Schema is evaluated in full so that callers get
// every violation in a single round trip.
package validation

import (
	"fmt"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/curakidney/api/internal/platform/apperr"
)

// FieldType is the JSON type a field must carry.
type FieldType string

const (
	TypeAny     FieldType = ""
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// Format is a named string format.
type Format string

const (
	FormatNone  Format = ""
	FormatEmail Format = "email"
	FormatUUID  Format = "uuid"
	FormatDate  Format = "date"
)

// formatTags maps each Format to the validator tag that implements it.
var formatTags = map[Format]string{
	FormatEmail: "email",
	FormatUUID:  "uuid",
	FormatDate:  "datetime=2006-01-02",
}

// FieldRule enumerates the rules for one top-level field.
type FieldRule struct {
	Field     string
	Required  bool
	Type      FieldType
	MinLength int
	MaxLength int
	// MaxBytes caps the UTF-8 encoded length of a string.
	MaxBytes int
	Format   Format
	// Items is the element type for TypeArray fields.
	Items FieldType
	// Description and Example only feed the API documentation.
	Description string
	Example     any
}

// Schema is an ordered list of field rules. Violations are reported in this
// order.
type Schema struct {
	Name   string
	Fields []FieldRule
}

var validate = validator.New()

// Validate checks input against the schema. It returns input unchanged when
// every rule holds, otherwise an *apperr.Error of kind validation carrying all
// violations.
func (s Schema) Validate(input map[string]any) (map[string]any, error) {
	var violations []apperr.FieldViolation
	for _, rule := range s.Fields {
		violations = append(violations, rule.check(input)...)
	}
	if len(violations) > 0 {
		return nil, apperr.Validation(violations...)
	}
	return input, nil
}

func (r FieldRule) check(input map[string]any) []apperr.FieldViolation {
	value, present := input[r.Field]
	if !present || value == nil || value == "" {
		if r.Required {
			return []apperr.FieldViolation{r.violation("required", "%s is required", r.Field)}
		}
		return nil
	}

	if !matchesType(value, r.Type) {
		return []apperr.FieldViolation{r.violation("type", "%s must be a %s", r.Field, r.Type)}
	}

	var out []apperr.FieldViolation
	switch v := value.(type) {
	case string:
		n := utf8.RuneCountInString(v)
		if r.MinLength > 0 && n < r.MinLength {
			out = append(out, r.violation("min_length", "%s must be at least %d characters", r.Field, r.MinLength))
		}
		if r.MaxLength > 0 && n > r.MaxLength {
			out = append(out, r.violation("max_length", "%s must be at most %d characters", r.Field, r.MaxLength))
		}
		if r.MaxBytes > 0 && len(v) > r.MaxBytes {
			out = append(out, r.violation("max_bytes", "%s must be at most %d bytes", r.Field, r.MaxBytes))
		}
		if tag, ok := formatTags[r.Format]; ok {
			if err := validate.Var(v, tag); err != nil {
				out = append(out, r.violation("format", "%s must be a valid %s", r.Field, r.Format))
			}
		}
	case []any:
		if r.MinLength > 0 && len(v) < r.MinLength {
			out = append(out, r.violation("min_length", "%s must contain at least %d elements", r.Field, r.MinLength))
		}
		if r.MaxLength > 0 && len(v) > r.MaxLength {
			out = append(out, r.violation("max_length", "%s must contain at most %d elements", r.Field, r.MaxLength))
		}
		if r.Items != TypeAny {
			for i, item := range v {
				if !matchesType(item, r.Items) {
					out = append(out, apperr.FieldViolation{
						Field:   fmt.Sprintf("%s[%d]", r.Field, i),
						Rule:    "type",
						Message: fmt.Sprintf("each element of %s must be a %s", r.Field, r.Items),
					})
				}
			}
		}
	}
	return out
}

func (r FieldRule) violation(rule, format string, args ...any) apperr.FieldViolation {
	return apperr.FieldViolation{Field: r.Field, Rule: rule, Message: fmt.Sprintf(format, args...)}
}

func matchesType(value any, t FieldType) bool {
	switch t {
	case TypeAny:
		return true
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		_, ok := value.(float64)
		return ok
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeArray:
		_, ok := value.([]any)
		return ok
	case TypeObject:
		_, ok := value.(map[string]any)
		return ok
	}
	return false
}
