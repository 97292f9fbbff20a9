package compute

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	apperrors "echo-server/pkg/errors"

	"github.com/go-playground/validator/v10"
)

const (
	MinPrimeLimit = 2
	MaxPrimeLimit = 10000
	MinFibLength  = 2
	MaxFibLength  = 100
)

// Params are the inputs of one pipeline run. Nil means the caller did not
// provide the value.
type Params struct {
	PrimeLimit *int `json:"prime_limit" validate:"required,min=2,max=10000"`
	FibLength  *int `json:"fib_length" validate:"required,min=2,max=100"`
}

// NewParams builds Params from already parsed values.
func NewParams(primeLimit, fibLength int) Params {
	return Params{PrimeLimit: &primeLimit, FibLength: &fibLength}
}

// ParseParams builds Params from raw string values such as query parameters.
// Empty strings are treated as missing.
func ParseParams(primeLimit, fibLength string) (Params, error) {
	var p Params
	var errs []string

	if v, err := parseOptionalInt(primeLimit); err != nil {
		errs = append(errs, fieldLabels["prime_limit"]+" must be an integer")
	} else {
		p.PrimeLimit = v
	}
	if v, err := parseOptionalInt(fibLength); err != nil {
		errs = append(errs, fieldLabels["fib_length"]+" must be an integer")
	} else {
		p.FibLength = v
	}

	if len(errs) > 0 {
		return p, apperrors.NewValidation(strings.Join(errs, "; "))
	}
	return p, nil
}

func parseOptionalInt(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

var fieldLabels = map[string]string{
	"prime_limit": "prime limit",
	"fib_length":  "fibonacci length",
}

// Validator checks Params against their bounds.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator that reports fields by their JSON names.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate returns a validation AppError describing every invalid field.
func (v *Validator) Validate(p Params) error {
	err := v.validate.Struct(p)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.NewValidation(err.Error())
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		msgs = append(msgs, formatFieldError(fe))
	}
	return apperrors.NewValidation(strings.Join(msgs, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()
	label := fieldLabels[field]
	if label == "" {
		label = field
	}

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "min", "max":
		lo, hi := bounds(field)
		return fmt.Sprintf("%s must be between %s and %s", label, groupThousands(lo), groupThousands(hi))
	default:
		return label + " is invalid"
	}
}

func bounds(field string) (int, int) {
	if field == "fib_length" {
		return MinFibLength, MaxFibLength
	}
	return MinPrimeLimit, MaxPrimeLimit
}

// groupThousands formats n with comma separators.
func groupThousands(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
