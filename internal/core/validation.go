package core

// validation.go implements the validator chain run over parsed rows.
//
// Three layers run in order and the first layer that reports anything stops
// the chain:
//  1. Header layer: every required column is present and there is at least one row
//  2. Type layer: each cell of each row is checked against its FieldSpec
//  3. Business layer: quantity > 0, unit price >= 0, status in the allowed set
//
// Inside a layer every row is evaluated, so one file can report many errors.

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError is a field-level problem. Row 0 means the file as a whole.
type ValidationError struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, %s: %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// FieldType represents the expected data type for a column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEmail
	FieldDate
	FieldInteger
	FieldDecimal
	FieldEnum
)

// FieldSpec defines validation rules for a single column.
type FieldSpec struct {
	Name       string    // Column header name, matched case-insensitively
	Type       FieldType // Expected data type
	Required   bool      // Column must exist in the header and text values must be non-empty
	MaxLength  int       // Maximum length in characters for text values (0 = unbounded)
	EnumValues []string  // Valid values for FieldEnum, checked by the business layer
}

// Column names of the order import format.
const (
	ColOrderDate     = "OrderDate"
	ColCustomerName  = "CustomerName"
	ColCustomerEmail = "CustomerEmail"
	ColProductName   = "ProductName"
	ColCategoryName  = "CategoryName"
	ColQuantity      = "Quantity"
	ColUnitPrice     = "UnitPrice"
	ColStatus        = "Status"
)

// OrderFields describes the order import format.
var OrderFields = []FieldSpec{
	{Name: ColOrderDate, Type: FieldDate, Required: true},
	{Name: ColCustomerName, Type: FieldText, Required: true, MaxLength: 200},
	{Name: ColCustomerEmail, Type: FieldEmail, Required: true},
	{Name: ColProductName, Type: FieldText, Required: true, MaxLength: 200},
	{Name: ColCategoryName, Type: FieldText, Required: true, MaxLength: 100},
	{Name: ColQuantity, Type: FieldInteger, Required: true},
	{Name: ColUnitPrice, Type: FieldDecimal, Required: true},
	{Name: ColStatus, Type: FieldEnum, Required: true, EnumValues: statusNames()},
}

func statusNames() []string {
	names := make([]string, len(OrderStatuses))
	for i, s := range OrderStatuses {
		names[i] = string(s)
	}
	return names
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// cellValidate runs the text rules. "mailbox" is a looser address check
// than validator's built-in "email": anything@anything.tld.
var cellValidate = newCellValidator()

func newCellValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("mailbox", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register mailbox validation: %v", err))
	}
	return v
}

// Validator is one layer of the chain.
type Validator interface {
	Name() string
	Validate(headers []string, rows []Row) []ValidationError
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc struct {
	name string
	fn   func(headers []string, rows []Row) []ValidationError
}

// NewValidatorFunc names fn as a chain layer.
func NewValidatorFunc(name string, fn func(headers []string, rows []Row) []ValidationError) ValidatorFunc {
	return ValidatorFunc{name: name, fn: fn}
}

func (v ValidatorFunc) Name() string { return v.name }

func (v ValidatorFunc) Validate(headers []string, rows []Row) []ValidationError {
	return v.fn(headers, rows)
}

// ValidatorChain evaluates layers in order and returns the errors of the
// first layer that produced any.
type ValidatorChain struct {
	layers []Validator
}

// NewValidatorChain builds a chain from layers in evaluation order.
func NewValidatorChain(layers ...Validator) *ValidatorChain {
	return &ValidatorChain{layers: layers}
}

// DefaultValidatorChain returns header, type and business layers for specs.
func DefaultValidatorChain(specs []FieldSpec) *ValidatorChain {
	return NewValidatorChain(
		HeaderValidator(specs),
		TypeValidator(specs),
		BusinessRuleValidator(),
	)
}

// Validate runs the chain. A nil result means every layer passed.
func (c *ValidatorChain) Validate(headers []string, rows []Row) []ValidationError {
	for _, layer := range c.layers {
		if errs := layer.Validate(headers, rows); len(errs) > 0 {
			return errs
		}
	}
	return nil
}

// HeaderValidator reports each missing required column at row 1, or a single
// file-level error when the header is complete but there are no data rows.
func HeaderValidator(specs []FieldSpec) Validator {
	return NewValidatorFunc("header", func(headers []string, rows []Row) []ValidationError {
		present := make(map[string]bool, len(headers))
		for _, h := range headers {
			present[NormalizeKey(h)] = true
		}

		var errs []ValidationError
		for _, spec := range specs {
			if spec.Required && !present[NormalizeKey(spec.Name)] {
				errs = append(errs, ValidationError{
					Row:     1,
					Column:  spec.Name,
					Message: fmt.Sprintf("Missing required column: '%s'", spec.Name),
				})
			}
		}

		if len(errs) == 0 && len(rows) == 0 {
			errs = append(errs, ValidationError{Row: 0, Column: "", Message: "File contains no data rows"})
		}
		return errs
	})
}

// TypeValidator checks every cell of every row against its spec.
func TypeValidator(specs []FieldSpec) Validator {
	return NewValidatorFunc("type", func(_ []string, rows []Row) []ValidationError {
		var errs []ValidationError
		for _, row := range rows {
			for _, spec := range specs {
				if msg := ValidateCell(row.Get(spec.Name), spec); msg != "" {
					errs = append(errs, ValidationError{Row: row.Number, Column: spec.Name, Message: msg})
				}
			}
		}
		return errs
	})
}

// ValidateCell returns the user-facing problem with value, or "" if it is valid.
func ValidateCell(value string, spec FieldSpec) string {
	switch spec.Type {
	case FieldDate:
		if _, err := ParseOrderDate(value); err != nil {
			return fmt.Sprintf("Invalid date format: '%s'. Expected: yyyy-MM-dd HH:mm", value)
		}
	case FieldInteger:
		if _, err := ParseQuantity(value); err != nil {
			return fmt.Sprintf("Invalid integer: '%s'", value)
		}
	case FieldDecimal:
		if _, err := ParseDecimal(value); err != nil {
			return fmt.Sprintf("Invalid decimal: '%s'", value)
		}
	case FieldText, FieldEmail, FieldEnum:
		return validateText(value, spec)
	}
	return ""
}

// validateText applies required, max length and mailbox rules in that order
// and reports the first one that fails.
func validateText(value string, spec FieldSpec) string {
	var rules []string
	if spec.Required {
		rules = append(rules, "required")
	}
	if spec.MaxLength > 0 {
		rules = append(rules, fmt.Sprintf("max=%d", spec.MaxLength))
	}
	if spec.Type == FieldEmail {
		rules = append(rules, "mailbox")
	}
	if len(rules) == 0 {
		return ""
	}

	err := cellValidate.Var(strings.TrimSpace(value), strings.Join(rules, ","))
	if err == nil {
		return ""
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return fmt.Sprintf("%s is invalid", spec.Name)
	}
	switch fieldErrs[0].Tag() {
	case "required":
		return fmt.Sprintf("%s is required", spec.Name)
	case "max":
		return fmt.Sprintf("%s exceeds %d characters", spec.Name, spec.MaxLength)
	case "mailbox":
		return fmt.Sprintf("Invalid email format: '%s'", value)
	default:
		return fmt.Sprintf("%s is invalid", spec.Name)
	}
}

// BusinessRuleValidator checks quantity, unit price and status.
// It assumes the type layer passed.
func BusinessRuleValidator() Validator {
	validOptions := strings.Join(statusNames(), ", ")

	return NewValidatorFunc("business", func(_ []string, rows []Row) []ValidationError {
		var errs []ValidationError
		for _, row := range rows {
			if qty, err := ParseQuantity(row.Get(ColQuantity)); err == nil && qty <= 0 {
				errs = append(errs, ValidationError{
					Row:     row.Number,
					Column:  ColQuantity,
					Message: fmt.Sprintf("Quantity must be greater than 0, got: %d", qty),
				})
			}

			if price, err := ParseDecimal(row.Get(ColUnitPrice)); err == nil && price.IsNegative() {
				errs = append(errs, ValidationError{
					Row:     row.Number,
					Column:  ColUnitPrice,
					Message: fmt.Sprintf("UnitPrice cannot be negative, got: %s", price.String()),
				})
			}

			status := row.Get(ColStatus)
			if strings.TrimSpace(status) != "" {
				if _, ok := ParseOrderStatus(status); !ok {
					errs = append(errs, ValidationError{
						Row:     row.Number,
						Column:  ColStatus,
						Message: fmt.Sprintf("Invalid status: '%s'. Valid options: %s", status, validOptions),
					})
				}
			}
		}
		return errs
	})
}
