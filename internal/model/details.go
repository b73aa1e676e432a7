package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Priority is the urgency chosen by the submitter.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Sectors are the departments a complaint can be routed to.
var Sectors = []string{
	"health",
	"education",
	"infrastructure",
	"water",
	"electricity",
	"transport",
	"agriculture",
	"environment",
	"law-order",
}

// Details carries the structured sub-fields of a complaint. Every field is
// optional; Validate only checks what was supplied.
type Details struct {
	State         string   `json:"state,omitempty"`
	District      string   `json:"district,omitempty" validate:"omitempty,min=2"`
	Pincode       string   `json:"pincode,omitempty" validate:"omitempty,len=6,number"`
	Sector        string   `json:"sector,omitempty" validate:"omitempty,oneof=health education infrastructure water electricity transport agriculture environment law-order"`
	Priority      Priority `json:"priority,omitempty" validate:"oneof=low medium high critical"`
	Category      string   `json:"category,omitempty"`
	Location      string   `json:"location,omitempty" validate:"omitempty,min=2"`
	ContactPhone  string   `json:"contactPhone,omitempty" validate:"omitempty,len=10,number"`
	ContactEmail  string   `json:"contactEmail,omitempty" validate:"omitempty,email"`
	NotifyByEmail bool     `json:"notifyByEmail,omitempty"`
}

// Normalize trims every text field and applies the default priority.
func (d *Details) Normalize() {
	d.State = strings.TrimSpace(d.State)
	d.District = strings.TrimSpace(d.District)
	d.Pincode = strings.TrimSpace(d.Pincode)
	d.Sector = strings.ToLower(strings.TrimSpace(d.Sector))
	d.Category = strings.TrimSpace(d.Category)
	d.Location = strings.TrimSpace(d.Location)
	d.ContactPhone = strings.TrimSpace(d.ContactPhone)
	d.ContactEmail = strings.TrimSpace(d.ContactEmail)
	d.Priority = Priority(strings.ToLower(strings.TrimSpace(string(d.Priority))))
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
}

// Validate returns a *ValidationError for the first offending field.
func (d *Details) Validate() error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return fmt.Errorf("validate details: %w", err)
	}
	fe := fields[0]
	return NewValidationError(fe.Field(), reason(fe))
}

// IsZero reports whether no field was supplied.
func (d *Details) IsZero() bool {
	return d == nil || *d == Details{}
}

var validate = newValidator()

// newValidator reports fields by their JSON names so errors line up with
// what clients send.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s digits", fe.Param())
	case "number":
		return "must contain only digits"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return fmt.Sprintf("must be one of %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return "is invalid"
}
