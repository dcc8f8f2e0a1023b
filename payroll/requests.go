package payroll

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/nota-engine/nota"
)

// =============================================================================
// REQUESTS
// =============================================================================

// PlannedRequest registers an event from an OSI plan item. EmployeeID and
// QtyActual fall back to the plan item when empty.
type PlannedRequest struct {
	OSIID        string          `json:"osiId" validate:"required"`
	PlanItemID   string          `json:"planItemId" validate:"required"`
	EmployeeID   string          `json:"employeeId,omitempty"`
	QtyActual    decimal.Decimal `json:"qtyActual" validate:"gte=0"`
	CreatedBy    string          `json:"createdBy" validate:"required"`
	RegisteredAt *time.Time      `json:"registeredAt,omitempty"`
}

// ExtraRequest registers an ad hoc event outside the OSI plan.
type ExtraRequest struct {
	OSIID        string          `json:"osiId" validate:"required"`
	EventTypeID  string          `json:"eventTypeId" validate:"required"`
	EmployeeID   string          `json:"employeeId" validate:"required"`
	Qty          decimal.Decimal `json:"qty" validate:"gt=0"`
	Modifiers    *nota.Modifiers `json:"modifiers,omitempty"`
	Reason       string          `json:"reason"`
	EvidenceURL  string          `json:"evidenceUrl,omitempty" validate:"omitempty,url"`
	CreatedBy    string          `json:"createdBy" validate:"required"`
	RegisteredAt *time.Time      `json:"registeredAt,omitempty"`
}

// TransitionRequest addresses one event of one OSI.
type TransitionRequest struct {
	OSIID   string `json:"osiId" validate:"required"`
	EventID string `json:"eventId" validate:"required"`
	Actor   string `json:"actor" validate:"required"`
	Note    string `json:"note,omitempty"`
}

// ConfigRequest names who stores a new pay config version.
type ConfigRequest struct {
	Actor string `json:"actor" validate:"required"`
}

// CycleRequest closes or pays a cycle.
type CycleRequest struct {
	CycleID string `json:"cycleId" validate:"required,cycle_id"`
	Actor   string `json:"actor" validate:"required"`
}

// MonthRequest names a calendar month.
type MonthRequest struct {
	Year  int `json:"year" validate:"gte=2000,lte=2100"`
	Month int `json:"month" validate:"gte=1,lte=12"`
}

// =============================================================================
// VALIDATOR SETUP
// =============================================================================

var cycleIDPattern = regexp.MustCompile(`^PAY-\d{4}-(0[1-9]|1[0-2])-[12]$`)

func registerValidations(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("cycle_id", func(fl validator.FieldLevel) bool {
		return cycleIDPattern.MatchString(fl.Field().String())
	})
}

// check runs the struct validator and reports the first failing field as a
// *nota.ValidationError.
func (s *Service) check(req interface{}) error {
	err := s.validator.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &nota.ValidationError{
			Field:   fe.Field(),
			Message: fmt.Sprintf("failed on the '%s' rule", fe.Tag()),
		}
	}
	return fmt.Errorf("%w: %v", nota.ErrValidation, err)
}
