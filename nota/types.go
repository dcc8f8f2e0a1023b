/*
Package nota provides the NOTA payroll-event engine.

PURPOSE:
  Field staff perform discretionary or extra labor during service jobs
  (OSIs). Each such piece of work is a NOTA event: it is graded for
  eligibility, priced, approved or rejected, bucketed into a pay cycle and
  finally reported for payroll. This package holds those rules. It performs
  no I/O: every operation takes snapshots (OSIs, cycles, config, catalogs)
  and returns new values the caller persists.

KEY CONCEPTS IN THIS FILE (types.go):
  - Catalogs: event types, base qualification types, SHAB and allowance types
  - User: directory entry with graded base qualifications and SHAB licenses
  - OSI: service order aggregate that OWNS its embedded NotaEvent list
  - NotaEvent: the mutable event record (status, amounts, cycle assignment)
  - PayConfig: versioned singleton; Version is the staleness token
  - PayCycle: derived per (year, month, slot), append-only
  - PayReport: derived snapshot, never the system of record

DESIGN PRINCIPLES:
  1. Precision: money and quantities use decimal.Decimal
  2. Ownership: events are only reached through their parent OSI
  3. Audit: events are never deleted, only transitioned
  4. Versioning: PayConfigVersionApplied records the config version an
     assignment was computed under

SEE ALSO:
  - lifecycle.go: registration and status transitions
  - cycle.go: pay cycle generation from cut rules
  - assignment.go: EnsureCycles / RecomputeAssignments
  - report.go: payroll report builder
*/
package nota

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CATALOGS
// =============================================================================

// BaseQualificationType is a graded skill category (e.g. "packer - fragile goods").
type BaseQualificationType struct {
	ID   string `json:"id" db:"id"`
	Code string `json:"code" db:"code"`
	Name string `json:"name" db:"name"`
}

// ShabType is a binary specialty license (carpentry, electrical...).
type ShabType struct {
	Code string `json:"code" db:"code"`
	Name string `json:"name" db:"name"`
}

// AllowanceType is a fixed allowance catalog entry. The engine only carries it.
type AllowanceType struct {
	ID     string          `json:"id" db:"id"`
	Code   string          `json:"code" db:"code"`
	Name   string          `json:"name" db:"name"`
	Amount decimal.Decimal `json:"amount" db:"amount"`
}

// NotaEventType defines unit, base rate and eligibility prerequisites.
type NotaEventType struct {
	ID       string          `json:"id" db:"id"`
	Code     string          `json:"code" db:"code"`
	Name     string          `json:"name" db:"name"`
	Unit     string          `json:"unit" db:"unit"`
	BaseRate decimal.Decimal `json:"baseRate" db:"base_rate"`

	// Prerequisites. Both are optional and AND-ed when present.
	RequiredQualificationID string `json:"requiredQualificationId,omitempty" db:"required_qualification_id"`
	MinGradeValue           *int   `json:"minGradeValue,omitempty" db:"min_grade_value"`
	RequiredShabCode        string `json:"requiredShabCode,omitempty" db:"required_shab_code"`

	RequiresEvidence bool `json:"requiresEvidence" db:"requires_evidence"`
	Active           bool `json:"active" db:"active"`
}

// Catalogs groups the immutable catalog snapshots used during a computation.
type Catalogs struct {
	EventTypes             []NotaEventType         `json:"eventTypes"`
	BaseQualificationTypes []BaseQualificationType `json:"baseQualificationTypes"`
	ShabTypes              []ShabType              `json:"shabTypes"`
	AllowanceTypes         []AllowanceType         `json:"allowanceTypes"`
}

// EventType looks up an event type by id.
func (c Catalogs) EventType(id string) (NotaEventType, bool) {
	for _, et := range c.EventTypes {
		if et.ID == id {
			return et, true
		}
	}
	return NotaEventType{}, false
}

// QualificationType looks up a base qualification type by id.
func (c Catalogs) QualificationType(id string) (BaseQualificationType, bool) {
	for _, q := range c.BaseQualificationTypes {
		if q.ID == id {
			return q, true
		}
	}
	return BaseQualificationType{}, false
}

// =============================================================================
// DIRECTORY
// =============================================================================

// EmployeeBaseQualification is the grade an employee holds for one catalog entry.
type EmployeeBaseQualification struct {
	BaseTypeID string `json:"baseTypeId"`
	Grade      Grade  `json:"grade"`
}

// EmployeeShab is a SHAB license held by an employee. Only Active ones count.
type EmployeeShab struct {
	Code        string     `json:"code"`
	Active      bool       `json:"active"`
	CertifiedAt *time.Time `json:"certifiedAt,omitempty"`
}

// User is a directory entry.
type User struct {
	ID                 string                      `json:"id"`
	Code               string                      `json:"code"`
	FullName           string                      `json:"fullName,omitempty"`
	Name               string                      `json:"name,omitempty"`
	BaseQualifications []EmployeeBaseQualification `json:"baseQualifications"`
	Shab               []EmployeeShab              `json:"shab"`
}

// DisplayName prefers FullName over Name.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Name
}

// Qualification returns the employee's record for baseTypeID.
func (u User) Qualification(baseTypeID string) (EmployeeBaseQualification, bool) {
	for _, q := range u.BaseQualifications {
		if q.BaseTypeID == baseTypeID {
			return q, true
		}
	}
	return EmployeeBaseQualification{}, false
}

// HasActiveShab reports whether the employee holds an active SHAB with code.
func (u User) HasActiveShab(code string) bool {
	for _, s := range u.Shab {
		if s.Active && s.Code == code {
			return true
		}
	}
	return false
}

// FindUser looks up a user by id.
func FindUser(users []User, id string) (User, bool) {
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

// =============================================================================
// OSI - Service order aggregate
// =============================================================================

// OsiNotaPlanItem is a pre-approved quantity estimate for one event type.
type OsiNotaPlanItem struct {
	ID           string          `json:"id"`
	EventTypeID  string          `json:"eventTypeId"`
	EmployeeID   string          `json:"employeeId,omitempty"`
	QtyEstimated decimal.Decimal `json:"qtyEstimated"`
}

// OsiNotaPlan is the set of planned events of an OSI.
type OsiNotaPlan struct {
	Items []OsiNotaPlanItem `json:"items"`
}

// Item looks up a plan item by id.
func (p *OsiNotaPlan) Item(id string) (OsiNotaPlanItem, bool) {
	if p == nil {
		return OsiNotaPlanItem{}, false
	}
	for _, it := range p.Items {
		if it.ID == id {
			return it, true
		}
	}
	return OsiNotaPlanItem{}, false
}

// OSI is a service order. It owns its NotaEvents; nothing else holds them.
type OSI struct {
	ID         string       `json:"id"`
	Code       string       `json:"code"`
	NotaEvents []NotaEvent  `json:"notaEvents"`
	NotaPlan   *OsiNotaPlan `json:"osiNotaPlan,omitempty"`

	// Revision is bumped by stores on every save (optimistic concurrency).
	Revision int `json:"revision"`
}

// Event returns a pointer into the OSI's own event slice.
func (o *OSI) Event(id string) (*NotaEvent, bool) {
	for i := range o.NotaEvents {
		if o.NotaEvents[i].ID == id {
			return &o.NotaEvents[i], true
		}
	}
	return nil, false
}

// AddEvent appends a newly registered event.
func (o *OSI) AddEvent(e NotaEvent) {
	e.OSIID = o.ID
	o.NotaEvents = append(o.NotaEvents, e)
}

// Clone deep-copies the OSI so callers can mutate the copy freely.
func (o OSI) Clone() OSI {
	out := o
	out.NotaEvents = make([]NotaEvent, len(o.NotaEvents))
	for i, e := range o.NotaEvents {
		out.NotaEvents[i] = e.clone()
	}
	if o.NotaPlan != nil {
		plan := OsiNotaPlan{Items: append([]OsiNotaPlanItem(nil), o.NotaPlan.Items...)}
		out.NotaPlan = &plan
	}
	return out
}

// CloneOSIs deep-copies a slice of OSIs.
func CloneOSIs(osis []OSI) []OSI {
	out := make([]OSI, len(osis))
	for i, o := range osis {
		out[i] = o.Clone()
	}
	return out
}

// FindOSI looks up an OSI by id, returning its index.
func FindOSI(osis []OSI, id string) (int, bool) {
	for i := range osis {
		if osis[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// =============================================================================
// NOTA EVENT
// =============================================================================

// NotaEvent is the central mutable record.
type NotaEvent struct {
	ID          string `json:"id"`
	OSIID       string `json:"osiId"`
	EventTypeID string `json:"eventTypeId"`
	EmployeeID  string `json:"employeeId"`
	PlanItemID  string `json:"planItemId,omitempty"`

	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
	RegisteredAt time.Time `json:"registeredAt"`

	QtyActual        decimal.Decimal     `json:"qtyActual"`
	Unit             string              `json:"unit"`
	AmountCalculated decimal.NullDecimal `json:"amountCalculated"`
	Amount           decimal.NullDecimal `json:"amount"` // legacy

	Status      EventStatus `json:"status"`
	IsExtra     bool        `json:"isExtra"`
	Reason      string      `json:"reason,omitempty"`
	EvidenceURL string      `json:"evidenceUrl,omitempty"`

	ApprovedBy string     `json:"approvedBy,omitempty"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
	PaidBy     string     `json:"paidBy,omitempty"`
	PaidAt     *time.Time `json:"paidAt,omitempty"`

	// Cycle assignment, owned by the recompute engine.
	EffectiveDate           *Date  `json:"effectiveDate,omitempty"`
	PayCycleID              string `json:"payCycleId,omitempty"`
	PayConfigVersionApplied *int   `json:"payConfigVersionApplied,omitempty"`
}

func (e NotaEvent) clone() NotaEvent {
	out := e
	if e.ApprovedAt != nil {
		t := *e.ApprovedAt
		out.ApprovedAt = &t
	}
	if e.PaidAt != nil {
		t := *e.PaidAt
		out.PaidAt = &t
	}
	if e.EffectiveDate != nil {
		d := *e.EffectiveDate
		out.EffectiveDate = &d
	}
	if e.PayConfigVersionApplied != nil {
		v := *e.PayConfigVersionApplied
		out.PayConfigVersionApplied = &v
	}
	return out
}

// ReportAmount is AmountCalculated, else legacy Amount, else zero.
func (e NotaEvent) ReportAmount() decimal.Decimal {
	if e.AmountCalculated.Valid {
		return e.AmountCalculated.Decimal
	}
	if e.Amount.Valid {
		return e.Amount.Decimal
	}
	return decimal.Zero
}

// =============================================================================
// PAY CONFIG
// =============================================================================

// Frequency is the number of pay cycles per month.
type Frequency int

const (
	FrequencyMonthly     Frequency = 1
	FrequencySemiMonthly Frequency = 2
)

// DatePolicy picks the timestamp used as an event's effective date.
type DatePolicy string

const (
	DatePolicyRegisteredAt DatePolicy = "REGISTERED_AT"
	DatePolicyApprovedAt   DatePolicy = "APPROVED_AT"
)

// PayConfig is the versioned pay configuration singleton.
type PayConfig struct {
	ID         string
	Version    int
	DatePolicy DatePolicy
	CutRules   CutRules
	TimeZone   string

	UpdatedAt time.Time
	UpdatedBy string
}

// Frequency is derived from the cut-rule variant.
func (c PayConfig) Frequency() Frequency {
	if c.CutRules == nil {
		return 0
	}
	return c.CutRules.Frequency()
}

// Location resolves TimeZone, falling back to UTC.
func (c PayConfig) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// =============================================================================
// PAY CYCLE
// =============================================================================

type CycleStatus string

const (
	CycleOpen   CycleStatus = "OPEN"
	CycleClosed CycleStatus = "CLOSED"
	CyclePaid   CycleStatus = "PAID"
)

// PayCycle is a bounded date window with a pay date.
type PayCycle struct {
	ID            string      `json:"id" db:"id"`
	Year          int         `json:"year" db:"year"`
	Month         time.Month  `json:"month" db:"month"`
	Slot          int         `json:"slot" db:"slot"`
	Label         string      `json:"label" db:"label"`
	PeriodStart   Date        `json:"periodStart" db:"period_start"`
	PeriodEnd     Date        `json:"periodEnd" db:"period_end"`
	PayDate       Date        `json:"payDate" db:"pay_date"`
	Status        CycleStatus `json:"status" db:"status"`
	ConfigVersion int         `json:"configVersion" db:"config_version"`
	CreatedAt     time.Time   `json:"createdAt" db:"created_at"`
}

// Period returns [PeriodStart, PeriodEnd].
func (c PayCycle) Period() Period {
	return Period{Start: c.PeriodStart, End: c.PeriodEnd}
}

// FindCycle looks up a cycle by id.
func FindCycle(cycles []PayCycle, id string) (PayCycle, bool) {
	for _, c := range cycles {
		if c.ID == id {
			return c, true
		}
	}
	return PayCycle{}, false
}
