package nota

import "fmt"

// =============================================================================
// ELIGIBILITY - May this employee register this event type?
// =============================================================================

// Eligibility is the outcome of an eligibility check with human-readable reasons
// for every failed prerequisite.
type Eligibility struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons,omitempty"`
}

// CheckEligibility evaluates both prerequisites of the event type.
// Catalogs are only used to name qualifications in Reasons; unknown ids
// fail closed through the missing employee record.
func CheckEligibility(employee User, eventType NotaEventType, catalogs Catalogs) Eligibility {
	var reasons []string

	if eventType.RequiredQualificationID != "" {
		minValue := 0
		if eventType.MinGradeValue != nil {
			minValue = *eventType.MinGradeValue
		}
		name := eventType.RequiredQualificationID
		if qt, ok := catalogs.QualificationType(name); ok && qt.Name != "" {
			name = qt.Name
		}

		q, ok := employee.Qualification(eventType.RequiredQualificationID)
		switch {
		case !ok:
			reasons = append(reasons, fmt.Sprintf("missing qualification %s", name))
		case GradeToValue(q.Grade) < minValue:
			reasons = append(reasons, fmt.Sprintf("qualification %s grade %s below required %s",
				name, q.Grade, ValueToGrade(minValue)))
		}
	}

	if eventType.RequiredShabCode != "" && !employee.HasActiveShab(eventType.RequiredShabCode) {
		reasons = append(reasons, fmt.Sprintf("missing active SHAB %s", eventType.RequiredShabCode))
	}

	return Eligibility{Eligible: len(reasons) == 0, Reasons: reasons}
}

// IsEligible is the boolean form of CheckEligibility. It never fails.
func IsEligible(employee User, eventType NotaEventType, catalogs Catalogs) bool {
	return CheckEligibility(employee, eventType, catalogs).Eligible
}

// EligibleEventTypes lists the active event types the employee may register.
func EligibleEventTypes(employee User, catalogs Catalogs) []NotaEventType {
	var out []NotaEventType
	for _, et := range catalogs.EventTypes {
		if et.Active && IsEligible(employee, et, catalogs) {
			out = append(out, et)
		}
	}
	return out
}
