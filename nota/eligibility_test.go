package nota_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/nota-engine/nota"
)

func catalogs() nota.Catalogs {
	return nota.Catalogs{
		BaseQualificationTypes: []nota.BaseQualificationType{
			{ID: "cb-fragile", Code: "CB01", Name: "Embalador fragil"},
			{ID: "cb-driver", Code: "CB02", Name: "Conductor"},
		},
		ShabTypes: []nota.ShabType{{Code: "CARP", Name: "Carpintero"}, {Code: "ELEC", Name: "Electricista"}},
	}
}

func gradedType(minGrade *int) nota.NotaEventType {
	et := packingType()
	et.RequiredQualificationID = "cb-fragile"
	et.MinGradeValue = minGrade
	return et
}

func TestEligibility_NoPrerequisites_AnyoneEligible(t *testing.T) {
	assert.True(t, nota.IsEligible(nota.User{ID: "u-1"}, packingType(), catalogs()))
}

func TestEligibility_GradeAtOrAboveMinimum(t *testing.T) {
	emp := nota.User{ID: "u-1", BaseQualifications: []nota.EmployeeBaseQualification{
		{BaseTypeID: "cb-fragile", Grade: nota.GradeB},
	}}

	assert.True(t, nota.IsEligible(emp, gradedType(intPtr(2)), catalogs()), "B meets B")
	assert.True(t, nota.IsEligible(emp, gradedType(intPtr(1)), catalogs()), "B meets C")
	assert.False(t, nota.IsEligible(emp, gradedType(intPtr(3)), catalogs()), "B does not meet A")
}

func TestEligibility_DefaultMinimumIsZero(t *testing.T) {
	// GIVEN: a record graded NA and no minimum configured
	// THEN: holding the record is enough
	emp := nota.User{ID: "u-1", BaseQualifications: []nota.EmployeeBaseQualification{
		{BaseTypeID: "cb-fragile", Grade: nota.GradeNA},
	}}
	assert.True(t, nota.IsEligible(emp, gradedType(nil), catalogs()))
}

func TestEligibility_MissingRecordFails_EvenWithUnrelatedShab(t *testing.T) {
	emp := nota.User{
		ID:                 "u-1",
		BaseQualifications: []nota.EmployeeBaseQualification{{BaseTypeID: "cb-driver", Grade: nota.GradeA}},
		Shab:               []nota.EmployeeShab{{Code: "CARP", Active: true}},
	}

	res := nota.CheckEligibility(emp, gradedType(nil), catalogs())
	assert.False(t, res.Eligible)
	assert.Contains(t, res.Reasons, "missing qualification Embalador fragil")
}

func TestEligibility_ShabMustBeActive(t *testing.T) {
	et := packingType()
	et.RequiredShabCode = "ELEC"

	inactive := nota.User{ID: "u-1", Shab: []nota.EmployeeShab{{Code: "ELEC", Active: false}}}
	active := nota.User{ID: "u-2", Shab: []nota.EmployeeShab{{Code: "ELEC", Active: true}}}

	assert.False(t, nota.IsEligible(inactive, et, catalogs()))
	assert.True(t, nota.IsEligible(active, et, catalogs()))
}

func TestEligibility_BothConstraintsAreAnded(t *testing.T) {
	et := gradedType(intPtr(2))
	et.RequiredShabCode = "CARP"

	gradeOnly := nota.User{BaseQualifications: []nota.EmployeeBaseQualification{{BaseTypeID: "cb-fragile", Grade: nota.GradeA}}}
	shabOnly := nota.User{Shab: []nota.EmployeeShab{{Code: "CARP", Active: true}}}
	both := nota.User{
		BaseQualifications: gradeOnly.BaseQualifications,
		Shab:               shabOnly.Shab,
	}

	assert.False(t, nota.IsEligible(gradeOnly, et, catalogs()))
	assert.False(t, nota.IsEligible(shabOnly, et, catalogs()))
	assert.True(t, nota.IsEligible(both, et, catalogs()))

	res := nota.CheckEligibility(nota.User{}, et, catalogs())
	assert.Len(t, res.Reasons, 2)
}

func TestEligibility_UnknownQualificationFailsClosed(t *testing.T) {
	et := packingType()
	et.RequiredQualificationID = "cb-does-not-exist"

	emp := nota.User{BaseQualifications: []nota.EmployeeBaseQualification{{BaseTypeID: "cb-fragile", Grade: nota.GradeA}}}
	assert.False(t, nota.IsEligible(emp, et, nota.Catalogs{}))
}

func TestEligibility_PureAndStableUnderUnrelatedAdditions(t *testing.T) {
	et := gradedType(intPtr(1))
	emp := nota.User{BaseQualifications: []nota.EmployeeBaseQualification{{BaseTypeID: "cb-fragile", Grade: nota.GradeC}}}

	first := nota.IsEligible(emp, et, catalogs())
	second := nota.IsEligible(emp, et, catalogs())
	assert.Equal(t, first, second)
	assert.True(t, first)

	emp.BaseQualifications = append(emp.BaseQualifications, nota.EmployeeBaseQualification{BaseTypeID: "cb-driver", Grade: nota.GradeNA})
	emp.Shab = append(emp.Shab, nota.EmployeeShab{Code: "ELEC", Active: true})
	assert.True(t, nota.IsEligible(emp, et, catalogs()), "unrelated additions must not flip eligibility")
}

func TestEligibleEventTypes_SkipsInactiveAndIneligible(t *testing.T) {
	open := packingType()
	inactive := packingType()
	inactive.ID, inactive.Active = "et-old", false
	graded := gradedType(intPtr(3))
	graded.ID = "et-graded"

	c := catalogs()
	c.EventTypes = []nota.NotaEventType{open, inactive, graded}

	got := nota.EligibleEventTypes(nota.User{ID: "u-1"}, c)
	if len(got) != 1 || got[0].ID != "et-pack" {
		t.Fatalf("expected only et-pack, got %+v", got)
	}
}
