package nota

// =============================================================================
// GRADE - Base qualification grade, totally ordered A > B > C > NA
// =============================================================================

type Grade string

const (
	GradeA  Grade = "A"
	GradeB  Grade = "B"
	GradeC  Grade = "C"
	GradeNA Grade = "NA"
)

// GradeToValue maps A,B,C,NA to 3,2,1,0. Unknown grades count as NA.
func GradeToValue(g Grade) int {
	switch g {
	case GradeA:
		return 3
	case GradeB:
		return 2
	case GradeC:
		return 1
	default:
		return 0
	}
}

// ValueToGrade is the inverse of GradeToValue: >=3 is A, 2 is B, 1 is C, anything else NA.
func ValueToGrade(v int) Grade {
	switch {
	case v >= 3:
		return GradeA
	case v == 2:
		return GradeB
	case v == 1:
		return GradeC
	default:
		return GradeNA
	}
}

// Valid reports whether g is one of the four defined grades.
func (g Grade) Valid() bool {
	switch g {
	case GradeA, GradeB, GradeC, GradeNA:
		return true
	}
	return false
}
