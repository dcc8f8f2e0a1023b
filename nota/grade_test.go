package nota_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/nota-engine/nota"
)

func TestGradeToValue_Monotonic(t *testing.T) {
	ordered := []nota.Grade{nota.GradeNA, nota.GradeC, nota.GradeB, nota.GradeA}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, nota.GradeToValue(ordered[i]), nota.GradeToValue(ordered[i-1]),
			"%s should rank above %s", ordered[i], ordered[i-1])
	}
}

func TestValueToGrade_RoundTripsDefinedValues(t *testing.T) {
	for v := 0; v <= 3; v++ {
		assert.Equal(t, v, nota.GradeToValue(nota.ValueToGrade(v)))
	}
}

func TestValueToGrade_ClampsOutOfRange(t *testing.T) {
	assert.Equal(t, nota.GradeA, nota.ValueToGrade(7))
	assert.Equal(t, nota.GradeNA, nota.ValueToGrade(-1))
	assert.Equal(t, nota.GradeNA, nota.ValueToGrade(-100))
}

func TestGradeToValue_UnknownIsNA(t *testing.T) {
	assert.Equal(t, 0, nota.GradeToValue("Z"))
	assert.False(t, nota.Grade("Z").Valid())
	assert.True(t, nota.GradeNA.Valid())
}
