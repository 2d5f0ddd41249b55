package kinematics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToothAngle_72Teeth(t *testing.T) {
	// Для 72 зубьев шаг равен ровно 5 градусам.
	for i := 0; i < 72; i++ {
		angle, err := ToothAngle(i, 72)
		require.NoError(t, err)
		require.Equal(t, float64(i)*5.0, angle)
	}
}

func TestToothAngle_ZeroIndexIsAlwaysZero(t *testing.T) {
	for _, teeth := range []int{1, 3, 7, 72, 360, 1000} {
		angle, err := ToothAngle(0, teeth)
		require.NoError(t, err)
		require.Equal(t, 0.0, angle)
	}
}

func TestToothAngle_Formula(t *testing.T) {
	cases := []struct {
		index, teeth int
		want         float64
	}{
		{1, 72, 5.0},
		{71, 72, 355.0},
		{1, 3, 120.0},
		{2, 3, 240.0},
		{5, 7, 5.0 * 360.0 / 7.0},
	}
	for _, c := range cases {
		angle, err := ToothAngle(c.index, c.teeth)
		require.NoError(t, err)
		require.Equal(t, c.want, angle)
	}
}

func TestToothAngle_InvalidToothCount(t *testing.T) {
	for _, teeth := range []int{0, -1, -72} {
		for _, index := range []int{0, 1, 10} {
			_, err := ToothAngle(index, teeth)
			require.ErrorIs(t, err, ErrInvalidToothCount)
		}
	}
}

func TestStepAngle(t *testing.T) {
	step, err := StepAngle(72)
	require.NoError(t, err)
	require.Equal(t, 5.0, step)

	_, err = StepAngle(0)
	require.ErrorIs(t, err, ErrInvalidToothCount)
}
