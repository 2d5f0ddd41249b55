package kinematics

import "errors"

// ErrInvalidToothCount возвращается, когда число зубьев не положительное.
var ErrInvalidToothCount = errors.New("tooth count must be > 0")

// StepAngle возвращает угловой шаг между соседними зубьями в градусах.
func StepAngle(teeth int) (float64, error) {
	if teeth <= 0 {
		return 0, ErrInvalidToothCount
	}
	return 360.0 / float64(teeth), nil
}

// ToothAngle возвращает абсолютный угол для зуба с индексом index (0..teeth-1).
func ToothAngle(index, teeth int) (float64, error) {
	step, err := StepAngle(teeth)
	if err != nil {
		return 0, err
	}
	return float64(index) * step, nil
}
