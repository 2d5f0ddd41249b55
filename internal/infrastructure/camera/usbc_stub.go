//go:build !gocv
// +build !gocv

package camera

import (
	"errors"

	"inspection-rig/internal/domain/port"
)

// USBCamera заглушка для сборки без OpenCV.
type USBCamera struct {
	DeviceIndex int
}

// NewUSBCamera создаёт камеру-заглушку (без OpenCV).
func NewUSBCamera(deviceIndex int) *USBCamera {
	return &USBCamera{DeviceIndex: deviceIndex}
}

var errNoGocv = errors.New("gocv build tag is not enabled")

// IsOpen возвращает false: без тега gocv камеры нет.
func (c *USBCamera) IsOpen() bool { return false }

// Open возвращает ошибку, если сборка без тега gocv.
func (c *USBCamera) Open() error { return errNoGocv }

// Close ничего не делает в заглушке.
func (c *USBCamera) Close() error { return nil }

// CaptureTo возвращает ошибку, если сборка без тега gocv.
func (c *USBCamera) CaptureTo(path string) error {
	_ = path
	return errNoGocv
}

// ListCameras возвращает пустой список без тега gocv.
func ListCameras(maxIndex int) []int {
	_ = maxIndex
	return nil
}

var _ port.Camera = (*USBCamera)(nil)
