//go:build gocv
// +build gocv

package camera

import (
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"inspection-rig/internal/domain/port"
)

// USBCamera камера на OpenCV (gocv.VideoCapture) для USB/встроенных камер.
type USBCamera struct {
	DeviceIndex int

	cap *gocv.VideoCapture
}

// NewUSBCamera создаёт камеру по индексу устройства.
func NewUSBCamera(deviceIndex int) *USBCamera {
	return &USBCamera{DeviceIndex: deviceIndex}
}

// IsOpen сообщает, открыта ли камера.
func (c *USBCamera) IsOpen() bool {
	return c.cap != nil && c.cap.IsOpened()
}

// Open открывает камеру (идемпотентно).
func (c *USBCamera) Open() error {
	if c.IsOpen() {
		return nil
	}

	cap, err := gocv.OpenVideoCapture(c.DeviceIndex)
	if err != nil {
		return fmt.Errorf("opening camera %d: %w", c.DeviceIndex, err)
	}
	if !cap.IsOpened() {
		_ = cap.Close()
		return fmt.Errorf("camera %d did not open", c.DeviceIndex)
	}
	c.cap = cap
	return nil
}

// Close освобождает камеру.
func (c *USBCamera) Close() error {
	if c.cap == nil {
		return nil
	}
	err := c.cap.Close()
	c.cap = nil
	return err
}

// CaptureTo снимает кадр и сохраняет его как PNG.
func (c *USBCamera) CaptureTo(path string) error {
	if !c.IsOpen() {
		return errors.New("usb camera not open")
	}

	frame := gocv.NewMat()
	defer frame.Close()

	// Прокачиваем буфер камеры: несколько чтений выбрасывают кадры,
	// снятые пока мотор ещё двигался.
	for i := 0; i < 3; i++ {
		c.cap.Read(&frame)
		time.Sleep(50 * time.Millisecond)
	}

	if ok := c.cap.Read(&frame); !ok || frame.Empty() {
		return errors.New("failed to capture frame from usb camera")
	}

	if ok := gocv.IMWrite(path, frame); !ok {
		return fmt.Errorf("failed to save image to %s", path)
	}
	return nil
}

// ReadFrame читает один кадр для живого предпросмотра.
func (c *USBCamera) ReadFrame(frame *gocv.Mat) bool {
	if !c.IsOpen() {
		return false
	}
	return c.cap.Read(frame)
}

// ListCameras пробует индексы 0..maxIndex-1 и возвращает рабочие.
// Может быть медленной: каждая камера ненадолго открывается.
func ListCameras(maxIndex int) []int {
	var available []int
	for i := 0; i < maxIndex; i++ {
		cap, err := gocv.OpenVideoCapture(i)
		if err != nil {
			continue
		}
		if cap.IsOpened() {
			available = append(available, i)
		}
		_ = cap.Close()
	}
	return available
}

var _ port.Camera = (*USBCamera)(nil)
