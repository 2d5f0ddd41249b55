package camera

import (
	"errors"
	"os"
	"sync"
	"time"

	"inspection-rig/internal/domain/port"
)

// MockCamera имитирует камеру для прогонов без железа: вместо настоящего
// кадра пишет в файл маленькую заглушку.
type MockCamera struct {
	// Delay имитация времени съёмки кадра.
	Delay time.Duration

	mu   sync.Mutex
	open bool
}

// NewMockCamera создаёт имитацию камеры.
func NewMockCamera() *MockCamera {
	return &MockCamera{Delay: 200 * time.Millisecond}
}

// IsOpen сообщает, открыта ли имитация.
func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Open открывает имитацию (идемпотентно).
func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	return nil
}

// Close закрывает имитацию.
func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

// CaptureTo пишет файл-заглушку вместо настоящего снимка.
func (c *MockCamera) CaptureTo(path string) error {
	if !c.IsOpen() {
		return errors.New("mock camera not open")
	}
	if c.Delay > 0 {
		time.Sleep(c.Delay)
	}
	return os.WriteFile(path, []byte("mock capture\n"), 0o644)
}

var _ port.Camera = (*MockCamera)(nil)
