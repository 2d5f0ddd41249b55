package motion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"inspection-rig/internal/domain/port"
)

// DoneToken строка, которой контроллер подтверждает завершение движения.
const DoneToken = "DONE"

// ErrNotConnected команда отправлена до подключения к порту.
var ErrNotConnected = errors.New("motion controller not connected")

// Config параметры подключения к контроллеру мотора.
type Config struct {
	Port              string        // имя последовательного порта (COM9, /dev/ttyUSB0)
	Baud              int           // скорость, по умолчанию 115200
	ConnectResetDelay time.Duration // пауза после открытия: платы перезагружаются при открытии порта
	ReadTimeout       time.Duration // таймаут одного чтения из порта
}

// NewConfig возвращает конфигурацию с умолчаниями протокола.
func NewConfig(portName string) Config {
	return Config{
		Port:              portName,
		Baud:              115200,
		ConnectResetDelay: 2 * time.Second,
		ReadTimeout:       50 * time.Millisecond,
	}
}

// serialPort минимальный срез serial.Port, нужный контроллеру.
// Выделен, чтобы в тестах подставлять двойник без реального железа.
type serialPort interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	SetReadTimeout(time.Duration) error
}

// Controller контроллер поворотного стола за последовательным портом.
//
// Протокол со стороны платы — ASCII-строки:
//
//	H\n — удержание мотора
//	R\n — снять удержание
//	Z\n — принять текущую позицию за ноль
//	M<градусы>\n — движение на абсолютный угол
//
// По завершении движения плата печатает строку DONE.
type Controller struct {
	cfg Config

	mu   sync.Mutex
	port serialPort
	rx   []byte
}

// New создаёт контроллер; подключение выполняется отдельно через Connect.
func New(cfg Config) *Controller {
	if cfg.Baud <= 0 {
		cfg.Baud = 115200
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 50 * time.Millisecond
	}
	return &Controller{cfg: cfg}
}

// IsConnected сообщает, открыт ли порт.
func (c *Controller) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port != nil
}

// Connect открывает последовательный порт и готовит контроллер к работе.
// Идемпотентен: повторный вызов на открытом порту ничего не делает.
func (c *Controller) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port != nil {
		return nil
	}

	mode := &serial.Mode{
		BaudRate: c.cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(c.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("opening %s: %w", c.cfg.Port, err)
	}
	if err := p.SetReadTimeout(c.cfg.ReadTimeout); err != nil {
		_ = p.Close()
		return fmt.Errorf("setting read timeout: %w", err)
	}
	c.port = p

	// Плата перезагружается при открытии порта: даём ей время подняться.
	if c.cfg.ConnectResetDelay > 0 {
		time.Sleep(c.cfg.ConnectResetDelay)
	}

	c.drainLocked()

	// После подключения мотор оставляем свободным.
	return c.writeLocked("R\n")
}

// Close закрывает порт. Безопасен на неподключённом контроллере.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	c.rx = nil
	return err
}

// drainLocked сбрасывает накопившийся ввод, чтобы старые DONE не путали
// ожидание. Вызывается под c.mu.
func (c *Controller) drainLocked() {
	if c.port == nil {
		return
	}
	_ = c.port.ResetInputBuffer()
	c.rx = nil
}

func (c *Controller) writeLocked(cmd string) error {
	if c.port == nil {
		return ErrNotConnected
	}
	if _, err := c.port.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("writing %q: %w", strings.TrimSpace(cmd), err)
	}
	return nil
}

func (c *Controller) write(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(cmd)
}

// Hold включает удержание мотора.
func (c *Controller) Hold() error { return c.write("H\n") }

// Release снимает удержание мотора.
func (c *Controller) Release() error { return c.write("R\n") }

// Zero объявляет текущую позицию нулевой.
func (c *Controller) Zero() error { return c.write("Z\n") }

// MoveAbsolute командует движение на абсолютный угол в градусах.
// Формат фиксированной точки: atof на стороне платы не понимает экспоненту.
func (c *Controller) MoveAbsolute(deg float64) error {
	return c.write(fmt.Sprintf("M%.6f\n", deg))
}

// readLinesLocked читает доступные байты и возвращает завершённые строки
// без хвостовых CR и пробелов. Вызывается под c.mu.
func (c *Controller) readLinesLocked() []string {
	if c.port == nil {
		return nil
	}

	buf := make([]byte, 128)
	n, err := c.port.Read(buf)
	if err != nil || n == 0 {
		return nil
	}
	c.rx = append(c.rx, buf[:n]...)

	var lines []string
	for {
		nl := bytes.IndexByte(c.rx, '\n')
		if nl < 0 {
			break
		}
		line := strings.TrimSpace(string(c.rx[:nl]))
		c.rx = c.rx[nl+1:]
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// WaitDone ждёт строку DONE не дольше timeout.
// Возвращает false при таймауте или отмене ctx. Отмена замечается в
// пределах одного интервала чтения порта, а не только по таймауту.
func (c *Controller) WaitDone(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}

		c.mu.Lock()
		lines := c.readLinesLocked()
		c.mu.Unlock()

		for _, line := range lines {
			if line == DoneToken {
				return true
			}
		}

		time.Sleep(time.Millisecond)
	}

	return false
}

var _ port.Motion = (*Controller)(nil)
