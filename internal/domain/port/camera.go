package port

// Camera интерфейс камеры инспекции.
type Camera interface {
	// Open открывает камеру (идемпотентно).
	Open() error

	// Close освобождает камеру.
	Close() error

	// IsOpen сообщает, открыта ли камера.
	IsOpen() bool

	// CaptureTo снимает один кадр и сохраняет его в файл path.
	CaptureTo(path string) error
}
