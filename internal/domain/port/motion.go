package port

import (
	"context"
	"time"
)

// Motion интерфейс контроллера поворотного стола.
// Реализация владеет последовательным портом; движок лишь одалживает её
// на время прогона и никогда сам не открывает и не закрывает соединение.
type Motion interface {
	// Hold включает удержание мотора (идемпотентно).
	Hold() error

	// Release отключает удержание мотора.
	Release() error

	// Zero объявляет текущую позицию нулевой.
	Zero() error

	// MoveAbsolute командует переход на абсолютный угол в градусах.
	MoveAbsolute(deg float64) error

	// WaitDone ждёт подтверждения завершения движения не дольше timeout.
	// Возвращает false при таймауте или отмене ctx; отмена должна
	// замечаться в пределах интервала опроса, а не только по таймауту.
	WaitDone(ctx context.Context, timeout time.Duration) bool
}
