package entity

import (
	"fmt"
	"time"
)

// DefaultDoneTimeout ожидание DONE от контроллера мотора по умолчанию.
const DefaultDoneTimeout = 15 * time.Second

// RunConfig параметры одного прогона инспекции.
type RunConfig struct {
	Teeth        int           // число зубьев на заготовке
	Captures     int           // число снимков (обычно равно Teeth)
	OutDir       string        // базовый каталог для снимков
	DoneTimeout  time.Duration // ожидание завершения движения мотора
	MakeSubdir   bool          // создавать ли подпапку run_<метка времени>
	CleanupFiles bool          // удалять ли файлы после успешной загрузки
}

// NewRunConfig создаёт конфигурацию с таймаутом по умолчанию.
func NewRunConfig(teeth int, outDir string) RunConfig {
	return RunConfig{
		Teeth:       teeth,
		Captures:    teeth,
		OutDir:      outDir,
		DoneTimeout: DefaultDoneTimeout,
		MakeSubdir:  true,
	}
}

// CaptureRecord один сохранённый снимок зуба. Создаётся в момент записи
// файла на диск и дальше не меняется.
type CaptureRecord struct {
	Tooth    int     // номер зуба, с 1
	AngleDeg float64 // абсолютный целевой угол
	Path     string  // путь к сохранённому файлу
}

// FileName возвращает детерминированное имя файла снимка.
func (r CaptureRecord) FileName() string {
	return CaptureFileName(r.Tooth, r.AngleDeg)
}

// CaptureFileName формирует имя файла снимка: номер зуба с ведущими нулями
// и угол с шестью знаками после запятой, без экспоненциальной записи.
func CaptureFileName(tooth int, angleDeg float64) string {
	return fmt.Sprintf("tooth_%04d_deg_%.6f.png", tooth, angleDeg)
}

// RunResult итог одного прогона инспекции.
type RunResult struct {
	OutDir       string // каталог со снимками
	Completed    int    // сколько циклов move+capture завершилось
	StoppedEarly bool   // прерван ли прогон (отмена или таймаут движения)
}

// UploadProgress агрегированный прогресс загрузки снимков.
// Меняется только под общим мьютексом оркестратора.
type UploadProgress struct {
	StepsDone  int    // выполнено шагов (создание наблюдения + загрузки)
	StepsTotal int    // всего шагов: 1 + число снимков
	Message    string // последнее человекочитаемое сообщение
	HadFailure bool   // липкий флаг: была ли хоть одна неудачная загрузка
}
