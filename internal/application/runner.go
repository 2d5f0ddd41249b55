package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"inspection-rig/internal/domain/entity"
	"inspection-rig/internal/domain/kinematics"
	"inspection-rig/internal/domain/port"
)

var (
	// ErrInvalidConfig конфигурация прогона не прошла проверку.
	ErrInvalidConfig = errors.New("invalid run config")

	// ErrCapture камера не смогла снять или сохранить кадр.
	// Фатально для прогона: ретраев движок не делает.
	ErrCapture = errors.New("capture failed")
)

// Callbacks необязательные обратные вызовы движка инспекции.
// Все вызовы происходят синхронно из цикла прогона.
type Callbacks struct {
	// OnEvent получает человекочитаемые строки о ходе прогона.
	OnEvent func(msg string)

	// OnImage получает путь сохранённого снимка для живого предпросмотра.
	OnImage func(path string)

	// OnFileReady точка передачи готового файла дальше (загрузка, копия).
	// Движок не ждёт завершения фоновой работы, которую запустит получатель.
	OnFileReady func(path string, tooth int)
}

func (cb Callbacks) emit(msg string) {
	if cb.OnEvent != nil {
		cb.OnEvent(msg)
	}
}

// Run исполняет цикл инспекции: движение мотора + снимок на каждый зуб.
//
// Движок ничего не знает про API загрузки: это чистый координатор железа,
// который отдаёт готовые файлы через OnFileReady. Мотор и камера одалживаются
// у вызывающего на время прогона; движок их не открывает и не закрывает.
//
// Отмена ctx — кооперативная: проверяется в начале каждой итерации и внутри
// ожидания движения. Отменённый или не дождавшийся DONE прогон завершается
// штатно с RunResult.StoppedEarly == true, без ошибки.
func Run(ctx context.Context, cfg entity.RunConfig, motion port.Motion, camera port.Camera, cb Callbacks) (*entity.RunResult, error) {
	if cfg.Teeth <= 0 {
		return nil, fmt.Errorf("%w: teeth must be > 0, got %d", ErrInvalidConfig, cfg.Teeth)
	}
	if cfg.Captures <= 0 {
		return nil, fmt.Errorf("%w: captures must be > 0, got %d", ErrInvalidConfig, cfg.Captures)
	}

	runDir := cfg.OutDir
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	if cfg.MakeSubdir {
		stamp := time.Now().Format("20060102_150405")
		runDir = filepath.Join(cfg.OutDir, "run_"+stamp)
		if err := os.MkdirAll(runDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating run dir: %w", err)
		}
	}
	cb.emit("Run dir: " + runDir)

	// Убеждаемся, что мотор держит позицию до первого движения.
	if err := motion.Hold(); err != nil {
		return nil, fmt.Errorf("engaging motor hold: %w", err)
	}

	result := &entity.RunResult{OutDir: runDir}

	for i := 0; i < cfg.Captures; i++ {
		if ctx.Err() != nil {
			cb.emit("Stopped.")
			result.StoppedEarly = true
			break
		}

		angle, err := kinematics.ToothAngle(i, cfg.Teeth)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		cb.emit(fmt.Sprintf("Move %d/%d: %.6f deg", i+1, cfg.Captures, angle))

		if err := motion.MoveAbsolute(angle); err != nil {
			cb.emit(fmt.Sprintf("Move command failed at move %d: %v", i+1, err))
			result.StoppedEarly = true
			break
		}

		if !motion.WaitDone(ctx, cfg.DoneTimeout) {
			cb.emit(fmt.Sprintf("WAIT DONE failed (timeout/stop) at move %d.", i+1))
			result.StoppedEarly = true
			break
		}

		// Нумерация зубьев начинается с 1.
		tooth := i + 1
		path := filepath.Join(runDir, entity.CaptureFileName(tooth, angle))

		cb.emit(fmt.Sprintf("Capturing image %d...", i+1))
		if err := camera.CaptureTo(path); err != nil {
			return nil, fmt.Errorf("tooth %d: %w: %w", tooth, ErrCapture, err)
		}
		cb.emit("✓ Saved: " + filepath.Base(path))
		result.Completed++

		if cb.OnFileReady != nil {
			cb.OnFileReady(path, tooth)
		}
		if cb.OnImage != nil {
			cb.OnImage(path)
		}
	}

	cb.emit("Run complete.")
	return result, nil
}
