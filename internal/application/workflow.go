package app

import (
	"context"
	"fmt"
	"os"
	"sync"

	"inspection-rig/internal/domain/entity"
	"inspection-rig/internal/domain/port"
)

// TempDirPrefix префикс временных каталогов прогонов в системном temp.
const TempDirPrefix = "inspection_"

// defaultUploadWorkers ограничение числа одновременных загрузок, чтобы
// большое число зубьев не порождало неограниченный веер горутин.
const defaultUploadWorkers = 4

// RunParams параметры прогона с загрузкой в трекинговый сервис.
type RunParams struct {
	TestCaseID int
	CutNumber  int // 0 — входной контроль (scope incoming)
	Teeth      int
}

// WorkflowCallbacks обратные вызовы оркестратора.
type WorkflowCallbacks struct {
	OnEvent func(msg string)
	OnImage func(path string)

	// OnProgress вызывается под общим мьютексом прогресса: done — сколько
	// шагов выполнено, total = 1 + число снимков.
	OnProgress func(done, total int, msg string, hadFailure bool)
}

func (cb WorkflowCallbacks) emit(msg string) {
	if cb.OnEvent != nil {
		cb.OnEvent(msg)
	}
}

// Workflow оркестратор полного цикла инспекции: создаёт наблюдение,
// запускает движок и в фоне загружает каждый снимок в сервис.
type Workflow struct {
	obs port.Observations

	// UploadWorkers ограничивает число одновременных загрузок.
	UploadWorkers int
}

// NewWorkflow создаёт оркестратор поверх клиента трекингового сервиса.
func NewWorkflow(obs port.Observations) *Workflow {
	return &Workflow{obs: obs, UploadWorkers: defaultUploadWorkers}
}

// UploadStats разделяемое состояние фоновых загрузок одного прогона.
// Счётчики меняются только под mu; Wait служит явной точкой соединения
// для вызывающих, которым нужна гарантия "все загрузки завершились".
type UploadStats struct {
	mu            sync.Mutex
	wg            sync.WaitGroup
	observationID int
	stepsDone     int
	stepsTotal    int
	teethTotal    int
	uploaded      int
	failed        int
	hadFailure    bool
	lastMsg       string
}

// ObservationID возвращает наблюдение, к которому шли загрузки прогона.
func (s *UploadStats) ObservationID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observationID
}

// step отмечает выполненный шаг и сообщает прогресс. Вызывается из
// конкурентных загрузчиков, поэтому весь апдейт идёт под одним мьютексом.
func (s *UploadStats) step(msg string, onProgress func(done, total int, msg string, hadFailure bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stepsDone++
	s.lastMsg = msg
	if onProgress != nil {
		onProgress(s.stepsDone, s.stepsTotal, msg, s.hadFailure)
	}
}

// Snapshot возвращает срез прогресса на текущий момент.
func (s *UploadStats) Snapshot() entity.UploadProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return entity.UploadProgress{
		StepsDone:  s.stepsDone,
		StepsTotal: s.stepsTotal,
		Message:    s.lastMsg,
		HadFailure: s.hadFailure,
	}
}

// Wait блокируется, пока не завершатся все фоновые загрузки прогона
// или не отменится ctx. Возвращает итоговые счётчики успехов и неудач.
func (s *UploadStats) Wait(ctx context.Context) (uploaded, failed int, err error) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploaded, s.failed, err
}

// RunWithUpload исполняет полный цикл инспекции:
//
//  1. создаёт наблюдение в трекинговом сервисе (до любого движения);
//  2. прогоняет движок инспекции во временном каталоге;
//  3. каждый готовый снимок загружает в фоне и после успеха удаляет.
//
// Неудача отдельной загрузки не прерывает физическую съёмку: она считается,
// поднимает липкий флаг hadFailure и попадает в прогресс. Метод возвращается
// по завершении цикла движка; незавершённые загрузки продолжаются в фоне,
// их можно дождаться через UploadStats.Wait.
func (w *Workflow) RunWithUpload(ctx context.Context, p RunParams, motion port.Motion, camera port.Camera, cb WorkflowCallbacks) (*entity.RunResult, *UploadStats, error) {
	scope := entity.ScopeForCut(p.CutNumber)

	cb.emit(fmt.Sprintf("Creating observation for test case %d (scope: %s)...", p.TestCaseID, scope))
	obs, err := w.obs.CreateObservation(ctx, p.TestCaseID, scope, p.CutNumber)
	if err != nil {
		return nil, nil, fmt.Errorf("creating observation: %w", err)
	}

	stats := &UploadStats{
		observationID: obs.ID,
		stepsTotal:    1 + p.Teeth,
		teethTotal:    p.Teeth,
	}
	stats.step(fmt.Sprintf("Observation created (ID %d)", obs.ID), cb.OnProgress)
	cb.emit(fmt.Sprintf("✓ Created observation ID: %d", obs.ID))

	// Уникальный временный каталог на прогон, чтобы повторные попытки
	// не перезаписывали чужие снимки.
	tempDir, err := os.MkdirTemp("", TempDirPrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("creating temp run dir: %w", err)
	}

	cfg := entity.RunConfig{
		Teeth:        p.Teeth,
		Captures:     p.Teeth,
		OutDir:       tempDir,
		DoneTimeout:  entity.DefaultDoneTimeout,
		MakeSubdir:   false, // каталог уже уникален
		CleanupFiles: true,
	}

	workers := w.UploadWorkers
	if workers <= 0 {
		workers = defaultUploadWorkers
	}
	sem := make(chan struct{}, workers)

	// Отмена прогона не прерывает уже начатые загрузки.
	uploadCtx := context.WithoutCancel(ctx)

	fileReady := func(path string, tooth int) {
		stats.wg.Add(1)
		go func() {
			defer stats.wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			w.uploadOne(uploadCtx, obs.ID, path, tooth, cfg.CleanupFiles, stats, cb)
		}()
	}

	cb.emit(fmt.Sprintf("Starting inspection: %d captures", p.Teeth))

	result, err := Run(ctx, cfg, motion, camera, Callbacks{
		OnEvent:     cb.OnEvent,
		OnImage:     cb.OnImage,
		OnFileReady: fileReady,
	})
	if err != nil {
		return nil, stats, err
	}

	cb.emit("✓ Inspection complete!")
	return result, stats, nil
}

// uploadOne загружает один снимок, обновляет счётчики и прогресс.
func (w *Workflow) uploadOne(ctx context.Context, observationID int, path string, tooth int, cleanup bool, stats *UploadStats, cb WorkflowCallbacks) {
	err := w.obs.UploadAttachment(ctx, observationID, path, tooth)
	if err != nil {
		stats.mu.Lock()
		stats.failed++
		stats.hadFailure = true
		stats.mu.Unlock()
		cb.emit(fmt.Sprintf("⚠ Upload failed for tooth_%d: %v", tooth, err))
	} else {
		stats.mu.Lock()
		stats.uploaded++
		stats.mu.Unlock()
		cb.emit(fmt.Sprintf("✓ Uploaded tooth_%d to observation", tooth))

		if cleanup {
			// Удаление best-effort: неудача только логируется.
			if rmErr := os.Remove(path); rmErr != nil {
				cb.emit(fmt.Sprintf("⚠ Failed to delete temp file tooth_%d: %v", tooth, rmErr))
			} else {
				cb.emit(fmt.Sprintf("✓ Deleted temp file: tooth_%d", tooth))
			}
		}
	}

	stats.mu.Lock()
	msg := fmt.Sprintf("Uploaded %d / %d teeth", stats.uploaded, stats.teethTotal)
	if stats.failed > 0 {
		msg += fmt.Sprintf("  (%d failed)", stats.failed)
	}
	stats.mu.Unlock()
	stats.step(msg, cb.OnProgress)
}
