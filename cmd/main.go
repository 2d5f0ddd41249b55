package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inspection-rig/config"
	app "inspection-rig/internal/application"
	"inspection-rig/internal/container"
	"inspection-rig/internal/domain/entity"
	"inspection-rig/internal/domain/port"
	"inspection-rig/internal/infrastructure/api"
	"inspection-rig/internal/infrastructure/camera"
	"inspection-rig/internal/infrastructure/history"
	"inspection-rig/internal/infrastructure/motion"
)

// uploadJoinTimeout сколько ждём завершения фоновых загрузок после цикла.
const uploadJoinTimeout = 2 * time.Minute

func main() {
	var (
		scanID      = flag.String("scan", "", "идентификатор образца с этикетки (QR)")
		testCaseID  = flag.Int("case", 0, "ID тест-кейса (вместо -scan)")
		cutNumber   = flag.Int("cut", 0, "номер реза; 0 — входной контроль")
		teeth       = flag.Int("teeth", 0, "число зубьев (обязателен с -case и -local)")
		localOut    = flag.String("local", "", "локальный прогон без API: каталог для снимков")
		mock        = flag.Bool("mock", false, "имитация мотора и камеры (без железа)")
		listHistory = flag.Bool("history", false, "показать последние прогоны и выйти")
		listCams    = flag.Bool("list-cameras", false, "перечислить доступные камеры и выйти")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *listCams {
		for _, idx := range camera.ListCameras(10) {
			fmt.Println(idx)
		}
		return
	}

	c, err := container.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build services: %v", err)
	}
	defer c.Close()

	if *listHistory {
		printHistory(c.History)
		return
	}

	// Ctrl-C — кооперативная остановка: текущая итерация дорабатывает.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Подчищаем заброшенные каталоги прошлых прогонов.
	app.CleanupStaleRunDirs(app.TempDirPrefix, app.DefaultMaxDirAge, func(msg string) { log.Println(msg) })

	motor, cam, cleanup, err := openHardware(cfg, *mock)
	if err != nil {
		log.Fatalf("Failed to open hardware: %v", err)
	}
	defer cleanup()

	if *localOut != "" {
		if *teeth <= 0 {
			log.Fatal("-teeth is required for a local run")
		}
		runLocal(ctx, c, *teeth, *localOut, motor, cam)
		return
	}

	params, err := resolveRunParams(ctx, c.API, *scanID, *testCaseID, *cutNumber, *teeth)
	if err != nil {
		log.Fatalf("%v", err)
	}
	runWithUpload(ctx, c, params, motor, cam)
}

// openHardware подключает мотор и камеру (или их имитации).
func openHardware(cfg *config.Config, mock bool) (port.Motion, port.Camera, func(), error) {
	if mock {
		cam := camera.NewMockCamera()
		_ = cam.Open()
		return mockMotion{}, cam, func() { _ = cam.Close() }, nil
	}

	motor := motion.New(motion.NewConfig(cfg.MotorPort))
	if err := motor.Connect(); err != nil {
		return nil, nil, nil, err
	}

	cam := camera.NewUSBCamera(cfg.CameraIndex)
	if err := cam.Open(); err != nil {
		_ = motor.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		_ = motor.Release()
		_ = motor.Close()
		_ = cam.Close()
	}
	return motor, cam, cleanup, nil
}

// resolveRunParams определяет параметры прогона: либо по идентификатору
// с этикетки через сервис, либо из явных флагов.
func resolveRunParams(ctx context.Context, client *api.Client, scanID string, testCaseID, cutNumber, teeth int) (app.RunParams, error) {
	if scanID != "" {
		sc, err := client.GetSampleContext(ctx, scanID)
		if err != nil {
			return app.RunParams{}, fmt.Errorf("resolving sample %q: %w", scanID, err)
		}
		log.Printf("Sample %q: test case %d, cut %d, %d teeth", sc.SampleName, sc.TestCaseID, sc.CutNumber, sc.Teeth)
		return app.RunParams{TestCaseID: sc.TestCaseID, CutNumber: sc.CutNumber, Teeth: sc.Teeth}, nil
	}

	if testCaseID <= 0 {
		return app.RunParams{}, errors.New("either -scan or -case is required (or -local for an offline run)")
	}
	if teeth <= 0 {
		return app.RunParams{}, errors.New("-teeth is required with -case")
	}
	return app.RunParams{TestCaseID: testCaseID, CutNumber: cutNumber, Teeth: teeth}, nil
}

// runLocal прогон без API: снимки остаются в указанном каталоге.
func runLocal(ctx context.Context, c *container.Container, teeth int, outDir string, motor port.Motion, cam port.Camera) {
	result, err := app.Run(ctx, entity.NewRunConfig(teeth, outDir), motor, cam, app.Callbacks{
		OnEvent: func(msg string) { log.Println(msg) },
	})
	if err != nil {
		notifyAndExit(c, fmt.Sprintf("Inspection failed: %v", err))
	}

	recordRun(c.History, history.Record{
		OutDir:       result.OutDir,
		Completed:    result.Completed,
		StoppedEarly: result.StoppedEarly,
	})
	summary := fmt.Sprintf("Local inspection finished: %d captures in %s (stopped early: %v)",
		result.Completed, result.OutDir, result.StoppedEarly)
	log.Println(summary)
	_ = c.Notifier.Send(summary)
}

// runWithUpload полный цикл: наблюдение, съёмка, фоновые загрузки.
func runWithUpload(ctx context.Context, c *container.Container, params app.RunParams, motor port.Motion, cam port.Camera) {
	cb := app.WorkflowCallbacks{
		OnEvent: func(msg string) { log.Println(msg) },
		OnProgress: func(done, total int, msg string, hadFailure bool) {
			log.Printf("[%d/%d] %s", done, total, msg)
		},
	}

	result, stats, err := c.Workflow.RunWithUpload(ctx, params, motor, cam, cb)
	if err != nil {
		if errors.Is(err, api.ErrDuplicateObservation) {
			notifyAndExit(c, fmt.Sprintf(
				"Observation for test case %d cut %d already exists: this inspection was already recorded.",
				params.TestCaseID, params.CutNumber))
		}
		// Загрузки, начатые до отказа, дорабатывают в фоне.
		if stats != nil {
			waitUploads(stats)
		}
		notifyAndExit(c, fmt.Sprintf("Inspection failed: %v", err))
	}
	uploaded, failed := waitUploads(stats)

	recordRun(c.History, history.Record{
		OutDir:        result.OutDir,
		Completed:     result.Completed,
		StoppedEarly:  result.StoppedEarly,
		ObservationID: stats.ObservationID(),
		Uploaded:      uploaded,
		Failed:        failed,
	})

	summary := fmt.Sprintf("Inspection finished: %d captures, %d uploaded, %d failed (stopped early: %v)",
		result.Completed, uploaded, failed, result.StoppedEarly)
	log.Println(summary)
	_ = c.Notifier.Send(summary)
}

// waitUploads дожидается фоновых загрузок, но не бесконечно.
func waitUploads(stats *app.UploadStats) (uploaded, failed int) {
	waitCtx, cancel := context.WithTimeout(context.Background(), uploadJoinTimeout)
	defer cancel()

	uploaded, failed, err := stats.Wait(waitCtx)
	if err != nil {
		log.Printf("⚠ Gave up waiting for background uploads: %v", err)
	}
	return uploaded, failed
}

func recordRun(store *history.Store, r history.Record) {
	if _, err := store.Add(r); err != nil {
		log.Printf("⚠ Failed to record run in history: %v", err)
	}
}

func printHistory(store *history.Store) {
	records, err := store.List(20)
	if err != nil {
		log.Fatalf("Failed to list history: %v", err)
	}
	for _, r := range records {
		fmt.Printf("%s  %s  captures=%d uploaded=%d failed=%d stopped_early=%v  %s\n",
			r.StartedAt.Format(time.RFC3339), r.ID, r.Completed, r.Uploaded, r.Failed, r.StoppedEarly, r.OutDir)
	}
}

func notifyAndExit(c *container.Container, msg string) {
	_ = c.Notifier.Send(msg)
	log.Fatal(msg)
}

// mockMotion пустая реализация мотора для прогонов без железа.
type mockMotion struct{}

func (mockMotion) Hold() error                { return nil }
func (mockMotion) Release() error             { return nil }
func (mockMotion) Zero() error                { return nil }
func (mockMotion) MoveAbsolute(float64) error { return nil }
func (mockMotion) WaitDone(ctx context.Context, timeout time.Duration) bool {
	return ctx.Err() == nil
}
