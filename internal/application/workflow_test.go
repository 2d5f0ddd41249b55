package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"inspection-rig/internal/domain/entity"
	"inspection-rig/internal/domain/port"
)

// fakeObservations тестовый двойник трекингового сервиса.
type fakeObservations struct {
	mu        sync.Mutex
	createErr error
	uploadErr func(tooth int) error
	created   []entity.Observation
	uploads   []int // номера зубьев в порядке завершения загрузок
}

func (f *fakeObservations) CreateObservation(ctx context.Context, testCaseID int, scope entity.ObservationScope, cutNumber int) (*entity.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	obs := entity.Observation{ID: 100 + len(f.created), Scope: scope, CutNumber: cutNumber}
	f.created = append(f.created, obs)
	return &obs, nil
}

func (f *fakeObservations) UploadAttachment(ctx context.Context, observationID int, path string, tag int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		if err := f.uploadErr(tag); err != nil {
			return err
		}
	}
	f.uploads = append(f.uploads, tag)
	return nil
}

var _ port.Observations = (*fakeObservations)(nil)

func runWorkflow(t *testing.T, obs *fakeObservations, p RunParams, cb WorkflowCallbacks) (*entity.RunResult, *UploadStats) {
	t.Helper()
	w := NewWorkflow(obs)
	result, stats, err := w.RunWithUpload(context.Background(), p, &fakeMotion{}, &fakeCamera{}, cb)
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(result.OutDir) })
	return result, stats
}

func TestRunWithUpload_HappyPath(t *testing.T) {
	obs := &fakeObservations{}
	result, stats := runWorkflow(t, obs, RunParams{TestCaseID: 7, Teeth: 5}, WorkflowCallbacks{})

	require.Equal(t, 5, result.Completed)
	require.False(t, result.StoppedEarly)

	uploaded, failed, err := stats.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, uploaded)
	require.Zero(t, failed)

	// Scope incoming при нулевом номере реза.
	require.Len(t, obs.created, 1)
	require.Equal(t, entity.ScopeIncoming, obs.created[0].Scope)
	require.Equal(t, obs.created[0].ID, stats.ObservationID())

	// Все пять зубьев загружены (порядок не гарантирован).
	require.ElementsMatch(t, []int{1, 2, 3, 4, 5}, obs.uploads)

	// После успешной загрузки временные файлы удалены.
	entries, err := os.ReadDir(result.OutDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRunWithUpload_CutScope(t *testing.T) {
	obs := &fakeObservations{}
	_, stats := runWorkflow(t, obs, RunParams{TestCaseID: 7, CutNumber: 3, Teeth: 2}, WorkflowCallbacks{})
	_, _, err := stats.Wait(context.Background())
	require.NoError(t, err)

	require.Equal(t, entity.ScopeCut, obs.created[0].Scope)
	require.Equal(t, 3, obs.created[0].CutNumber)
}

func TestRunWithUpload_DuplicateObservationNeverTouchesHardware(t *testing.T) {
	errDup := errors.New("observation already exists for this cut")
	obs := &fakeObservations{createErr: errDup}
	motion := &fakeMotion{}
	camera := &fakeCamera{}

	w := NewWorkflow(obs)
	_, _, err := w.RunWithUpload(context.Background(), RunParams{TestCaseID: 7, CutNumber: 1, Teeth: 5}, motion, camera, WorkflowCallbacks{})
	require.ErrorIs(t, err, errDup)

	// Ни движения, ни снимков не было.
	require.Zero(t, motion.holds)
	require.Empty(t, motion.moves)
	require.Empty(t, camera.captures)
}

func TestRunWithUpload_SingleUploadFailureIsIsolated(t *testing.T) {
	errNet := errors.New("connection reset")
	obs := &fakeObservations{
		uploadErr: func(tooth int) error {
			if tooth == 3 {
				return errNet
			}
			return nil
		},
	}

	var progressMu sync.Mutex
	var lastDone, lastTotal int
	var lastHadFailure bool
	cb := WorkflowCallbacks{
		OnProgress: func(done, total int, msg string, hadFailure bool) {
			progressMu.Lock()
			defer progressMu.Unlock()
			lastDone, lastTotal, lastHadFailure = done, total, hadFailure
		},
	}

	result, stats := runWorkflow(t, obs, RunParams{TestCaseID: 7, Teeth: 5}, cb)

	// Физическая съёмка не пострадала.
	require.Equal(t, 5, result.Completed)

	uploaded, failed, err := stats.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, uploaded)
	require.Equal(t, 1, failed)

	snap := stats.Snapshot()
	require.True(t, snap.HadFailure)
	require.Equal(t, snap.StepsTotal, snap.StepsDone)

	progressMu.Lock()
	defer progressMu.Unlock()
	require.Equal(t, 6, lastTotal) // 1 шаг наблюдения + 5 загрузок
	require.Equal(t, 6, lastDone)
	require.True(t, lastHadFailure)

	// Файл неудачной загрузки остаётся на диске, остальные удалены.
	entries, readErr := os.ReadDir(result.OutDir)
	require.NoError(t, readErr)
	require.Len(t, entries, 1)
	require.Equal(t, "tooth_0003_deg_144.000000.png", entries[0].Name())
}

func TestRunWithUpload_ProgressCountsObservationStep(t *testing.T) {
	obs := &fakeObservations{}

	var mu sync.Mutex
	var first []int
	cb := WorkflowCallbacks{
		OnProgress: func(done, total int, msg string, hadFailure bool) {
			mu.Lock()
			defer mu.Unlock()
			if first == nil {
				first = []int{done, total}
			}
		},
	}

	_, stats := runWorkflow(t, obs, RunParams{TestCaseID: 7, Teeth: 3}, cb)
	_, _, err := stats.Wait(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	// Первый шаг — само создание наблюдения.
	require.Equal(t, []int{1, 4}, first)
}

func TestRunWithUpload_TempDirIsUniquePerRun(t *testing.T) {
	obs := &fakeObservations{}
	r1, s1 := runWorkflow(t, obs, RunParams{TestCaseID: 7, Teeth: 1}, WorkflowCallbacks{})
	r2, s2 := runWorkflow(t, obs, RunParams{TestCaseID: 7, Teeth: 1}, WorkflowCallbacks{})
	_, _, _ = s1.Wait(context.Background())
	_, _, _ = s2.Wait(context.Background())

	require.NotEqual(t, r1.OutDir, r2.OutDir)
	require.Contains(t, filepath.Base(r1.OutDir), TempDirPrefix)

	// Наблюдение создаётся заново на каждый прогон.
	require.Len(t, obs.created, 2)
	require.NotEqual(t, obs.created[0].ID, obs.created[1].ID)
}

func TestUploadStats_WaitHonorsContext(t *testing.T) {
	stats := &UploadStats{stepsTotal: 2}
	stats.wg.Add(1) // загрузка, которая никогда не завершится
	defer stats.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := stats.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
