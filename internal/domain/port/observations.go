package port

import (
	"context"

	"inspection-rig/internal/domain/entity"
)

// Observations интерфейс трекингового сервиса инспекций.
type Observations interface {
	// CreateObservation создаёт наблюдение для тест-кейса.
	// cutNumber учитывается только при scope == entity.ScopeCut.
	CreateObservation(ctx context.Context, testCaseID int, scope entity.ObservationScope, cutNumber int) (*entity.Observation, error)

	// UploadAttachment загружает файл снимка в наблюдение.
	// tag — номер зуба, прикладывается к файлу отдельным полем.
	UploadAttachment(ctx context.Context, observationID int, path string, tag int) error
}
