package sql

import (
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
)

func fromDomainBatchState(s *model.BatchState) *BatchStateEntity {
	if s == nil {
		return nil
	}
	ids := s.CreatedIDs
	if ids == nil {
		ids = model.IDList{}
	}
	return &BatchStateEntity{
		Model:                   s.Model,
		TotalRecords:            s.TotalRecords,
		ChunkSize:               s.ChunkSize,
		LastCompletedBatchIndex: s.LastCompletedBatchIndex,
		CreatedIDs:              ids,
		SourceFileIdentity:      s.SourceFileIdentity,
		StartedAt:               s.StartedAt.UTC(),
		UpdatedAt:               s.UpdatedAt.UTC(),
	}
}

func toDomainBatchState(e *BatchStateEntity) *model.BatchState {
	if e == nil {
		return nil
	}
	return &model.BatchState{
		Model:                   e.Model,
		TotalRecords:            e.TotalRecords,
		ChunkSize:               e.ChunkSize,
		LastCompletedBatchIndex: e.LastCompletedBatchIndex,
		CreatedIDs:              e.CreatedIDs,
		SourceFileIdentity:      e.SourceFileIdentity,
		StartedAt:               e.StartedAt,
		UpdatedAt:               e.UpdatedAt,
	}
}
