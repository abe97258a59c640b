package sql

import (
	"time"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
)

// BatchStateEntity is the persisted form of model.BatchState, one row per model.
type BatchStateEntity struct {
	Model                   string       `gorm:"column:model;primaryKey"`
	TotalRecords            int          `gorm:"column:total_records"`
	ChunkSize               int          `gorm:"column:chunk_size"`
	LastCompletedBatchIndex int          `gorm:"column:last_completed_batch_index"`
	CreatedIDs              model.IDList `gorm:"column:created_ids;type:text"`
	SourceFileIdentity      string       `gorm:"column:source_file_identity"`
	StartedAt               time.Time    `gorm:"column:started_at"`
	UpdatedAt               time.Time    `gorm:"column:updated_at;autoUpdateTime:false"`
}

// TableName implements gorm's Tabler.
func (BatchStateEntity) TableName() string {
	return "migration_batch_state"
}
