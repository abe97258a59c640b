// Package sql persists batch state in a relational table through GORM.
package sql

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/repository"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

const module = "sql_state_store"

// SQLStateStore implements repository.StateStore over the
// migration_batch_state table. The table must exist; see Migrate.
type SQLStateStore struct {
	db *gorm.DB
}

var _ repository.StateStore = (*SQLStateStore)(nil)

// NewSQLStateStore wraps an open GORM handle.
func NewSQLStateStore(db *gorm.DB) *SQLStateStore {
	return &SQLStateStore{db: db}
}

// Save upserts the row of state.Model.
func (s *SQLStateStore) Save(ctx context.Context, state *model.BatchState) error {
	entity := fromDomainBatchState(state)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(entity).Error
	if err != nil {
		return exception.NewStateError(module, fmt.Sprintf("failed to save batch state of '%s'", state.Model), err)
	}
	logger.Debugf("Saved batch state of '%s' (last batch %d).", state.Model, state.LastCompletedBatchIndex)
	return nil
}

func (s *SQLStateStore) Load(ctx context.Context, modelName string) (*model.BatchState, bool, error) {
	var entities []BatchStateEntity
	err := s.db.WithContext(ctx).
		Where("model = ?", modelName).
		Limit(1).
		Find(&entities).Error
	if err != nil {
		return nil, false, exception.NewStateError(module, fmt.Sprintf("failed to load batch state of '%s'", modelName), err)
	}
	if len(entities) == 0 {
		return nil, false, nil
	}
	return toDomainBatchState(&entities[0]), true, nil
}

// Delete removes the row of modelName, or every row when modelName is empty.
func (s *SQLStateStore) Delete(ctx context.Context, modelName string) error {
	tx := s.db.WithContext(ctx)
	if modelName == "" {
		tx = tx.Where("1 = 1")
	} else {
		tx = tx.Where("model = ?", modelName)
	}
	if err := tx.Delete(&BatchStateEntity{}).Error; err != nil {
		return exception.NewStateError(module, fmt.Sprintf("failed to delete batch state of '%s'", modelName), err)
	}
	return nil
}

func (s *SQLStateStore) List(ctx context.Context) ([]string, error) {
	models := []string{}
	err := s.db.WithContext(ctx).
		Model(&BatchStateEntity{}).
		Order("model").
		Pluck("model", &models).Error
	if err != nil {
		return nil, exception.NewStateError(module, "failed to list batch states", err)
	}
	return models, nil
}
