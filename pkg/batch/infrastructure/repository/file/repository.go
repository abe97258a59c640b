// Package file stores batch state as one JSON object per model in a storage
// connection.
package file

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	storageAdapter "github.com/Dryik/migration-tool/pkg/batch/adapter/storage"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/repository"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/serialization"
)

const (
	module      = "file_state_store"
	stateSuffix = "_state.json"
)

// FileStateStore implements repository.StateStore. Objects are named
// "<dir>/<model with dots replaced>_state.json".
type FileStateStore struct {
	conn   storageAdapter.StorageConnection
	bucket string
	dir    string
}

var _ repository.StateStore = (*FileStateStore)(nil)

// NewFileStateStore creates a store writing under dir of conn.
func NewFileStateStore(conn storageAdapter.StorageConnection, bucket, dir string) *FileStateStore {
	return &FileStateStore{conn: conn, bucket: bucket, dir: strings.Trim(dir, "/")}
}

func (s *FileStateStore) objectName(modelName string) string {
	if s.dir == "" {
		return model.StateFileName(modelName)
	}
	return path.Join(s.dir, model.StateFileName(modelName))
}

func (s *FileStateStore) Save(ctx context.Context, state *model.BatchState) error {
	data, err := serialization.MarshalDocument("batch state", state)
	if err != nil {
		return err
	}
	name := s.objectName(state.Model)
	if err := storageAdapter.WriteObject(ctx, s.conn, s.bucket, name, data, "application/json"); err != nil {
		return exception.NewStateError(module, fmt.Sprintf("failed to write '%s'", name), err)
	}
	logger.Debugf("Saved batch state of '%s' to '%s' (last batch %d).", state.Model, name, state.LastCompletedBatchIndex)
	return nil
}

func (s *FileStateStore) Load(ctx context.Context, modelName string) (*model.BatchState, bool, error) {
	return s.load(ctx, s.objectName(modelName))
}

func (s *FileStateStore) load(ctx context.Context, name string) (*model.BatchState, bool, error) {
	data, found, err := storageAdapter.ReadObject(ctx, s.conn, s.bucket, name)
	if err != nil {
		return nil, false, exception.NewStateError(module, fmt.Sprintf("failed to read '%s'", name), err)
	}
	if !found {
		return nil, false, nil
	}
	var state model.BatchState
	ok, err := serialization.UnmarshalDocument("batch state", data, &state)
	if err != nil {
		return nil, false, exception.NewStateError(module, fmt.Sprintf("corrupt batch state '%s'", name), err)
	}
	if !ok {
		return nil, false, nil
	}
	return &state, true, nil
}

func (s *FileStateStore) Delete(ctx context.Context, modelName string) error {
	if modelName != "" {
		return s.delete(ctx, s.objectName(modelName))
	}
	names, err := s.objectNames(ctx)
	if err != nil {
		return err
	}
	var errs *multierror.Error
	for _, name := range names {
		if err := s.delete(ctx, name); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func (s *FileStateStore) delete(ctx context.Context, name string) error {
	if err := s.conn.DeleteObject(ctx, s.bucket, name); err != nil {
		return exception.NewStateError(module, fmt.Sprintf("failed to delete '%s'", name), err)
	}
	return nil
}

// List reads every state object, since object names do not preserve the
// dots of model names.
func (s *FileStateStore) List(ctx context.Context) ([]string, error) {
	names, err := s.objectNames(ctx)
	if err != nil {
		return nil, err
	}
	models := make([]string, 0, len(names))
	for _, name := range names {
		state, found, err := s.load(ctx, name)
		if err != nil {
			logger.Warnf("Ignoring unreadable batch state '%s': %v", name, err)
			continue
		}
		if found && state.Model != "" {
			models = append(models, state.Model)
		}
	}
	sort.Strings(models)
	return models, nil
}

func (s *FileStateStore) objectNames(ctx context.Context) ([]string, error) {
	prefix := ""
	if s.dir != "" {
		prefix = s.dir + "/"
	}
	var names []string
	err := s.conn.ListObjects(ctx, s.bucket, prefix, func(name string) error {
		rest := strings.TrimPrefix(name, prefix)
		if strings.HasSuffix(rest, stateSuffix) && !strings.Contains(rest, "/") {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, exception.NewStateError(module, "failed to list batch states", err)
	}
	return names, nil
}
