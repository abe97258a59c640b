package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dryik/migration-tool/pkg/batch/adapter/storage"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
)

// RecordSource loads the records of a job that does not carry them inline.
type RecordSource interface {
	Load(ctx context.Context, job ModelJob) ([]model.Record, error)
}

// StorageSource reads job sources from a storage connection. A source object
// is a JSON array of objects; numbers are kept as json.Number.
type StorageSource struct {
	resolver   storage.StorageConnectionResolver
	connection string
	bucket     string
}

var _ RecordSource = (*StorageSource)(nil)

// NewStorageSource creates a StorageSource over the named connection.
func NewStorageSource(resolver storage.StorageConnectionResolver, connection, bucket string) *StorageSource {
	return &StorageSource{resolver: resolver, connection: connection, bucket: bucket}
}

func (s *StorageSource) Load(ctx context.Context, job ModelJob) ([]model.Record, error) {
	conn, err := s.resolver.ResolveStorageConnection(ctx, s.connection)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source storage '%s': %w", s.connection, err)
	}
	data, found, err := storage.ReadObject(ctx, conn, s.bucket, job.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to read source '%s': %w", job.Source, err)
	}
	if !found {
		return nil, fmt.Errorf("source '%s' does not exist in storage '%s'", job.Source, s.connection)
	}
	return DecodeRecords(data)
}

// DecodeRecords parses a JSON array of objects.
func DecodeRecords(data []byte) ([]model.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rows []map[string]interface{}
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("source is not a JSON array of objects: %w", err)
	}
	out := make([]model.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Record(r))
	}
	return out, nil
}

// applyMapping renames columns and tags every record with its source row.
// The input records are not modified.
func applyMapping(records []model.Record, mapping map[string]string) []model.Record {
	out := make([]model.Record, 0, len(records))
	for i, rec := range records {
		mapped := make(model.Record, len(rec)+1)
		for k, v := range rec {
			if to, ok := mapping[k]; ok && to != "" {
				k = to
			}
			mapped[k] = v
		}
		if _, ok := mapped[model.MarkerSourceRow]; !ok {
			mapped[model.MarkerSourceRow] = i
		}
		out = append(out, mapped)
	}
	return out
}
