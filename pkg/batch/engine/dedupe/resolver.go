// Package dedupe decides which input records already exist on the remote
// store or repeat an earlier input record, and routes them according to a
// DedupeStrategy.
package dedupe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/core/gateway"
	"github.com/Dryik/migration-tool/pkg/batch/core/metrics"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/keylock"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

// DefaultPageSize is the page size of the remote index scan.
const DefaultPageSize = 5000

// Options controls one FindDuplicates call.
type Options struct {
	// KeyFields overrides the model's identity keys.
	KeyFields     []string
	Strategy      model.DedupeStrategy
	CaseSensitive bool
	CheckRemote   bool
	CheckInBatch  bool
	// ExcludeRemoteIDs are remote records ignored by the remote check. A
	// resumed import passes the ids its interrupted run created, so the
	// remote check sees the store as it was before that run.
	ExcludeRemoteIDs []int64
}

type indexKey struct {
	model         string
	keys          string
	caseSensitive bool
}

func (k indexKey) String() string {
	return fmt.Sprintf("%s|%s|%t", k.model, k.keys, k.caseSensitive)
}

// Resolver finds duplicates. Remote indexes are cached for the lifetime of
// the resolver until Invalidate is called.
type Resolver struct {
	gw        gateway.Gateway
	pageSize  int
	keyFields map[string][]string
	metrics   metrics.MetricRecorder
	loads     *keylock.KeyedMutex

	mu      sync.RWMutex
	indexes map[indexKey]map[string][]int64
}

// NewResolver creates a Resolver. keyOverrides replaces DefaultKeyFields per model.
func NewResolver(gw gateway.Gateway, pageSize int, keyOverrides map[string][]string, recorder metrics.MetricRecorder) *Resolver {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	keys := make(map[string][]string, len(DefaultKeyFields)+len(keyOverrides))
	for m, k := range DefaultKeyFields {
		keys[m] = k
	}
	for m, k := range keyOverrides {
		if len(k) > 0 {
			keys[m] = k
		}
	}
	return &Resolver{
		gw:        gw,
		pageSize:  pageSize,
		keyFields: keys,
		metrics:   recorder,
		loads:     keylock.New(),
		indexes:   make(map[indexKey]map[string][]int64),
	}
}

// KeysFor returns the identity keys used for modelName when no explicit
// keys are given.
func (r *Resolver) KeysFor(modelName string) []string {
	if k, ok := r.keyFields[modelName]; ok {
		return append([]string(nil), k...)
	}
	return []string{"name"}
}

// FindDuplicates classifies records in input order. Inputs are never
// modified; update records are marked copies.
func (r *Resolver) FindDuplicates(ctx context.Context, records []model.Record, modelName string, opts Options) (*model.DedupeResult, error) {
	keys := opts.KeyFields
	if len(keys) == 0 {
		keys = r.KeysFor(modelName)
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = model.DedupeSkip
	}

	var remote map[string][]int64
	if opts.CheckRemote && r.gw != nil {
		idx, err := r.remoteIndex(ctx, modelName, keys, opts.CaseSensitive)
		if err != nil {
			return nil, err
		}
		remote = idx
	}

	result := &model.DedupeResult{
		UniqueRecords:    []model.Record{},
		DuplicateRecords: []model.Record{},
		UpdateRecords:    []model.Record{},
		Matches:          []model.DuplicateMatch{},
	}
	seen := make(map[string]int)
	excluded := make(map[int64]struct{}, len(opts.ExcludeRemoteIDs))
	for _, id := range opts.ExcludeRemoteIDs {
		excluded[id] = struct{}{}
	}

	for i, rec := range records {
		row := rec.SourceRow(i)
		hash := KeyHash(rec, keys, opts.CaseSensitive)

		var match *model.DuplicateMatch
		if hash != "" {
			if id, ok := firstRemote(remote[hash], excluded); ok {
				remoteID := id
				match = &model.DuplicateMatch{SourceRowIndex: row, MatchType: model.MatchRemoteExisting, RemoteID: &remoteID}
			} else if first, ok := seen[hash]; ok && opts.CheckInBatch {
				firstRow := first
				match = &model.DuplicateMatch{SourceRowIndex: row, MatchType: model.MatchInBatch, InBatchRowIndex: &firstRow}
			}
		}

		if match == nil {
			result.UniqueRecords = append(result.UniqueRecords, rec)
			if hash != "" {
				seen[hash] = row
			}
			continue
		}

		match.MatchedKeyValues = keyValues(rec, keys)
		match.Confidence = 1.0
		result.Matches = append(result.Matches, *match)

		switch strategy {
		case model.DedupeCreate:
			result.UniqueRecords = append(result.UniqueRecords, rec)
		case model.DedupeUpdate:
			if match.MatchType == model.MatchRemoteExisting {
				result.UpdateRecords = append(result.UpdateRecords, rec.AsUpdate(*match.RemoteID))
			} else {
				result.DuplicateRecords = append(result.DuplicateRecords, rec)
			}
		default:
			result.DuplicateRecords = append(result.DuplicateRecords, rec)
		}
	}

	if n := result.RemoteMatches(); n > 0 {
		r.metrics.RecordDuplicates(ctx, modelName, model.MatchRemoteExisting, n)
	}
	if n := result.InBatchMatches(); n > 0 {
		r.metrics.RecordDuplicates(ctx, modelName, model.MatchInBatch, n)
	}
	logger.Infof("Dedupe '%s' on %v: %d unique, %d duplicates, %d updates (%d remote, %d in batch).",
		modelName, keys, len(result.UniqueRecords), len(result.DuplicateRecords), len(result.UpdateRecords),
		result.RemoteMatches(), result.InBatchMatches())
	return result, nil
}

// Invalidate drops the cached remote indexes of modelName, or every index
// when modelName is empty.
func (r *Resolver) Invalidate(modelName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if modelName == "" {
		r.indexes = make(map[indexKey]map[string][]int64)
		return
	}
	for k := range r.indexes {
		if k.model == modelName {
			delete(r.indexes, k)
		}
	}
}

// firstRemote returns the lowest remote id sharing a key that is not excluded.
func firstRemote(ids []int64, excluded map[int64]struct{}) (int64, bool) {
	for _, id := range ids {
		if _, skip := excluded[id]; !skip {
			return id, true
		}
	}
	return 0, false
}

// remoteIndex returns hash -> remote ids, in scan order, for every remote
// record of modelName, scanning the store in pages on first use.
func (r *Resolver) remoteIndex(ctx context.Context, modelName string, keys []string, caseSensitive bool) (map[string][]int64, error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	key := indexKey{model: modelName, keys: strings.Join(sorted, ","), caseSensitive: caseSensitive}

	unlock := r.loads.Lock(key.String())
	defer unlock()

	r.mu.RLock()
	idx, ok := r.indexes[key]
	r.mu.RUnlock()
	if ok {
		return idx, nil
	}

	fields := []string{"id"}
	for _, k := range sorted {
		if k != "id" {
			fields = append(fields, k)
		}
	}

	idx = make(map[string][]int64)
	for offset := 0; ; offset += r.pageSize {
		page, err := r.gw.SearchRead(ctx, modelName, nil, fields, offset, r.pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing '%s' records for dedupe: %w", modelName, err)
		}
		for _, rec := range page {
			hash := KeyHash(rec, keys, caseSensitive)
			if hash == "" {
				continue
			}
			id, ok := model.AsInt64(rec["id"])
			if !ok {
				continue
			}
			idx[hash] = append(idx[hash], id)
		}
		if len(page) < r.pageSize {
			break
		}
	}

	r.mu.Lock()
	r.indexes[key] = idx
	r.mu.Unlock()
	logger.Debugf("Loaded dedupe index for '%s' on %v: %d keys.", modelName, sorted, len(idx))
	return idx, nil
}
