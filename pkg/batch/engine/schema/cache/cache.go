// Package cache keeps discovered model descriptors per remote store, in
// memory and in an object storage connection, so later runs can skip schema
// discovery while the store's version and installed extensions are unchanged.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	storageAdapter "github.com/Dryik/migration-tool/pkg/batch/adapter/storage"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/core/metrics"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/keylock"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/serialization"
)

const (
	module = "schema_cache"

	objectSuffix = "_schema.json"
)

// Options configures a Cache.
type Options struct {
	// TTL bounds the age of an entry. Zero disables expiry.
	TTL time.Duration
	// Dir is the object name prefix inside the storage connection.
	Dir string
	// Bucket is passed through to the storage connection ("" = its default).
	Bucket string
}

// Cache is the two-tier schema descriptor cache.
type Cache struct {
	conn    storageAdapter.StorageConnection
	opts    Options
	metrics metrics.MetricRecorder
	locks   *keylock.KeyedMutex
	now     func() time.Time

	mu     sync.RWMutex
	memory map[string]*model.SchemaCacheEntry
}

// New creates a Cache. conn may be nil, in which case only the memory tier is used.
func New(conn storageAdapter.StorageConnection, recorder metrics.MetricRecorder, opts Options) *Cache {
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	return &Cache{
		conn:    conn,
		opts:    opts,
		metrics: recorder,
		locks:   keylock.New(),
		now:     time.Now,
		memory:  make(map[string]*model.SchemaCacheEntry),
	}
}

// SetClock replaces the time source. Intended for tests.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// ExtensionFingerprint returns the first 16 hex characters of the SHA-256 of
// the canonical JSON of the sorted (name, version) pairs.
func ExtensionFingerprint(exts []model.Extension) string {
	pairs := make([][2]string, 0, len(exts))
	for _, e := range exts {
		pairs = append(pairs, [2]string{e.Name, e.Version})
	}
	// string pairs always encode
	data, _ := serialization.CanonicalPairs(pairs)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// ObjectName returns the object holding storeID's entry.
func ObjectName(dir, storeID string) string {
	name := sanitize(storeID) + objectSuffix
	if dir == "" {
		return name
	}
	return path.Join(dir, name)
}

func sanitize(storeID string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, storeID)
}

// IsValid reports whether a usable entry exists for the live version and extensions.
func (c *Cache) IsValid(ctx context.Context, storeID, schemaVersion string, exts []model.Extension) bool {
	_, ok := c.Load(ctx, storeID, schemaVersion, exts)
	return ok
}

// Load returns the cached descriptors for storeID when an entry exists, has
// not expired, and was built for schemaVersion and the same extension set.
// Persisted-tier faults are logged and reported as a miss.
func (c *Cache) Load(ctx context.Context, storeID, schemaVersion string, exts []model.Extension) (map[string]*model.ModelDescriptor, bool) {
	unlock := c.locks.Lock(storeID)
	defer unlock()

	fingerprint := ExtensionFingerprint(exts)
	now := c.now()

	c.mu.RLock()
	entry, ok := c.memory[storeID]
	c.mu.RUnlock()

	if ok {
		if c.usable(entry, schemaVersion, fingerprint, now) {
			c.metrics.RecordCacheLookup(ctx, storeID, true)
			return copyModels(entry.Models), true
		}
		c.mu.Lock()
		delete(c.memory, storeID)
		c.mu.Unlock()
	}

	entry, err := c.readPersisted(ctx, storeID)
	if err != nil {
		logger.Warnf("Schema cache for '%s' could not be read, treating as miss: %v", storeID, err)
	}
	if entry == nil || !c.usable(entry, schemaVersion, fingerprint, now) {
		c.metrics.RecordCacheLookup(ctx, storeID, false)
		return nil, false
	}

	c.mu.Lock()
	c.memory[storeID] = entry
	c.mu.Unlock()
	c.metrics.RecordCacheLookup(ctx, storeID, true)
	logger.Debugf("Schema cache for '%s' loaded from storage (%d models).", storeID, len(entry.Models))
	return copyModels(entry.Models), true
}

func (c *Cache) usable(entry *model.SchemaCacheEntry, schemaVersion, fingerprint string, now time.Time) bool {
	if entry.Expired(now) {
		logger.Debugf("Schema cache for '%s' expired at %s.", entry.DatabaseID, entry.ExpiresAt.Format(time.RFC3339))
		return false
	}
	if !entry.Matches(schemaVersion, fingerprint) {
		logger.Debugf("Schema cache for '%s' is stale (version %s/%s, extensions %s/%s).",
			entry.DatabaseID, entry.SchemaVersion, schemaVersion, entry.ExtensionFingerprint, fingerprint)
		return false
	}
	return true
}

// Save stores a snapshot of models in both tiers. The memory tier is always
// updated; a persisted-tier failure is returned as a cache error.
func (c *Cache) Save(ctx context.Context, storeID, schemaVersion string, versionInfo *model.VersionInfo, exts []model.Extension, models map[string]*model.ModelDescriptor) error {
	unlock := c.locks.Lock(storeID)
	defer unlock()

	now := c.now().UTC()
	entry := &model.SchemaCacheEntry{
		DatabaseID:           storeID,
		SchemaVersion:        schemaVersion,
		VersionInfo:          versionInfo,
		ExtensionFingerprint: ExtensionFingerprint(exts),
		CreatedAt:            now,
		Models:               copyModels(models),
	}
	if c.opts.TTL > 0 {
		expires := now.Add(c.opts.TTL)
		entry.ExpiresAt = &expires
	}

	c.mu.Lock()
	c.memory[storeID] = entry
	c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	data, err := serialization.MarshalDocument("schema cache entry", entry)
	if err != nil {
		return exception.NewCacheError(module, fmt.Sprintf("failed to encode schema cache for '%s'", storeID), err)
	}
	if err := storageAdapter.WriteObject(ctx, c.conn, c.opts.Bucket, ObjectName(c.opts.Dir, storeID), data, "application/json"); err != nil {
		return exception.NewCacheError(module, fmt.Sprintf("failed to persist schema cache for '%s'", storeID), err)
	}
	logger.Infof("Schema cache for '%s' saved (%d models, version %s).", storeID, len(models), schemaVersion)
	return nil
}

// Invalidate drops storeID's entry from both tiers. An empty storeID drops
// every entry.
func (c *Cache) Invalidate(ctx context.Context, storeID string) error {
	if storeID != "" {
		unlock := c.locks.Lock(storeID)
		defer unlock()

		c.mu.Lock()
		delete(c.memory, storeID)
		c.mu.Unlock()
		if c.conn == nil {
			return nil
		}
		if err := c.conn.DeleteObject(ctx, c.opts.Bucket, ObjectName(c.opts.Dir, storeID)); err != nil {
			return exception.NewCacheError(module, fmt.Sprintf("failed to delete schema cache for '%s'", storeID), err)
		}
		return nil
	}

	c.mu.Lock()
	c.memory = make(map[string]*model.SchemaCacheEntry)
	c.mu.Unlock()
	if c.conn == nil {
		return nil
	}

	var names []string
	prefix := ""
	if c.opts.Dir != "" {
		prefix = strings.TrimSuffix(c.opts.Dir, "/") + "/"
	}
	if err := c.conn.ListObjects(ctx, c.opts.Bucket, prefix, func(name string) error {
		if strings.HasSuffix(name, objectSuffix) {
			names = append(names, name)
		}
		return nil
	}); err != nil {
		return exception.NewCacheError(module, "failed to list schema cache entries", err)
	}

	var result *multierror.Error
	for _, name := range names {
		if err := c.conn.DeleteObject(ctx, c.opts.Bucket, name); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return exception.NewCacheError(module, "failed to delete schema cache entries", err)
	}
	logger.Infof("Schema cache cleared (%d persisted entries).", len(names))
	return nil
}

func (c *Cache) readPersisted(ctx context.Context, storeID string) (*model.SchemaCacheEntry, error) {
	if c.conn == nil {
		return nil, nil
	}
	data, found, err := storageAdapter.ReadObject(ctx, c.conn, c.opts.Bucket, ObjectName(c.opts.Dir, storeID))
	if err != nil || !found {
		return nil, err
	}
	var entry model.SchemaCacheEntry
	ok, err := serialization.UnmarshalDocument("schema cache entry", data, &entry)
	if err != nil || !ok {
		return nil, err
	}
	if entry.Models == nil {
		entry.Models = map[string]*model.ModelDescriptor{}
	}
	return &entry, nil
}

func copyModels(in map[string]*model.ModelDescriptor) map[string]*model.ModelDescriptor {
	out := make(map[string]*model.ModelDescriptor, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
