// Package reference resolves human-readable many-to-one values ("Belgium")
// to remote record ids.
package reference

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/core/gateway"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

// DefaultSearchField is the field searched when no other is configured.
const DefaultSearchField = "name"

// defaultSearchFields lists target models not identified by their name.
var defaultSearchFields = map[string]string{
	"res.users":    "login",
	"res.currency": "name",
	"res.lang":     "code",
}

// SearchFieldFor returns the default search field of a target model.
func SearchFieldFor(targetModel string) string {
	if f, ok := defaultSearchFields[targetModel]; ok {
		return f
	}
	return DefaultSearchField
}

// Resolver looks references up on the remote store through a shared Cache.
type Resolver struct {
	gw    gateway.Gateway
	cache *Cache
}

// NewResolver creates a Resolver. A nil cache gets a private one.
func NewResolver(gw gateway.Gateway, cache *Cache) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	return &Resolver{gw: gw, cache: cache}
}

// Cache returns the resolver's cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve returns the id of the targetModel record whose searchField equals
// value, trying an exact match first and a case-insensitive one second.
// Integral values and [id, name] pairs are already ids and pass through.
// Empty values resolve to nothing without a lookup.
func (r *Resolver) Resolve(ctx context.Context, targetModel, searchField string, value interface{}) (int64, bool, error) {
	switch v := value.(type) {
	case nil, bool:
		return 0, false, nil
	case []interface{}:
		if len(v) == 0 {
			return 0, false, nil
		}
		return r.Resolve(ctx, targetModel, searchField, v[0])
	case string:
		return r.resolveString(ctx, targetModel, searchField, v)
	}
	if id, ok := model.AsInt64(value); ok {
		return id, id > 0, nil
	}
	return r.resolveString(ctx, targetModel, searchField, fmt.Sprint(value))
}

func (r *Resolver) resolveString(ctx context.Context, targetModel, searchField, value string) (int64, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false, nil
	}
	if searchField == "" {
		searchField = SearchFieldFor(targetModel)
	}
	if id, ok := r.cache.Get(targetModel, searchField, value); ok {
		return id, true, nil
	}

	for _, op := range []string{"=", "=ilike"} {
		ids, err := r.gw.Search(ctx, targetModel, gateway.Domain{}.And(searchField, op, value), 0, 1)
		if err != nil {
			return 0, false, fmt.Errorf("failed to resolve %s.%s = '%s': %w", targetModel, searchField, value, err)
		}
		if len(ids) > 0 {
			r.cache.Put(targetModel, searchField, value, ids[0])
			return ids[0], true, nil
		}
	}

	logger.Debugf("Reference %s.%s = '%s' not found.", targetModel, searchField, value)
	return 0, false, nil
}
