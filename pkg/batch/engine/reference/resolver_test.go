package reference_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/engine/reference"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
	"github.com/Dryik/migration-tool/pkg/batch/test"
)

func newGateway() (*test.FakeGateway, []int64) {
	gw := test.NewFakeGateway()
	gw.AddModel(test.CountryModel())
	ids := gw.Seed("res.country",
		model.Record{"name": "Belgium", "code": "BE"},
		model.Record{"name": "France", "code": "FR"},
	)
	return gw, ids
}

func TestResolve_ExactThenCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	gw, ids := newGateway()
	r := reference.NewResolver(gw, nil)

	id, ok, err := r.Resolve(ctx, "res.country", "name", "Belgium")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ids[0], id)
	assert.Equal(t, 1, gw.CallCount(test.MethodSearch))

	id, ok, err = r.Resolve(ctx, "res.country", "name", " france ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ids[1], id)
	assert.Equal(t, 3, gw.CallCount(test.MethodSearch))

	id, ok, err = r.Resolve(ctx, "res.country", "code", "fr")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ids[1], id)
}

func TestResolve_Cached(t *testing.T) {
	ctx := context.Background()
	gw, ids := newGateway()
	cache := reference.NewCache()
	r := reference.NewResolver(gw, cache)

	for i := 0; i < 3; i++ {
		id, ok, err := r.Resolve(ctx, "res.country", "", "Belgium")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, gw.CallCount(test.MethodSearch))
	assert.Equal(t, 1, cache.Len())

	// the key includes the search field
	_, ok := cache.Get("res.country", "code", "Belgium")
	assert.False(t, ok)

	cache.Clear("res.partner")
	assert.Equal(t, 1, cache.Len())
	cache.Clear("res.country")
	assert.Zero(t, cache.Len())
}

func TestResolve_PassThroughAndEmpty(t *testing.T) {
	ctx := context.Background()
	gw, _ := newGateway()
	r := reference.NewResolver(gw, nil)

	id, ok, err := r.Resolve(ctx, "res.country", "name", 42)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	id, ok, err = r.Resolve(ctx, "res.country", "name", []interface{}{float64(7), "Belgium"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)

	for _, v := range []interface{}{nil, false, "", "   "} {
		_, ok, err := r.Resolve(ctx, "res.country", "name", v)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Zero(t, gw.CallCount(test.MethodSearch))
}

func TestResolve_NotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	gw, _ := newGateway()
	r := reference.NewResolver(gw, nil)

	_, ok, err := r.Resolve(ctx, "res.country", "name", "Atlantis")
	require.NoError(t, err)
	assert.False(t, ok)

	ids := gw.Seed("res.country", model.Record{"name": "Atlantis"})
	id, ok, err := r.Resolve(ctx, "res.country", "name", "Atlantis")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ids[0], id)
}

func TestResolve_GatewayError(t *testing.T) {
	gw, _ := newGateway()
	gw.FailNext(test.MethodSearch, exception.NewConnectivityError("gateway", "timeout", errors.New("i/o timeout")))
	r := reference.NewResolver(gw, nil)

	_, _, err := r.Resolve(context.Background(), "res.country", "name", "Belgium")
	require.Error(t, err)
	assert.True(t, exception.IsConnectivity(err))
}

func TestSearchFieldFor(t *testing.T) {
	assert.Equal(t, "login", reference.SearchFieldFor("res.users"))
	assert.Equal(t, "name", reference.SearchFieldFor("res.country"))
}
