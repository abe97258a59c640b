package dedupe_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/engine/dedupe"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
	"github.com/Dryik/migration-tool/pkg/batch/test"
)

func newStore(t *testing.T) *test.FakeGateway {
	t.Helper()
	gw := test.NewFakeGateway()
	gw.AddModel(test.PartnerModel())
	return gw
}

func allChecks(strategy model.DedupeStrategy) dedupe.Options {
	return dedupe.Options{Strategy: strategy, CheckRemote: true, CheckInBatch: true}
}

func TestKeyHash(t *testing.T) {
	keys := []string{"phone", "name"}

	assert.Equal(t, "name:acme|phone:+1", dedupe.KeyHash(model.Record{"name": "  ACME ", "phone": "+1"}, keys, false))
	assert.Equal(t, "name:ACME|phone:+1", dedupe.KeyHash(model.Record{"name": "ACME", "phone": "+1"}, keys, true))
	assert.Equal(t, "name:acme", dedupe.KeyHash(model.Record{"name": "Acme", "phone": false}, keys, false))
	assert.Equal(t, "", dedupe.KeyHash(model.Record{"name": "  ", "phone": nil}, keys, false))

	// many-to-one pairs hash by id so a remote [id, name] matches a bare id.
	pair := dedupe.KeyHash(model.Record{"country_id": []interface{}{int64(7), "Belgium"}}, []string{"country_id"}, false)
	bare := dedupe.KeyHash(model.Record{"country_id": 7}, []string{"country_id"}, false)
	assert.Equal(t, "country_id:7", pair)
	assert.Equal(t, pair, bare)
}

func TestKeysFor(t *testing.T) {
	r := dedupe.NewResolver(nil, 0, map[string][]string{"res.partner": {"email"}}, nil)

	assert.Equal(t, []string{"email"}, r.KeysFor("res.partner"))
	assert.Equal(t, []string{"default_code", "barcode"}, r.KeysFor("product.product"))
	assert.Equal(t, []string{"name"}, r.KeysFor("x.unknown"))
}

func TestFindDuplicates_InBatch(t *testing.T) {
	ctx := context.Background()
	r := dedupe.NewResolver(newStore(t), 0, nil, nil)

	records := []model.Record{
		{"name": "Acme", "phone": "1"},
		{"name": "Beta", "phone": "2"},
		{"name": "acme ", "phone": "1"},
	}
	res, err := r.FindDuplicates(ctx, records, "res.partner", allChecks(model.DedupeSkip))
	require.NoError(t, err)

	assert.Len(t, res.UniqueRecords, 2)
	require.Len(t, res.DuplicateRecords, 1)
	assert.Equal(t, "acme ", res.DuplicateRecords[0]["name"])
	require.Len(t, res.Matches, 1)
	m := res.Matches[0]
	assert.Equal(t, model.MatchInBatch, m.MatchType)
	assert.Equal(t, 2, m.SourceRowIndex)
	require.NotNil(t, m.InBatchRowIndex)
	assert.Equal(t, 0, *m.InBatchRowIndex)
	assert.Nil(t, m.RemoteID)
	assert.Equal(t, 1.0, m.Confidence)
	assert.Equal(t, 1, res.InBatchMatches())
}

func TestFindDuplicates_CaseSensitive(t *testing.T) {
	ctx := context.Background()
	r := dedupe.NewResolver(newStore(t), 0, nil, nil)

	records := []model.Record{{"name": "Acme"}, {"name": "ACME"}}
	opts := allChecks(model.DedupeSkip)
	opts.KeyFields = []string{"name"}
	opts.CaseSensitive = true

	res, err := r.FindDuplicates(ctx, records, "res.partner", opts)
	require.NoError(t, err)
	assert.Len(t, res.UniqueRecords, 2)
	assert.Empty(t, res.Matches)
}

func TestFindDuplicates_RemoteBeforeInBatch(t *testing.T) {
	ctx := context.Background()
	gw := newStore(t)
	ids := gw.Seed("res.partner", model.Record{"name": "Acme", "phone": "1"})
	r := dedupe.NewResolver(gw, 0, nil, nil)

	records := []model.Record{
		{"name": "Acme", "phone": "1", model.MarkerSourceRow: 10},
		{"name": "ACME", "phone": "1", model.MarkerSourceRow: 11},
	}
	res, err := r.FindDuplicates(ctx, records, "res.partner", allChecks(model.DedupeSkip))
	require.NoError(t, err)

	require.Len(t, res.Matches, 2)
	for i, m := range res.Matches {
		assert.Equal(t, model.MatchRemoteExisting, m.MatchType)
		assert.Equal(t, 10+i, m.SourceRowIndex)
		require.NotNil(t, m.RemoteID)
		assert.Equal(t, ids[0], *m.RemoteID)
	}
	assert.Empty(t, res.UniqueRecords)
	assert.Len(t, res.DuplicateRecords, 2)
	assert.Equal(t, 2, res.RemoteMatches())
}

func TestFindDuplicates_Strategies(t *testing.T) {
	ctx := context.Background()
	gw := newStore(t)
	ids := gw.Seed("res.partner", model.Record{"name": "Acme", "phone": "1"})

	records := []model.Record{
		{"name": "Acme", "phone": "1"},
		{"name": "Beta", "phone": "2"},
		{"name": "Beta", "phone": "2"},
	}

	t.Run("skip", func(t *testing.T) {
		res, err := dedupe.NewResolver(gw, 0, nil, nil).FindDuplicates(ctx, records, "res.partner", allChecks(model.DedupeSkip))
		require.NoError(t, err)
		assert.Len(t, res.UniqueRecords, 1)
		assert.Len(t, res.DuplicateRecords, 2)
		assert.Empty(t, res.UpdateRecords)
	})

	t.Run("update", func(t *testing.T) {
		res, err := dedupe.NewResolver(gw, 0, nil, nil).FindDuplicates(ctx, records, "res.partner", allChecks(model.DedupeUpdate))
		require.NoError(t, err)
		assert.Len(t, res.UniqueRecords, 1)
		require.Len(t, res.UpdateRecords, 1)
		target, ok := res.UpdateRecords[0].UpdateTarget()
		require.True(t, ok)
		assert.Equal(t, ids[0], target)
		require.Len(t, res.DuplicateRecords, 1)
		assert.Equal(t, "Beta", res.DuplicateRecords[0]["name"])
		assert.Len(t, res.Writable(), 2)
	})

	t.Run("create", func(t *testing.T) {
		res, err := dedupe.NewResolver(gw, 0, nil, nil).FindDuplicates(ctx, records, "res.partner", allChecks(model.DedupeCreate))
		require.NoError(t, err)
		assert.Len(t, res.UniqueRecords, 3)
		assert.Empty(t, res.DuplicateRecords)
		assert.Len(t, res.Matches, 2)
	})
}

func TestFindDuplicates_EmptyKeyNeverMatches(t *testing.T) {
	ctx := context.Background()
	gw := newStore(t)
	gw.Seed("res.partner", model.Record{"name": false, "phone": false})
	r := dedupe.NewResolver(gw, 0, nil, nil)

	records := []model.Record{{"email": "a@x"}, {"email": "b@x"}, {"name": ""}}
	res, err := r.FindDuplicates(ctx, records, "res.partner", allChecks(model.DedupeSkip))
	require.NoError(t, err)
	assert.Len(t, res.UniqueRecords, 3)
	assert.Empty(t, res.Matches)
}

func TestFindDuplicates_DoesNotMutateInput(t *testing.T) {
	ctx := context.Background()
	gw := newStore(t)
	gw.Seed("res.partner", model.Record{"name": "Acme", "phone": "1"})
	r := dedupe.NewResolver(gw, 0, nil, nil)

	input := model.Record{"name": "Acme", "phone": "1"}
	res, err := r.FindDuplicates(ctx, []model.Record{input}, "res.partner", allChecks(model.DedupeUpdate))
	require.NoError(t, err)

	require.Len(t, res.UpdateRecords, 1)
	assert.Len(t, input, 2)
	_, marked := input.UpdateTarget()
	assert.False(t, marked)
}

func TestFindDuplicates_Idempotent(t *testing.T) {
	ctx := context.Background()
	gw := newStore(t)
	gw.Seed("res.partner", model.Record{"name": "Partner 2", "phone": "+1-555-0002"})
	r := dedupe.NewResolver(gw, 0, nil, nil)

	records := append(test.Partners(4), test.Partners(1)...)
	first, err := r.FindDuplicates(ctx, records, "res.partner", allChecks(model.DedupeSkip))
	require.NoError(t, err)
	second, err := r.FindDuplicates(ctx, records, "res.partner", allChecks(model.DedupeSkip))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first.UniqueRecords, 3)
	assert.Equal(t, 1, first.RemoteMatches())
	assert.Equal(t, 1, first.InBatchMatches())
}

func TestRemoteIndex_PagedAndCached(t *testing.T) {
	ctx := context.Background()
	gw := newStore(t)
	gw.Seed("res.partner", test.Partners(5)...)
	r := dedupe.NewResolver(gw, 2, nil, nil)
	opts := allChecks(model.DedupeSkip)

	res, err := r.FindDuplicates(ctx, test.Partners(5), "res.partner", opts)
	require.NoError(t, err)
	assert.Equal(t, 5, res.RemoteMatches())
	assert.Equal(t, 3, gw.CallCount(test.MethodSearchRead))

	_, err = r.FindDuplicates(ctx, test.Partners(1), "res.partner", opts)
	require.NoError(t, err)
	assert.Equal(t, 3, gw.CallCount(test.MethodSearchRead))

	r.Invalidate("res.partner")
	gw.Seed("res.partner", model.Record{"name": "Fresh", "phone": "9"})
	res, err = r.FindDuplicates(ctx, []model.Record{{"name": "Fresh", "phone": "9"}}, "res.partner", opts)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RemoteMatches())
	assert.Equal(t, 7, gw.CallCount(test.MethodSearchRead))
}

func TestRemoteIndex_ErrorNotCached(t *testing.T) {
	ctx := context.Background()
	gw := newStore(t)
	gw.Seed("res.partner", model.Record{"name": "Acme", "phone": "1"})
	gw.FailNext(test.MethodSearchRead, exception.NewConnectivityError("gateway", "timeout", errors.New("i/o timeout")))
	r := dedupe.NewResolver(gw, 0, nil, nil)

	records := []model.Record{{"name": "Acme", "phone": "1"}}
	_, err := r.FindDuplicates(ctx, records, "res.partner", allChecks(model.DedupeSkip))
	require.Error(t, err)
	assert.True(t, exception.IsConnectivity(err))

	res, err := r.FindDuplicates(ctx, records, "res.partner", allChecks(model.DedupeSkip))
	require.NoError(t, err)
	assert.Equal(t, 1, res.RemoteMatches())
}

func TestFindDuplicates_RemoteCheckDisabled(t *testing.T) {
	ctx := context.Background()
	gw := newStore(t)
	gw.Seed("res.partner", model.Record{"name": "Acme", "phone": "1"})
	r := dedupe.NewResolver(gw, 0, nil, nil)

	res, err := r.FindDuplicates(ctx, []model.Record{{"name": "Acme", "phone": "1"}}, "res.partner",
		dedupe.Options{CheckInBatch: true})
	require.NoError(t, err)
	assert.Len(t, res.UniqueRecords, 1)
	assert.Zero(t, gw.CallCount(test.MethodSearchRead))
}

func TestOptionsFromConfig(t *testing.T) {
	opts := dedupe.OptionsFromConfig(&config.DedupeConfig{Strategy: "Update", CheckRemote: true})
	assert.Equal(t, model.DedupeUpdate, opts.Strategy)
	assert.True(t, opts.CheckRemote)
	assert.False(t, opts.CheckInBatch)
}

func TestFindDuplicates_ExcludeRemoteIDs(t *testing.T) {
	ctx := context.Background()
	gw := newStore(t)
	ids := gw.Seed("res.partner",
		model.Record{"name": "Acme", "phone": "1"},
		model.Record{"name": "Acme", "phone": "1"},
		model.Record{"name": "Globex", "phone": "2"},
	)
	r := dedupe.NewResolver(gw, 0, nil, nil)
	records := []model.Record{{"name": "Acme", "phone": "1"}, {"name": "Globex", "phone": "2"}}

	opts := allChecks(model.DedupeUpdate)
	res, err := r.FindDuplicates(ctx, records, "res.partner", opts)
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, ids[0], *res.Matches[0].RemoteID)

	opts.ExcludeRemoteIDs = []int64{ids[0], ids[2]}
	res, err = r.FindDuplicates(ctx, records, "res.partner", opts)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, ids[1], *res.Matches[0].RemoteID)
	require.Len(t, res.UniqueRecords, 1)
	assert.Equal(t, "Globex", res.UniqueRecords[0]["name"])
	assert.Equal(t, 1, gw.CallCount(test.MethodSearchRead))
}
