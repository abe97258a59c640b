package inmemory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/infrastructure/repository/inmemory"
)

func TestInMemoryStateStore(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewInMemoryStateStore()

	_, found, err := store.Load(ctx, "res.partner")
	require.NoError(t, err)
	assert.False(t, found)

	state := &model.BatchState{Model: "res.partner", ChunkSize: 3, LastCompletedBatchIndex: 1, CreatedIDs: model.IDList{1, 2}}
	require.NoError(t, store.Save(ctx, state))
	require.NoError(t, store.Save(ctx, &model.BatchState{Model: "res.country"}))

	state.CreatedIDs[0] = 99
	loaded, found, err := store.Load(ctx, "res.partner")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.IDList{1, 2}, loaded.CreatedIDs)
	assert.Equal(t, 1, loaded.LastCompletedBatchIndex)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"res.country", "res.partner"}, names)

	require.NoError(t, store.Delete(ctx, "res.partner"))
	require.NoError(t, store.Delete(ctx, "res.partner"))
	names, _ = store.List(ctx)
	assert.Equal(t, []string{"res.country"}, names)

	require.NoError(t, store.Delete(ctx, ""))
	names, _ = store.List(ctx)
	assert.Empty(t, names)
}
