package db

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jonathan/resume-optimizer/internal/state"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_StateBackend(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	owner := uuid.NewString()
	b := db.StateBackend()
	defer b.Delete(ctx, owner)

	raw, err := b.Load(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, raw)

	boom := errors.New("boom")
	assert.ErrorIs(t, b.Update(ctx, owner, func([]byte) ([]byte, error) { return nil, boom }), boom)
	raw, err = b.Load(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, raw)

	require.NoError(t, b.Update(ctx, owner, func(cur []byte) ([]byte, error) {
		assert.Nil(t, cur)
		return []byte(`{"version":2}`), nil
	}))
	raw, err = b.Load(ctx, owner)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":2}`, string(raw))
}

func TestIntegration_StateStoreConcurrentWrites(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	owner := uuid.NewString()
	store := state.NewStore(db.StateBackend(), state.Options{})
	defer store.Reset(ctx, owner)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.RecordJob(ctx, owner, types.JobRecord{ID: uuid.NewString()}))
		}()
	}
	wg.Wait()

	doc, err := store.Get(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, doc.Jobs, 8)
}
