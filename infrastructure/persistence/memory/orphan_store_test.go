package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artion-backend/domain/core/entities"
	"artion-backend/infrastructure/persistence/memory"
	pkgerrors "artion-backend/pkg/errors"
)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func TestOrphanStore_Lifecycle(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewOrphanStore(&stepClock{now: time.Unix(1_700_000_000, 0)})

	// Act
	require.NoError(t, store.Record(ctx, entities.OrphanedBundle{BundleID: "b-1", Reason: "first"}))
	require.NoError(t, store.Record(ctx, entities.OrphanedBundle{BundleID: "b-2"}))
	require.NoError(t, store.Record(ctx, entities.OrphanedBundle{BundleID: "b-1", Reason: "second"}))

	open, err := store.ListOpen(ctx)

	// Assert
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "b-1", open[0].BundleID)
	assert.Equal(t, "first", open[0].Reason, "first record wins")
	assert.Equal(t, entities.OrphanStatusOpen, open[0].Status)

	require.NoError(t, store.Resolve(ctx, "b-1"))
	open, err = store.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "b-2", open[0].BundleID)
}

func TestOrphanStore_ResolveUnknown(t *testing.T) {
	store := memory.NewOrphanStore(&stepClock{})

	err := store.Resolve(context.Background(), "missing")

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestOrphanStore_RecordRequiresID(t *testing.T) {
	store := memory.NewOrphanStore(&stepClock{})

	err := store.Record(context.Background(), entities.OrphanedBundle{})

	assert.True(t, pkgerrors.IsValidation(err))
}
