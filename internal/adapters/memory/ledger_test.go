package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/clothify-cart/internal/adapters/memory"
	"github.com/ammerola/clothify-cart/internal/core/domain"
)

func TestLedgerStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore()

	empty, err := store.Load(ctx, "42")
	require.NoError(t, err)
	assert.True(t, empty.Empty())

	l := domain.NewLedger()
	l.Set("7-BLACK-M", 2)
	l.SetLineID("7-BLACK-M", "100")
	require.NoError(t, store.Save(ctx, "42", l))

	l.Set("7-BLACK-M", 9)
	got, err := store.Load(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Get("7-BLACK-M"), "store keeps its own copy")

	got.Set("7-BLACK-M", 5)
	again, _ := store.Load(ctx, "42")
	assert.Equal(t, 2, again.Get("7-BLACK-M"), "loaded ledgers are copies")

	require.NoError(t, store.Save(ctx, "42", domain.NewLedger()))
	assert.Equal(t, 0, store.Len(), "empty ledgers are not kept")

	require.NoError(t, store.Save(ctx, "42", l))
	require.NoError(t, store.Delete(ctx, "42"))
	assert.Equal(t, 0, store.Len())
}
