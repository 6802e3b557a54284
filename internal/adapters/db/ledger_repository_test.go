package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/clothify-cart/internal/core/domain"
)

func TestLedgerQueries(t *testing.T) {
	t.Run("load", func(t *testing.T) {
		query, args, err := loadQuery("c1")
		require.NoError(t, err)
		assert.Equal(t, "SELECT item_key, quantity, line_id, product_id FROM cart_ledger WHERE customer_id = $1 ORDER BY item_key", query)
		assert.Equal(t, []interface{}{"c1"}, args)
	})

	t.Run("delete", func(t *testing.T) {
		query, args, err := deleteQuery("c1")
		require.NoError(t, err)
		assert.Equal(t, "DELETE FROM cart_ledger WHERE customer_id = $1", query)
		assert.Equal(t, []interface{}{"c1"}, args)
	})

	t.Run("insert_union_of_keys", func(t *testing.T) {
		now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		ledger := domain.NewLedger()
		ledger.Set("42-BLACK-M", 2)
		ledger.SetLineID("42-BLACK-M", "10")
		ledger.SetProduct("42-BLACK-M", "42")
		ledger.SetLineID("7", "11")

		query, args, err := insertQuery("c1", ledger, now)
		require.NoError(t, err)
		assert.Equal(t,
			"INSERT INTO cart_ledger (customer_id,item_key,quantity,line_id,product_id,updated_at) VALUES ($1,$2,$3,$4,$5,$6),($7,$8,$9,$10,$11,$12)",
			query)
		assert.Equal(t, []interface{}{
			"c1", "42-BLACK-M", 2, "10", "42", now,
			"c1", "7", 0, "11", nil, now,
		}, args)
	})
}
