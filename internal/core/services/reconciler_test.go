package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/internal/core/services"
	"github.com/ammerola/clothify-cart/internal/pkg/logger"
	"github.com/ammerola/clothify-cart/internal/pkg/metrics"
	"github.com/ammerola/clothify-cart/test/helpers"
	"github.com/ammerola/clothify-cart/test/mocks"
)

func fixtureLines(t *testing.T) []domain.CartLine {
	t.Helper()
	lines, err := domain.UnpackCart(json.RawMessage(helpers.LoadFixture(t, "cart_mixed.json")))
	require.NoError(t, err)
	return lines
}

func TestStockReconciler_Fixture(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockCartBackend(ctrl)
	backend.EXPECT().UpdateQuantity(gomock.Any(), session, "9007199254740993", 2).Return(nil)
	backend.EXPECT().RemoveLine(gomock.Any(), session, "12").Return(nil)

	reg := prometheus.NewRegistry()
	m := metrics.NewCartMetrics(reg)
	r := services.NewStockReconciler(backend, nil, 4, m, helpers.TestLogger())

	result := r.Reconcile(context.Background(), session, fixtureLines(t))

	assert.Equal(t, 2, result.Adjusted)
	assert.Empty(t, result.Failed)
	assert.Equal(t, []string{"12"}, result.Removed)
	require.Len(t, result.Lines, 2)

	tee := result.Lines[0]
	assert.Equal(t, 2, tee.Quantity)
	require.NotNil(t, tee.AvailableStock)
	assert.Equal(t, 2, *tee.AvailableStock)

	tote := result.Lines[1]
	assert.Equal(t, 1, tote.Quantity)
	assert.Equal(t, domain.IntPtr(12), tote.AvailableStock)

	expected := `
# HELP clothify_cart_stock_adjustments_total Cart lines clamped to available stock.
# TYPE clothify_cart_stock_adjustments_total counter
clothify_cart_stock_adjustments_total 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "clothify_cart_stock_adjustments_total"))
}

func TestStockReconciler_UnknownStockUntouched(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockCartBackend(ctrl)
	r := services.NewStockReconciler(backend, nil, 4, nil, helpers.TestLogger())

	in := []domain.CartLine{{LineID: "1", ProductID: "5", Quantity: 40}}
	result := r.Reconcile(context.Background(), session, in)

	assert.Zero(t, result.Adjusted)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, 40, result.Lines[0].Quantity)
	assert.Nil(t, result.Lines[0].AvailableStock)
}

func TestStockReconciler_OversizedStockUntouched(t *testing.T) {
	ctrl := gomock.NewController(t)
	// No backend expectations: a stock figure beyond int range must not
	// clamp or remove the line.
	backend := mocks.NewMockCartBackend(ctrl)
	r := services.NewStockReconciler(backend, nil, 4, nil, helpers.TestLogger())

	lines, err := domain.UnpackCart(json.RawMessage(`{"cartItems":[
		{"cartItemId": 1, "productId": 5, "quantity": 3, "stockQuantity": 99999999999999999999},
		{"cartItemId": 2, "productId": 6, "quantity": 2, "stockQuantity": 1e400}
	]}`))
	require.NoError(t, err)
	require.Len(t, lines, 2)

	result := r.Reconcile(context.Background(), session, lines)

	assert.Zero(t, result.Adjusted)
	assert.Empty(t, result.Removed)
	require.Len(t, result.Lines, 2)
	assert.Equal(t, 3, result.Lines[0].Quantity)
	assert.Nil(t, result.Lines[0].AvailableStock)
	assert.Equal(t, 2, result.Lines[1].Quantity)
	assert.Nil(t, result.Lines[1].AvailableStock)
}

func TestStockReconciler_FailedCorrectionIsQueued(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockCartBackend(ctrl)
	queue := mocks.NewMockCorrectionQueue(ctrl)

	backend.EXPECT().UpdateQuantity(gomock.Any(), session, "1", 3).Return(errors.New("timeout"))
	queue.EXPECT().EnqueueCorrection(gomock.Any(), domain.StockCorrection{
		CustomerID: "7",
		LineID:     "1",
		Quantity:   3,
		RequestID:  "req-1",
	}).Return(nil)

	r := services.NewStockReconciler(backend, queue, 4, nil, helpers.TestLogger())
	ctx := logger.WithRequestID(context.Background(), "req-1")
	result := r.Reconcile(ctx, session, []domain.CartLine{
		{LineID: "1", ProductID: "5", Quantity: 6, AvailableStock: domain.IntPtr(3)},
	})

	assert.Equal(t, []string{"1"}, result.Failed)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, 3, result.Lines[0].Quantity, "local clamp survives a failed write")
}

func TestStockReconciler_NilQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockCartBackend(ctrl)
	backend.EXPECT().RemoveLine(gomock.Any(), session, "1").Return(errors.New("timeout"))

	r := services.NewStockReconciler(backend, nil, 4, nil, helpers.TestLogger())
	result := r.Reconcile(context.Background(), session, []domain.CartLine{
		{LineID: "1", ProductID: "5", Quantity: 2, AvailableStock: domain.IntPtr(0)},
	})

	assert.Equal(t, []string{"1"}, result.Failed)
	assert.Empty(t, result.Lines)
	assert.Equal(t, 1, result.Adjusted)
}

func TestStockReconciler_CorrectionsRunConcurrently(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockCartBackend(ctrl)

	const lines = 3
	var arrived sync.WaitGroup
	arrived.Add(lines)
	all := make(chan struct{})
	go func() {
		arrived.Wait()
		close(all)
	}()

	backend.EXPECT().UpdateQuantity(gomock.Any(), session, gomock.Any(), 1).
		DoAndReturn(func(context.Context, domain.Session, string, int) error {
			arrived.Done()
			select {
			case <-all:
				return nil
			case <-time.After(time.Second):
				return errors.New("corrections were serialized")
			}
		}).Times(lines)

	r := services.NewStockReconciler(backend, nil, lines, nil, helpers.TestLogger())
	in := []domain.CartLine{
		{LineID: "1", ProductID: "1", Quantity: 4, AvailableStock: domain.IntPtr(1)},
		{LineID: "2", ProductID: "2", Quantity: 4, AvailableStock: domain.IntPtr(1)},
		{LineID: "3", ProductID: "3", Quantity: 4, AvailableStock: domain.IntPtr(1)},
	}
	result := r.Reconcile(context.Background(), session, in)

	assert.Empty(t, result.Failed)
	assert.Equal(t, lines, result.Adjusted)
}
