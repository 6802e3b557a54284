package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/internal/core/services"
	"github.com/ammerola/clothify-cart/test/helpers"
	"github.com/ammerola/clothify-cart/test/mocks"
)

var session = domain.Session{CustomerID: "7", Token: "tok"}

func TestCartFetcher_Anonymous(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockCartBackend(ctrl)
	f := services.NewCartFetcher(backend, nil, helpers.TestLogger())

	lines, err := f.Fetch(context.Background(), domain.Session{CustomerID: "7"})
	require.NoError(t, err)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)
}

func TestCartFetcher_Normalizes(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockCartBackend(ctrl)
	backend.EXPECT().GetCart(gomock.Any(), session).
		Return(json.RawMessage(helpers.LoadFixture(t, "cart_mixed.json")), nil)

	f := services.NewCartFetcher(backend, nil, helpers.TestLogger())
	lines, err := f.Fetch(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "9007199254740993", lines[0].LineID)
	assert.Equal(t, "42", lines[0].ProductID)
	assert.Equal(t, "BLACK", lines[0].Color())
	assert.Equal(t, "11", lines[1].LineID)
	assert.Equal(t, "12", lines[2].LineID)
}

func TestCartFetcher_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		payload  json.RawMessage
		wantKind domain.ErrorKind
		wantErr  bool
	}{
		{
			name:    "not_found_is_empty_cart",
			err:     domain.NewError(domain.KindNotFound, "get_cart", "", nil),
			wantErr: false,
		},
		{
			name:     "unauthenticated",
			err:      domain.NewError(domain.KindUnauthenticated, "get_cart", "", nil),
			wantKind: domain.KindUnauthenticated,
			wantErr:  true,
		},
		{
			name:     "network",
			err:      errors.New("connection refused"),
			wantKind: domain.KindNetwork,
			wantErr:  true,
		},
		{
			name:     "undecodable_payload",
			payload:  json.RawMessage(`"nope"`),
			wantKind: domain.KindNetwork,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			backend := mocks.NewMockCartBackend(ctrl)
			backend.EXPECT().GetCart(gomock.Any(), session).Return(tt.payload, tt.err)

			f := services.NewCartFetcher(backend, nil, helpers.TestLogger())
			lines, err := f.Fetch(context.Background(), session)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Empty(t, lines)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, domain.KindOf(err))
			assert.Nil(t, lines)
		})
	}
}

func TestCartFetcher_SharesConcurrentCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockCartBackend(ctrl)

	release := make(chan struct{})
	var calls atomic.Int32
	backend.EXPECT().GetCart(gomock.Any(), session).
		DoAndReturn(func(context.Context, domain.Session) (json.RawMessage, error) {
			calls.Add(1)
			<-release
			return json.RawMessage(`{"items":[{"cartItemId":1,"productId":2,"quantity":1}]}`), nil
		}).AnyTimes()

	f := services.NewCartFetcher(backend, nil, helpers.TestLogger())

	const callers = 8
	results := make([][]domain.CartLine, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lines, err := f.Fetch(context.Background(), session)
			assert.NoError(t, err)
			results[i] = lines
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, lines := range results {
		require.Len(t, lines, 1)
	}

	results[0][0].Quantity = 99
	assert.Equal(t, 1, results[1][0].Quantity, "callers must not share line slices")
}

func TestCartFetcher_CancelledCallerDoesNotFailOthers(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockCartBackend(ctrl)

	started := make(chan struct{})
	release := make(chan struct{})
	backend.EXPECT().GetCart(gomock.Any(), session).
		DoAndReturn(func(ctx context.Context, _ domain.Session) (json.RawMessage, error) {
			close(started)
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return json.RawMessage(`{"items":[{"cartItemId":1,"productId":2,"quantity":1}]}`), nil
		}).Times(1)

	f := services.NewCartFetcher(backend, nil, helpers.TestLogger())

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.Fetch(firstCtx, session)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		lines []domain.CartLine
		err   error
	}
	second := make(chan outcome, 1)
	go func() {
		lines, err := f.Fetch(context.Background(), session)
		second <- outcome{lines, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the shared fetch")
	}

	close(release)
	got := <-second
	require.NoError(t, got.err)
	require.Len(t, got.lines, 1)
}
