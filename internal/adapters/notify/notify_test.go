package notify_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/clothify-cart/internal/adapters/notify"
	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/test/helpers"
)

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	r := notify.NewRecorder(3)

	for i := 0; i < 5; i++ {
		r.Notify(ctx, "42", domain.NewNotice(domain.NoticeInfo, "n", fmt.Sprintf("msg %d", i)))
	}
	r.Notify(ctx, "7", domain.StockAdjustedNotice(1))

	peek := r.Peek("42")
	require.Len(t, peek, 3)

	got := r.Drain("42")
	require.Len(t, got, 3)
	assert.Equal(t, "msg 2", got[0].Message, "oldest notices are dropped first")
	assert.Equal(t, "msg 4", got[2].Message)
	assert.Empty(t, r.Drain("42"))
	assert.Len(t, r.Drain("7"), 1)
}

func TestFanout(t *testing.T) {
	a, b := notify.NewRecorder(0), notify.NewRecorder(0)
	f := notify.Fanout{a, b, notify.NewLogNotifier(helpers.TestLogger())}

	f.Notify(context.Background(), "42", domain.NewNotice(domain.NoticeError, domain.NoticeMutationFailed, "boom"))

	assert.Len(t, a.Drain("42"), 1)
	assert.Len(t, b.Drain("42"), 1)
}
