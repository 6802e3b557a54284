package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/test/helpers"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("BACKEND_BASE_URL", "http://localhost:8081")

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestNormalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")
	require.NoError(t, os.WriteFile(path, helpers.LoadFixture(t, "cart_mixed.json"), 0o600))

	out, err := execute(t, "normalize", path)
	require.NoError(t, err)

	var view domain.CartView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Len(t, view.Lines, 3)
	assert.Equal(t, 8, view.ItemCount)
	assert.Equal(t, "42", view.Lines[0].ProductID)
	require.NotNil(t, view.Lines[0].AvailableStock)
	assert.Equal(t, 2, *view.Lines[0].AvailableStock)
}

func TestNormalize_InvalidPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")
	require.NoError(t, os.WriteFile(path, []byte(`"nope"`), 0o600))

	_, err := execute(t, "normalize", path)
	assert.Error(t, err)
}

func TestReconcile(t *testing.T) {
	fake := helpers.NewFakeBackend()
	fake.AddProduct(helpers.FakeProduct{
		ID:       "42",
		Name:     "Heavyweight Tee",
		Variants: []helpers.FakeVariant{{Color: "BLACK", Size: "M", Quantity: 2}},
	})
	lineID := fake.SeedLine("7", helpers.FakeLine{ProductID: "42", Color: "BLACK", Size: "M", Quantity: 5})

	srv := httptest.NewServer(fake.Handler())
	defer srv.Close()

	out, err := execute(t, "reconcile", "--backend", srv.URL, "--customer", "7", "--token", "tok")
	require.NoError(t, err)

	var got report
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	line, ok := got.Cart.Line(lineID)
	require.True(t, ok)
	assert.Equal(t, 2, line.Quantity)
	require.Len(t, got.Notices, 1)
	assert.Equal(t, domain.NoticeStockAdjusted, got.Notices[0].Code)

	assert.Equal(t, 2, fake.Lines("7")[0].Quantity)
}

func TestClear_RequiresConfirmation(t *testing.T) {
	_, err := execute(t, "clear", "--customer", "7", "--token", "tok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}
