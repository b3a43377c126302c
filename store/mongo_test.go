//go:build mongo

package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stevemurr/plp-bookstore/store"
)

// TestMongoStore runs the shared suite against a live server:
//
//	BOOKSTORE_TEST_MONGODB_URI=mongodb://localhost:27017 go test -tags mongo ./store/
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("BOOKSTORE_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("BOOKSTORE_TEST_MONGODB_URI not set")
	}
	ctx := context.Background()
	db := "plp_bookstore_test_" + time.Now().Format("20060102150405")

	s, err := store.NewMongoStore(ctx, uri, db, 5*time.Second)
	require.NoError(t, err)
	defer func() {
		_ = s.Drop(ctx, "books")
		_ = s.Drop(ctx, "authors")
		_ = s.Close(ctx)
	}()

	runStoreTests(t, s)
}
