package queries_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/plp-bookstore/model"
	"github.com/stevemurr/plp-bookstore/queries"
	"github.com/stevemurr/plp-bookstore/report"
	"github.com/stevemurr/plp-bookstore/seed"
	"github.com/stevemurr/plp-bookstore/store"
)

func TestRunnerDefaults(t *testing.T) {
	ctx := context.Background()
	books := model.NewBookModel(store.NewMemoryStore(), "books")
	_, err := seed.Run(ctx, books, seed.Books(), report.New(&bytes.Buffer{}), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	r := queries.NewRunner(books, report.New(&buf), queries.DefaultParams(), nil)
	require.Len(t, r.Steps(), 15)
	require.NoError(t, r.Run(ctx))

	out := buf.String()
	for _, want := range []string{
		"Fiction Books:",
		"Books published after 1950:",
		"Books by George Orwell:",
		"Updated 0 book's price",
		"Deleted 0 book(s)",
		"Books sorted by price (ascending):",
		"Page 1 of books:",
		"Average price of books by genre:",
		"Colleen Hoover (4 books)",
		"2010s: 7",
		"2020s: 5",
		"Created index: title_1",
		"Created compound index: author_1_published_year_1",
		"Query performance (explain):",
		`"indexName": "title_1"`,
	} {
		assert.Contains(t, out, want)
	}

	// A second run reuses the existing indexes.
	require.NoError(t, queries.NewRunner(books, report.New(&bytes.Buffer{}), queries.DefaultParams(), nil).Run(ctx))
	idx, err := books.Indexes(ctx)
	require.NoError(t, err)
	assert.Len(t, idx, 3)
}

func TestRunnerStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	books := model.NewBookModel(store.NewMemoryStore(), "books")
	_, err := seed.Run(ctx, books, seed.Books(), report.New(&bytes.Buffer{}), nil)
	require.NoError(t, err)

	params := queries.DefaultParams()
	params.Page = 0
	params.DeleteTitle = "Verity"

	var buf bytes.Buffer
	err = queries.NewRunner(books, report.New(&buf), params, nil).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, queries.ErrInvalidPage))
	assert.Contains(t, err.Error(), "step 9 (paginate)")

	assert.Contains(t, buf.String(), "Deleted 1 book(s)")
	assert.NotContains(t, buf.String(), "Average price of books by genre:")
}
