package report_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/stevemurr/plp-bookstore/report"
)

func TestDocumentsFieldOrder(t *testing.T) {
	var buf bytes.Buffer
	p := report.New(&buf, report.WithFieldOrder("title", "author", "price"))

	require.NoError(t, p.Documents([]bson.M{
		{"price": 9.99, "zeta": true, "author": "Ana Huang", "title": "Twisted Love", "_id": int32(7), "alpha": 1},
	}))

	out := buf.String()
	order := []string{`"_id"`, `"title"`, `"author"`, `"price"`, `"alpha"`, `"zeta"`}
	last := -1
	for _, key := range order {
		i := strings.Index(out, key)
		require.NotEqual(t, -1, i, "missing %s in %s", key, out)
		assert.Greater(t, i, last, "%s out of order in %s", key, out)
		last = i
	}
	assert.True(t, strings.HasPrefix(out, "[\n"))
	assert.True(t, strings.HasSuffix(out, "]\n"))
}

func TestDocumentsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.New(&buf).Documents(nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestHeadingAndLines(t *testing.T) {
	var buf bytes.Buffer
	p := report.New(&buf)
	p.Heading("Fiction Books:")
	p.Linef("%d. %q by %s (%d)", 1, "Verity", "Colleen Hoover", 2018)
	assert.Equal(t, "\nFiction Books:\n1. \"Verity\" by Colleen Hoover (2018)\n", buf.String())
}

func TestValue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.New(&buf).Value(struct {
		NReturned int64 `bson:"nReturned"`
	}{NReturned: 3}))
	assert.Contains(t, buf.String(), `"nReturned": 3`)
}
