package filecatalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/dropcart/internal/catalog"
)

const manifest = `{"supplier_id":"b2","title":"Fleece Hoodie","category":"tops","cost":12,"variants":[{"id":"v1","key":"Black-XL","cost":12,"stock":4}]}
not json
{"supplier_id":"a1","title":"Canvas Cap","category":"hats","cost":3,"keywords":["summer"]}

{"supplier_id":"c3","title":"Zip Hoodie","category":"tops","cost":15}
{"supplier_id":"a1","title":"duplicate","category":"hats","cost":99}
`

func writeManifest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(manifest), 0o644))
	return dir
}

func TestCatalog_ListPage(t *testing.T) {
	c := New(writeManifest(t))
	ctx := context.Background()

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	tests := []struct {
		name     string
		unit     catalog.Unit
		page     int
		pageSize int
		want     []string
	}{
		{"keyword in title", catalog.Unit{Kind: catalog.UnitKeyword, Value: "hoodie"}, 1, 10, []string{"b2", "c3"}},
		{"keyword list", catalog.Unit{Kind: catalog.UnitKeyword, Value: "Summer"}, 1, 10, []string{"a1"}},
		{"category first page", catalog.Unit{Kind: catalog.UnitCategory, Value: "tops"}, 1, 1, []string{"b2"}},
		{"category second page", catalog.Unit{Kind: catalog.UnitCategory, Value: "tops"}, 2, 1, []string{"c3"}},
		{"past the end", catalog.Unit{Kind: catalog.UnitCategory, Value: "tops"}, 3, 1, []string{}},
		{"no match", catalog.Unit{Kind: catalog.UnitKeyword, Value: "boots"}, 1, 10, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ListPage(ctx, tt.unit, tt.page, tt.pageSize)
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, l := range got {
				ids = append(ids, l.SupplierID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestCatalog_FetchDetail(t *testing.T) {
	c := New(writeManifest(t))

	p, err := c.FetchDetail(context.Background(), "b2")
	require.NoError(t, err)
	assert.Equal(t, "Fleece Hoodie", p.Title)
	require.Len(t, p.Variants, 1)

	// callers get a copy
	p.Variants[0].Stock = 0
	again, err := c.FetchDetail(context.Background(), "b2")
	require.NoError(t, err)
	assert.Equal(t, 4, again.Variants[0].Stock)

	a1, err := c.FetchDetail(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "Canvas Cap", a1.Title)

	_, err = c.FetchDetail(context.Background(), "zz")
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
}

func TestCatalog_MissingManifest(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "nope.jsonl"))
	_, err := c.ListPage(context.Background(), catalog.Unit{Kind: catalog.UnitKeyword, Value: "x"}, 1, 10)
	assert.Error(t, err)
}
