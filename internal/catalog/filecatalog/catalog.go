package filecatalog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/timmy/dropcart/internal/catalog"
)

// ManifestFileName is the JSONL manifest file name inside a catalog directory.
const ManifestFileName = "manifest.jsonl"

// ManifestItem is one line of manifest.jsonl.
type ManifestItem struct {
	catalog.Product
	Keywords []string `json:"keywords,omitempty"`
}

// Catalog serves a supplier catalog from a JSONL manifest on disk. It is used for local
// runs and as a deterministic fixture.
type Catalog struct {
	path string

	once  sync.Once
	err   error
	items []ManifestItem
	byID  map[string]*ManifestItem
}

// New creates a file catalog.
// Parameters:
//   - path: a manifest file, or a directory containing manifest.jsonl.
//
// Returns:
//   - *Catalog: lazily loaded catalog.
func New(path string) *Catalog {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, ManifestFileName)
	}
	return &Catalog{path: path}
}

// FromItems builds an in-memory catalog, mostly for tests.
func FromItems(items []ManifestItem) *Catalog {
	c := &Catalog{}
	c.once.Do(func() { c.index(items) })
	return c
}

// ListPage returns the page of items whose keywords or title contain a keyword unit, or
// whose category equals a category unit. Items are ordered by supplier id.
func (c *Catalog) ListPage(ctx context.Context, unit catalog.Unit, page, pageSize int) ([]catalog.Listing, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("invalid page %d size %d", page, pageSize)
	}

	var matched []catalog.Listing
	for i := range c.items {
		it := &c.items[i]
		if !matches(it, unit) {
			continue
		}
		matched = append(matched, catalog.Listing{
			SupplierID: it.SupplierID,
			Title:      it.Title,
			Category:   it.Category,
			Cost:       it.Cost,
		})
	}

	start := (page - 1) * pageSize
	if start >= len(matched) {
		return []catalog.Listing{}, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

// FetchDetail returns a copy of the product.
func (c *Catalog) FetchDetail(ctx context.Context, supplierID string) (*catalog.Product, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	it, ok := c.byID[supplierID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	p := it.Product
	p.Variants = append([]catalog.Variant(nil), it.Variants...)
	return &p, nil
}

// Count returns the number of products in the manifest.
func (c *Catalog) Count() (int, error) {
	if err := c.load(); err != nil {
		return 0, err
	}
	return len(c.items), nil
}

func matches(it *ManifestItem, unit catalog.Unit) bool {
	switch unit.Kind {
	case catalog.UnitCategory:
		return strings.EqualFold(it.Category, unit.Value)
	case catalog.UnitKeyword:
		kw := strings.ToLower(strings.TrimSpace(unit.Value))
		if kw == "" {
			return false
		}
		for _, k := range it.Keywords {
			if strings.EqualFold(k, kw) {
				return true
			}
		}
		return strings.Contains(strings.ToLower(it.Title), kw)
	}
	return false
}

func (c *Catalog) load() error {
	c.once.Do(func() {
		items, err := readManifest(c.path)
		if err != nil {
			c.err = err
			return
		}
		c.index(items)
	})
	return c.err
}

func (c *Catalog) index(items []ManifestItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].SupplierID < items[j].SupplierID
	})
	c.items = items
	c.byID = make(map[string]*ManifestItem, len(items))
	for i := range c.items {
		c.byID[c.items[i].SupplierID] = &c.items[i]
	}
}

// readManifest loads all items from a manifest file
func readManifest(path string) ([]ManifestItem, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	var items []ManifestItem
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var item ManifestItem
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			// Skip malformed lines
			continue
		}
		if item.SupplierID == "" || seen[item.SupplierID] {
			continue
		}
		seen[item.SupplierID] = true
		items = append(items, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}
	return items, nil
}
