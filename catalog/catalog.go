// Package catalog loads the per-line product parameter tables. Each line
// has a JSON file mapping product type codes (0-15, as reported by the
// controller) to the product's name and rate parameters.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const maxProductCode = 15

// ErrInvalidConfig indicates a catalog file that fails validation at load
// time.
var ErrInvalidConfig = errors.New("invalid product catalog")

// ErrUnknownProduct indicates a product type code with no catalog entry.
var ErrUnknownProduct = errors.New("unknown product type")

// ProductType holds the display name and rate parameters of one product.
type ProductType struct {
	Name           string  `json:"name"`
	PalletCapacity int     `json:"pallet_capacity"`
	RatePerMinute  float64 `json:"rate_per_minute"`
}

// Catalog is the immutable product table of one line.
type Catalog struct {
	line     string
	products map[int]ProductType
}

// Load reads and validates the catalog file for line from dir. The file is
// named "<LINE>.json" with the line name uppercased.
func Load(dir, line string) (*Catalog, error) {
	path := filepath.Join(dir, strings.ToUpper(line)+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var table map[string]ProductType
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("%w: %s defines no products", ErrInvalidConfig, path)
	}

	c := &Catalog{line: line, products: make(map[int]ProductType, len(table))}
	for key, pt := range table {
		code, err := strconv.Atoi(key)
		if err != nil || code < 0 || code > maxProductCode {
			return nil, fmt.Errorf("%w: %s: product key %q must be an integer 0-%d", ErrInvalidConfig, path, key, maxProductCode)
		}
		if pt.Name == "" {
			return nil, fmt.Errorf("%w: %s: product %d has no name", ErrInvalidConfig, path, code)
		}
		if pt.PalletCapacity < 1 {
			return nil, fmt.Errorf("%w: %s: product %d pallet_capacity %d", ErrInvalidConfig, path, code, pt.PalletCapacity)
		}
		if pt.RatePerMinute <= 0 {
			return nil, fmt.Errorf("%w: %s: product %d rate_per_minute %g", ErrInvalidConfig, path, code, pt.RatePerMinute)
		}
		c.products[code] = pt
	}

	return c, nil
}

// Line returns the line name this catalog was loaded for.
func (c *Catalog) Line() string { return c.line }

// Lookup resolves a product type code reported by the controller. A code
// with no entry returns ErrUnknownProduct; the caller decides whether to
// keep displaying counters without product detail.
func (c *Catalog) Lookup(code int) (ProductType, error) {
	pt, ok := c.products[code]
	if !ok {
		return ProductType{}, fmt.Errorf("%w: code %d on line %s", ErrUnknownProduct, code, c.line)
	}
	return pt, nil
}
