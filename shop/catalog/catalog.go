// Package catalog provides the read-only product list shown by the store.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Product is a catalog entry. Name is the stable identifier used by carts and callbacks.
type Product struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// UnitPrice is in whole hryvnias.
	UnitPrice int    `yaml:"unit_price"`
	ImagePath string `yaml:"image_path"`
}

// Finder resolves a product by name.
type Finder interface {
	Find(name string) (Product, bool)
}

// Catalog exposes the ordered product list and lookup by name.
type Catalog interface {
	Finder
	List() []Product
}

// Static is an immutable in-memory catalog.
type Static struct {
	products []Product
	byName   map[string]int
}

// MaxNameBytes is the longest product name that still fits Telegram's 64-byte
// callback data next to the "\fproduct|" framing of product buttons.
const MaxNameBytes = 64 - len("\fproduct|")

// New builds a catalog, rejecting blank, overlong and duplicate names and
// non-positive prices.
func New(products []Product) (*Static, error) {
	s := &Static{
		products: make([]Product, 0, len(products)),
		byName:   make(map[string]int, len(products)),
	}
	for i, p := range products {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("catalog: product #%d has empty name", i)
		}
		if len(p.Name) > MaxNameBytes {
			return nil, fmt.Errorf("catalog: product %q is %d bytes, button data allows %d", p.Name, len(p.Name), MaxNameBytes)
		}
		if p.UnitPrice <= 0 {
			return nil, fmt.Errorf("catalog: product %q must have a positive price", p.Name)
		}
		if _, dup := s.byName[p.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate product %q", p.Name)
		}
		s.byName[p.Name] = len(s.products)
		s.products = append(s.products, p)
	}
	return s, nil
}

// List returns a copy of the products in display order.
func (s *Static) List() []Product {
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

// Find looks a product up by exact name.
func (s *Static) Find(name string) (Product, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Product{}, false
	}
	return s.products[i], true
}

type fileFormat struct {
	Products []Product `yaml:"products"`
}

// LoadFile reads a YAML catalog of the form `products: [{name, description, unit_price, image_path}]`.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return New(f.Products)
}

// Default returns the built-in GEN product line used when no catalog file is configured.
func Default() *Static {
	s, err := New([]Product{
		{
			Name: "Магній 500 PRO",
			Description: "Склад 1 капсули:\n" +
				"Магнію сукцинат - 500 мг\n" +
				"Вітамін B6 - 2 мг\n\n" +
				"Підтримує нервову систему, зменшує втому та покращує сон.",
			UnitPrice: 495,
			ImagePath: "PRO.png",
		},
		{
			Name: "Калій ULTRA",
			Description: "Склад 1 капсули:\n" +
				"Калію сукцинат - 400 мг\n" +
				"Магнію сукцинат - 100 мг\n\n" +
				"Підтримує роботу серця та водно-сольовий баланс.",
			UnitPrice: 495,
			ImagePath: "ULTRA.png",
		},
		{
			Name: "HEALTH KIT",
			Description: "Набір: Магній 500 PRO + Калій ULTRA.\n\n" +
				"Комплексна підтримка організму на місяць.",
			UnitPrice: 849,
			ImagePath: "KIT.png",
		},
	})
	if err != nil {
		panic(err)
	}
	return s
}
