// Package catalogseed loads categories and products from a YAML document
// into the catalog.
package catalogseed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"shop-assistant/internal/domain"
)

// Writer stores catalog entries. Both calls overwrite an existing entry.
type Writer interface {
	PutCategory(ctx context.Context, cat domain.Category) error
	PutProduct(ctx context.Context, p domain.Product) error
}

// File is the YAML layout of a seed document.
type File struct {
	Categories []Category `yaml:"categories"`
}

type Category struct {
	ID       string    `yaml:"id"`
	Name     string    `yaml:"name"`
	Image    string    `yaml:"image"`
	Products []Product `yaml:"products"`
}

type Product struct {
	ID                  string `yaml:"id"`
	Name                string `yaml:"name"`
	Image               string `yaml:"image"`
	Description         string `yaml:"description"`
	Price               int64  `yaml:"price"`
	PriceBeforeDiscount int64  `yaml:"priceBeforeDiscount"`
	Quantity            int64  `yaml:"quantity"`
	Sold                int64  `yaml:"sold"`
}

// Result counts what Load wrote.
type Result struct {
	Categories int
	Products   int
}

// Parse decodes and validates a seed document.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("catalogseed: parse: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	seen := map[string]bool{}
	for i := range f.Categories {
		c := &f.Categories[i]
		c.ID, c.Name = strings.TrimSpace(c.ID), strings.TrimSpace(c.Name)
		if c.ID == "" || c.Name == "" {
			return fmt.Errorf("catalogseed: category %d: id and name are required", i)
		}
		for j := range c.Products {
			p := &c.Products[j]
			p.ID, p.Name = strings.TrimSpace(p.ID), strings.TrimSpace(p.Name)
			if p.ID == "" || p.Name == "" {
				return fmt.Errorf("catalogseed: category %s product %d: id and name are required", c.ID, j)
			}
			if seen[p.ID] {
				return fmt.Errorf("catalogseed: duplicate product id %q", p.ID)
			}
			seen[p.ID] = true
			if p.Price < 0 || p.Quantity < 0 || p.Sold < 0 {
				return fmt.Errorf("catalogseed: product %s: price, quantity and sold must not be negative", p.ID)
			}
			if p.PriceBeforeDiscount == 0 {
				p.PriceBeforeDiscount = p.Price
			}
		}
	}
	return nil
}

// Load parses r and writes every category, then its products, through w.
// It stops at the first write error; entries written before it remain.
func Load(ctx context.Context, w Writer, r io.Reader) (Result, error) {
	f, err := Parse(r)
	if err != nil {
		return Result{}, err
	}
	log := zerolog.Ctx(ctx)

	var res Result
	for _, c := range f.Categories {
		if err := w.PutCategory(ctx, domain.Category{ID: c.ID, Name: c.Name, Image: c.Image}); err != nil {
			return res, fmt.Errorf("catalogseed: category %s: %w", c.ID, err)
		}
		res.Categories++
		for _, p := range c.Products {
			err := w.PutProduct(ctx, domain.Product{
				ID:                  p.ID,
				Name:                p.Name,
				CategoryID:          c.ID,
				Image:               p.Image,
				Description:         p.Description,
				Price:               p.Price,
				PriceBeforeDiscount: p.PriceBeforeDiscount,
				Quantity:            p.Quantity,
				Sold:                p.Sold,
			})
			if err != nil {
				return res, fmt.Errorf("catalogseed: product %s: %w", p.ID, err)
			}
			res.Products++
		}
		log.Debug().Str("category_id", c.ID).Int("products", len(c.Products)).Msg("category seeded")
	}
	return res, nil
}
