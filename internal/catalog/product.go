package catalog

import (
	"context"
	"errors"
	"strings"
)

type ProductType string

const (
	TypePickle   ProductType = "pickle"
	TypePowder   ProductType = "powder"
	TypeChapathi ProductType = "chapathi"
	TypeOther    ProductType = "other"
)

// ParseProductType maps any unknown category to TypeOther.
func ParseProductType(s string) ProductType {
	switch t := ProductType(strings.ToLower(strings.TrimSpace(s))); t {
	case TypePickle, TypePowder, TypeChapathi:
		return t
	default:
		return TypeOther
	}
}

var ErrNoVariant = errors.New("product has no such variant")

type Variant struct {
	Weight string `json:"weight"`
	Price  int64  `json:"price"`
}

type Product struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Type     ProductType `json:"type"`
	Variants []Variant   `json:"variants"`
}

func (p Product) Variant(weight string) (Variant, bool) {
	for _, v := range p.Variants {
		if strings.EqualFold(v.Weight, weight) {
			return v, true
		}
	}
	return Variant{}, false
}

// QuickAddable reports whether the product can go into a cart without
// choosing a variant. Pickles are sold by weight and always need one.
func (p Product) QuickAddable() bool {
	_, ok := p.QuickAddVariant()
	return ok
}

// QuickAddVariant is the variant a quick-added unit is priced at: the one
// labelled QuickAddWeight, whatever its position among the variants.
func (p Product) QuickAddVariant() (Variant, bool) {
	if p.Type == TypePickle {
		return Variant{}, false
	}
	return p.Variant(p.QuickAddWeight())
}

// QuickAddWeight is the label a single quick-added unit carries.
func (p Product) QuickAddWeight() string {
	if p.Type == TypePowder {
		return "1kg"
	}
	return "1pc"
}

type Store interface {
	ListSortedByID(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id string) (Product, bool, error)
	Ping(ctx context.Context) error
}
