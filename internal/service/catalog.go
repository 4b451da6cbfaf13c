package service

import (
	"fmt"
	"sort"

	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/shopspring/decimal"
)

// CustomPackageID marks a purchase priced per coin instead of from the
// catalog.
const CustomPackageID = "custom"

// Catalog is a read-only set of coin packages. It is built once at startup
// and shared by reference.
type Catalog struct {
	byID   map[string]models.CoinPackage
	sorted []models.CoinPackage
}

func NewCatalog(packages ...models.CoinPackage) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]models.CoinPackage, len(packages))}
	for _, p := range packages {
		switch {
		case p.ID == "" || p.ID == CustomPackageID:
			return nil, fmt.Errorf("invalid coin package id %q", p.ID)
		case p.BaseCoins <= 0 || p.BonusCoins < 0:
			return nil, fmt.Errorf("coin package %s has invalid coin counts", p.ID)
		case !p.Price.IsPositive():
			return nil, fmt.Errorf("coin package %s has invalid price", p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate coin package %s", p.ID)
		}
		c.byID[p.ID] = p
		c.sorted = append(c.sorted, p)
	}
	sort.SliceStable(c.sorted, func(i, j int) bool {
		return c.sorted[i].Price.LessThan(c.sorted[j].Price)
	})
	return c, nil
}

func DefaultCatalog() *Catalog {
	pkg := func(id string, base, bonus, price int64) models.CoinPackage {
		return models.CoinPackage{ID: id, BaseCoins: base, BonusCoins: bonus, Price: decimal.NewFromInt(price)}
	}
	c, err := NewCatalog(
		pkg("trial", 25, 0, 2_500),
		pkg("starter", 50, 5, 4_500),
		pkg("basic", 100, 10, 8_500),
		pkg("student", 250, 30, 20_000),
		pkg("popular", 500, 75, 40_000),
		pkg("weekend", 750, 150, 60_000),
		pkg("premium", 1000, 200, 80_000),
		pkg("business", 1500, 300, 120_000),
		pkg("mega", 2500, 600, 190_000),
		pkg("flash", 3000, 1000, 210_000),
		pkg("ultimate", 5000, 1500, 350_000),
		pkg("legendary", 10000, 3500, 650_000),
	)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Lookup(id string) (models.CoinPackage, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Packages returns the catalog cheapest first.
func (c *Catalog) Packages() []models.CoinPackage {
	out := make([]models.CoinPackage, len(c.sorted))
	copy(out, c.sorted)
	return out
}
