package models

import "github.com/shopspring/decimal"

type CoinPackage struct {
	ID         string          `json:"id"`
	BaseCoins  int64           `json:"baseCoins"`
	BonusCoins int64           `json:"bonusCoins"`
	Price      decimal.Decimal `json:"price"`
}

func (p CoinPackage) TotalCoins() int64 { return p.BaseCoins + p.BonusCoins }

func (p CoinPackage) PricePerCoin() decimal.Decimal {
	total := p.TotalCoins()
	if total == 0 {
		return decimal.Zero
	}
	return p.Price.Div(decimal.NewFromInt(total)).Round(2)
}

// CoinQuote is a resolved purchase: either a catalog package or a custom
// amount priced per coin.
type CoinQuote struct {
	PackageID  string          `json:"packageId"`
	BaseCoins  int64           `json:"baseCoins"`
	BonusCoins int64           `json:"bonusCoins"`
	TotalCoins int64           `json:"totalCoins"`
	Price      decimal.Decimal `json:"price"`
	Custom     bool            `json:"custom"`
}
