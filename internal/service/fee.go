package service

import (
	"time"

	"github.com/shopspring/decimal"
)

type PriorityTier struct {
	MinAmount decimal.Decimal
	Priority  int
}

// WithdrawalPolicy holds the tunable limits of the withdrawal workflow.
type WithdrawalPolicy struct {
	MinAmount  decimal.Decimal
	MaxAmount  decimal.Decimal
	FeeRate    decimal.Decimal
	MinFee     decimal.Decimal
	MaxFee     decimal.Decimal
	MaxPending int
	TTL        time.Duration
	// Tiers must be sorted by MinAmount, largest first.
	Tiers           []PriorityTier
	DefaultPriority int
}

func DefaultWithdrawalPolicy() WithdrawalPolicy {
	return WithdrawalPolicy{
		MinAmount:  decimal.NewFromInt(100_000),
		MaxAmount:  decimal.NewFromInt(100_000_000),
		FeeRate:    decimal.RequireFromString("0.01"),
		MinFee:     decimal.NewFromInt(5_000),
		MaxFee:     decimal.NewFromInt(50_000),
		MaxPending: 3,
		TTL:        72 * time.Hour,
		Tiers: []PriorityTier{
			{MinAmount: decimal.NewFromInt(10_000_000), Priority: 1},
			{MinAmount: decimal.NewFromInt(5_000_000), Priority: 2},
			{MinAmount: decimal.NewFromInt(1_000_000), Priority: 3},
			{MinAmount: decimal.NewFromInt(500_000), Priority: 4},
		},
		DefaultPriority: 5,
	}
}

// CalculateFee is amount × rate rounded up to a whole unit, clamped to
// [MinFee, MaxFee].
func CalculateFee(amount decimal.Decimal, p WithdrawalPolicy) decimal.Decimal {
	fee := amount.Mul(p.FeeRate).RoundCeil(0)
	if fee.LessThan(p.MinFee) {
		fee = p.MinFee
	}
	if fee.GreaterThan(p.MaxFee) {
		fee = p.MaxFee
	}
	return fee
}

// CalculatePriority maps an amount to its queue tier; 1 is reviewed first.
func CalculatePriority(amount decimal.Decimal, p WithdrawalPolicy) int {
	for _, tier := range p.Tiers {
		if amount.GreaterThanOrEqual(tier.MinAmount) {
			return tier.Priority
		}
	}
	return p.DefaultPriority
}
