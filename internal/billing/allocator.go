package billing

import (
	"powerbank-rental-go/internal/models"

	"github.com/shopspring/decimal"
)

var topUpStep = decimal.NewFromInt(100)

// Allocate splits required across the points balance first and the wallet second.
// pointsPerUnit is how many points make one currency unit. The result is
// insufficient when both balances together cannot cover required; callers must
// not touch any ledger in that case.
func Allocate(required decimal.Decimal, points int64, wallet decimal.Decimal, pointsPerUnit int64) models.Allocation {
	required = required.Round(2)
	alloc := models.Allocation{
		Required:       required,
		PointsAmount:   decimal.Zero,
		WalletAmount:   decimal.Zero,
		Shortfall:      decimal.Zero,
		SuggestedTopUp: decimal.Zero,
		Sufficient:     true,
	}
	if !required.IsPositive() {
		alloc.Required = decimal.Zero
		return alloc
	}
	if points < 0 || pointsPerUnit <= 0 {
		points = 0
	}
	wallet = nonNegative(wallet)

	rate := decimal.NewFromInt(max(pointsPerUnit, 1))
	pointsValue := decimal.NewFromInt(points).Div(rate)

	if points > 0 && pointsValue.GreaterThanOrEqual(required) {
		alloc.PointsToUse = required.Mul(rate).Floor().IntPart()
		alloc.PointsAmount = decimal.NewFromInt(alloc.PointsToUse).Div(rate).RoundDown(2)
		residue := required.Sub(alloc.PointsAmount)
		if residue.LessThanOrEqual(wallet) {
			alloc.WalletAmount = residue
			return alloc
		}
		// Wallet cannot cover the sub-point residue; round points up instead.
		alloc.PointsToUse = min(points, required.Mul(rate).Ceil().IntPart())
		alloc.PointsAmount = required
		return alloc
	}

	alloc.PointsToUse = points
	alloc.PointsAmount = pointsValue.RoundDown(2)
	remainder := required.Sub(alloc.PointsAmount)
	if wallet.GreaterThanOrEqual(remainder) {
		alloc.WalletAmount = remainder
		return alloc
	}

	alloc.WalletAmount = wallet
	alloc.Shortfall = remainder.Sub(wallet)
	alloc.Sufficient = false
	alloc.SuggestedTopUp = SuggestedTopUp(alloc.Shortfall)
	return alloc
}

// SuggestedTopUp rounds a shortfall up to the next 100-unit boundary.
func SuggestedTopUp(shortfall decimal.Decimal) decimal.Decimal {
	if !shortfall.IsPositive() {
		return decimal.Zero
	}
	return shortfall.Div(topUpStep).Ceil().Mul(topUpStep)
}
