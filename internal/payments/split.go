package payments

import "github.com/shopspring/decimal"

var (
	// splitFeeRate applies when the charge settles into a farmer subaccount.
	splitFeeRate = decimal.NewFromFloat(0.10)
	// directFeeRate applies to platform-direct charges with no farmer split.
	directFeeRate = decimal.NewFromFloat(0.025)
)

// ComputeSplit derives the platform fee and farmer share for a charge.
// Fees are rounded to two decimal places; the farmer share absorbs the
// rounding remainder so platformFee + farmerAmount always equals amount on
// split charges.
func ComputeSplit(amount decimal.Decimal, split bool) (platformFee, farmerAmount decimal.Decimal) {
	if split {
		platformFee = amount.Mul(splitFeeRate).Round(2)
		farmerAmount = amount.Sub(platformFee)
		return platformFee, farmerAmount
	}
	return amount.Mul(directFeeRate).Round(2), decimal.Zero
}
