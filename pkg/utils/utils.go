package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundMoney rounds a monetary value to 2 decimal places.
// decimal.Round rounds half away from zero, which is the ledger-wide policy.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// SplitAmount divides a total into `parts` equal installment amounts rounded to
// 2 decimal places, with the final part absorbing the rounding remainder so the
// parts always sum exactly to the total.
func SplitAmount(total decimal.Decimal, parts int) []decimal.Decimal {
	if parts <= 0 {
		return nil
	}

	each := RoundMoney(total.Div(decimal.NewFromInt(int64(parts))))
	amounts := make([]decimal.Decimal, parts)
	running := decimal.Zero
	for i := 0; i < parts-1; i++ {
		amounts[i] = each
		running = running.Add(each)
	}
	amounts[parts-1] = total.Sub(running)

	return amounts
}

// MinDecimal returns the smaller of two decimals.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// IsOverdue checks whether a due date has passed as of the given time.
func IsOverdue(dueDate, asOf time.Time) bool {
	return asOf.After(dueDate)
}

// DaysOverdue returns the whole number of days a due date is past, 0 if not past.
func DaysOverdue(dueDate, asOf time.Time) int {
	if !asOf.After(dueDate) {
		return 0
	}
	return int(asOf.Sub(dueDate).Hours() / 24)
}

// DecimalFromFloat converts float64 to decimal.Decimal
func DecimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// DecimalFromString converts string to decimal.Decimal
func DecimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
