// Package balance reduces a user's transactions to a signed total.
package balance

import (
	"mywallet/internal/models"

	"github.com/shopspring/decimal"
)

// Compute returns the sum of input values minus the sum of output values.
// Transactions with any other kind contribute nothing.
func Compute(txs []models.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		switch tx.Kind {
		case models.KindInput:
			total = total.Add(tx.Value)
		case models.KindOutput:
			total = total.Sub(tx.Value)
		}
	}
	return total
}
