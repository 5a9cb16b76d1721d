package services

import (
	"pear/internal/models"

	"github.com/shopspring/decimal"
)

// UnitPrice returns the price of p that applies under mode.
func UnitPrice(p models.Product, mode models.OrderMode) decimal.Decimal {
	if mode == models.OrderModeWholesale {
		return p.WholesalePrice
	}
	return p.RetailPrice
}

// LineTotal returns the unit price under mode multiplied by the quantity.
func LineTotal(line models.CartLine, mode models.OrderMode) decimal.Decimal {
	return UnitPrice(line.Product, mode).Mul(decimal.NewFromInt(int64(line.Quantity)))
}
