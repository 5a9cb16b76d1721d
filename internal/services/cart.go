package services

import (
	"fmt"

	"pear/internal/models"

	"github.com/shopspring/decimal"
)

// ProductLookup resolves a product id to the catalog entry.
type ProductLookup func(id string) (*models.Product, error)

// Cart is the ledger of product quantities for one shopping session.
// It holds at most one line per product id and never a line with a
// non-positive quantity. A Cart is not safe for concurrent use.
type Cart struct {
	lines  []models.CartLine
	lookup ProductLookup
}

// NewCart creates an empty cart. lookup is used by SetQuantity to insert a
// line that is not in the cart yet; it may be nil.
func NewCart(lookup ProductLookup) *Cart {
	return &Cart{lookup: lookup}
}

func (c *Cart) index(productID string) int {
	for i := range c.lines {
		if c.lines[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// Add increases the quantity of product by quantity, inserting a new line
// when the product is not in the cart.
func (c *Cart) Add(product models.Product, quantity int) error {
	if quantity <= 0 {
		return invalid("quantity", ErrInvalidQuantity)
	}
	if i := c.index(product.ID); i >= 0 {
		c.lines[i].Quantity += quantity
		return nil
	}
	c.lines = append(c.lines, models.CartLine{Product: product, Quantity: quantity})
	return nil
}

// SetQuantity replaces the quantity of productID. A non-positive quantity
// removes the line; removing an absent line is a no-op. A positive quantity
// for an absent line inserts it using the product lookup.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	i := c.index(productID)
	if quantity <= 0 {
		if i >= 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
		}
		return nil
	}
	if i >= 0 {
		c.lines[i].Quantity = quantity
		return nil
	}
	if c.lookup == nil {
		return fmt.Errorf("product %s is not in the cart and no catalog lookup is configured", productID)
	}
	product, err := c.lookup(productID)
	if err != nil {
		return err
	}
	c.lines = append(c.lines, models.CartLine{Product: *product, Quantity: quantity})
	return nil
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []models.CartLine {
	lines := make([]models.CartLine, len(c.lines))
	copy(lines, c.lines)
	return lines
}

// Total sums every line priced under mode. It is computed on each call.
func (c *Cart) Total(mode models.OrderMode) decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(LineTotal(line, mode))
	}
	return total
}
