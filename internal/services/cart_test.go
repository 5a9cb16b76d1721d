package services_test

import (
	"fmt"
	"testing"

	"pear/internal/models"
	"pear/internal/repositories"
	"pear/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func phone(id, name string, retail, wholesale int64) models.Product {
	return models.Product{
		ID:             id,
		Name:           name,
		RetailPrice:    decimal.NewFromInt(retail),
		WholesalePrice: decimal.NewFromInt(wholesale),
		Stock:          10,
	}
}

func noLookup(id string) (*models.Product, error) {
	return nil, fmt.Errorf("product with ID %s: %w", id, repositories.ErrNotFound)
}

func TestPricing_UnitPriceFollowsMode(t *testing.T) {
	p := phone("p1", "Quantum X1", 999, 750)

	assert.True(t, decimal.NewFromInt(999).Equal(services.UnitPrice(p, models.OrderModeRetail)))
	assert.True(t, decimal.NewFromInt(750).Equal(services.UnitPrice(p, models.OrderModeWholesale)))

	line := models.CartLine{Product: p, Quantity: 3}
	assert.True(t, decimal.NewFromInt(2997).Equal(services.LineTotal(line, models.OrderModeRetail)))
	assert.True(t, decimal.NewFromInt(2250).Equal(services.LineTotal(line, models.OrderModeWholesale)))
}

func TestCart_AddMergesLines(t *testing.T) {
	cart := services.NewCart(noLookup)
	x1 := phone("p1", "Quantum X1", 999, 750)

	require.NoError(t, cart.Add(x1, 1))
	require.NoError(t, cart.Add(x1, 2))

	lines := cart.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
}

func TestCart_AddRejectsNonPositiveQuantity(t *testing.T) {
	cart := services.NewCart(noLookup)
	x1 := phone("p1", "Quantum X1", 999, 750)

	for _, qty := range []int{0, -1} {
		err := cart.Add(x1, qty)
		assert.ErrorIs(t, err, services.ErrInvalidQuantity)
		assert.True(t, services.IsValidation(err))
	}
	assert.Equal(t, 0, cart.Len())
}

func TestCart_TotalsFollowMode(t *testing.T) {
	cart := services.NewCart(noLookup)
	require.NoError(t, cart.Add(phone("p1", "Quantum X1", 999, 750), 2))

	assert.Equal(t, "1998", cart.Total(models.OrderModeRetail).String())
	assert.Equal(t, "1500", cart.Total(models.OrderModeWholesale).String())
	// Switching back does not alter quantities.
	assert.Equal(t, "1998", cart.Total(models.OrderModeRetail).String())
	assert.Equal(t, 2, cart.Lines()[0].Quantity)
}

func TestCart_SetQuantity(t *testing.T) {
	x1 := phone("p1", "Quantum X1", 999, 750)
	nova := phone("p2", "Nova Spark", 349, 250)
	lookup := func(id string) (*models.Product, error) {
		if id == nova.ID {
			p := nova
			return &p, nil
		}
		return noLookup(id)
	}

	cart := services.NewCart(lookup)
	require.NoError(t, cart.Add(x1, 1))

	t.Run("replaces", func(t *testing.T) {
		require.NoError(t, cart.SetQuantity(x1.ID, 5))
		assert.Equal(t, 5, cart.Lines()[0].Quantity)
	})

	t.Run("inserts absent line from catalog", func(t *testing.T) {
		require.NoError(t, cart.SetQuantity(nova.ID, 2))
		lines := cart.Lines()
		require.Len(t, lines, 2)
		assert.Equal(t, nova.Name, lines[1].Product.Name)
	})

	t.Run("unknown product", func(t *testing.T) {
		err := cart.SetQuantity("missing", 1)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.Equal(t, 2, cart.Len())
	})

	t.Run("zero removes and is idempotent", func(t *testing.T) {
		require.NoError(t, cart.SetQuantity(x1.ID, 0))
		require.NoError(t, cart.SetQuantity(x1.ID, -3))
		lines := cart.Lines()
		require.Len(t, lines, 1)
		assert.Equal(t, nova.ID, lines[0].Product.ID)
	})
}

func TestCart_LinesIsACopy(t *testing.T) {
	cart := services.NewCart(noLookup)
	require.NoError(t, cart.Add(phone("p1", "Quantum X1", 999, 750), 1))

	lines := cart.Lines()
	lines[0].Quantity = 100

	assert.Equal(t, 1, cart.Lines()[0].Quantity)
}

func TestCart_ClearEmptiesAndTotalsZero(t *testing.T) {
	cart := services.NewCart(noLookup)
	require.NoError(t, cart.Add(phone("p1", "Quantum X1", 999, 750), 1))

	cart.Clear()

	assert.Equal(t, 0, cart.Len())
	assert.True(t, cart.Total(models.OrderModeRetail).IsZero())
}
