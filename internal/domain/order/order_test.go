package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDeliveryInfoConstructors(t *testing.T) {
	loc := LocationDelivery("Recanto dos Lagos")
	assert.Equal(t, DeliveryLocation, loc.Kind)
	assert.NoError(t, loc.Validate())

	other := OtherDelivery("Rua das Flores 123")
	assert.Equal(t, DeliveryOther, other.Kind)
	assert.NoError(t, other.Validate())
}

func TestPaymentInfoValidate(t *testing.T) {
	change := decimal.RequireFromString("20.00")

	assert.NoError(t, PaymentInfo{Method: PaymentCash}.Validate())
	assert.NoError(t, CashPayment(&change).Validate())
	assert.NoError(t, PaymentInfo{Method: PaymentCard}.Validate())
	assert.NoError(t, PaymentInfo{Method: PaymentPix}.Validate())

	assert.ErrorIs(t, PaymentInfo{Method: "barter"}.Validate(), ErrInvalidPayment)
	assert.ErrorIs(t, PaymentInfo{Method: PaymentCard, ChangeDue: &change}.Validate(), ErrInvalidPayment)
}

func TestLineSubtotal(t *testing.T) {
	l := Line{Quantity: 3, UnitPrice: decimal.RequireFromString("8.50")}
	assert.Equal(t, "25.50", l.Subtotal().StringFixed(2))
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusPrinted.Valid())
	assert.False(t, Status("ARCHIVED").Valid())
}
