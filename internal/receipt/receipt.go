// Package receipt renders an order snapshot into printable output.
//
// Rendering is split into one shared field-assembly step (Assemble) and two
// encoders: an ESC/POS byte stream for thermal printers and a self-contained
// HTML document for the browser print dialog. Both encoders consume the same
// Receipt value, so receipt content cannot drift between formats.
package receipt

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/rdistribuidora/storefront/internal/domain/order"
)

// Store identity printed on every receipt.
const (
	StoreName = "RD DISTRIBUIDORA"
	Tagline   = "AGUA * GAS * CONVENIENCIA"
	Footer    = "OBRIGADO PELA PREFERENCIA!"
)

// Format selects the output encoding of a rendered receipt.
type Format string

const (
	// FormatThermal is the ESC/POS control-byte stream for direct printing.
	FormatThermal Format = "thermal"
	// FormatDocument is a self-contained print-ready HTML document.
	FormatDocument Format = "document"
)

// ErrUnknownFormat is returned by Render for an unrecognized format.
var ErrUnknownFormat = errors.New("unknown receipt format")

// Field is one labeled line in the receipt's header block.
type Field struct {
	Label string
	Value string
}

// Item is one rendered order line.
type Item struct {
	Quantity int
	Name     string
	Subtotal string
}

// Receipt is the assembled, format-independent content of a receipt.
type Receipt struct {
	StoreName string
	Tagline   string
	Fields    []Field
	Note      string
	Items     []Item
	Total     string
	Footer    string
}

// Assemble maps an order snapshot to receipt content. It is a pure
// function: same order in, same receipt out, no side effects.
func Assemble(o *order.Order) Receipt {
	fields := []Field{
		{Label: "PEDIDO", Value: fmt.Sprintf("#%d", o.ID)},
		{Label: "DATA/HORA", Value: o.CreatedAt.Format("02/01/2006 15:04")},
	}

	switch o.Delivery.Kind {
	case order.DeliveryLocation:
		fields = append(fields, Field{Label: "CONDOMINIO", Value: o.Delivery.Value})
	default:
		fields = append(fields, Field{Label: "ENTREGA", Value: o.Delivery.Value})
	}

	unit := o.Unit
	if unit == "" {
		unit = "-"
	}
	fields = append(fields,
		Field{Label: "CASA/APTO", Value: unit},
		Field{Label: "PAGAMENTO", Value: paymentLabel(o.Payment.Method)},
	)

	// The change-due line only exists for cash payments; for cash with no
	// amount the courier is told no change is needed.
	if o.Payment.Method == order.PaymentCash {
		if o.Payment.ChangeDue != nil {
			fields = append(fields, Field{Label: "TROCO PARA", Value: money(*o.Payment.ChangeDue)})
		} else {
			fields = append(fields, Field{Label: "TROCO", Value: "NAO NECESSITA"})
		}
	}

	items := make([]Item, len(o.Lines))
	for i, l := range o.Lines {
		items[i] = Item{
			Quantity: l.Quantity,
			Name:     l.ProductName,
			Subtotal: money(l.Subtotal()),
		}
	}

	return Receipt{
		StoreName: StoreName,
		Tagline:   Tagline,
		Fields:    fields,
		Note:      o.Note,
		Items:     items,
		Total:     money(o.Total),
		Footer:    Footer,
	}
}

// Render assembles the order and encodes it in the requested format.
func Render(o *order.Order, f Format) ([]byte, error) {
	r := Assemble(o)
	switch f {
	case FormatThermal:
		return EncodeESCPOS(r), nil
	case FormatDocument:
		return EncodeDocument(r)
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%q", f)
	}
}

func paymentLabel(m order.PaymentMethod) string {
	switch m {
	case order.PaymentCash:
		return "DINHEIRO"
	case order.PaymentCard:
		return "CARTAO"
	case order.PaymentPix:
		return "PIX"
	default:
		return string(m)
	}
}

// money formats an amount with the currency prefix and exactly two
// decimal places.
func money(d decimal.Decimal) string {
	return "R$ " + d.StringFixed(2)
}
