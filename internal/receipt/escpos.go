package receipt

import (
	"bytes"
	"fmt"
)

// ESC/POS control sequences understood by ELGIN/Epson-family thermal
// printers.
const (
	escReset   = "\x1b@"     // ESC @  initialize device
	escCenter  = "\x1ba\x01" // ESC a 1
	escLeft    = "\x1ba\x00" // ESC a 0
	escBoldOn  = "\x1bE\x01" // ESC E 1
	escBoldOff = "\x1bE\x00" // ESC E 0
	escCut     = "\x1dV\x00" // GS V 0  full paper cut
)

// rule spans the full 32-column width of an 80mm thermal printer.
const rule = "--------------------------------\n"

// EncodeESCPOS encodes the receipt as a raw ESC/POS byte stream, ready to
// be written to the printer device.
func EncodeESCPOS(r Receipt) []byte {
	var buf bytes.Buffer

	buf.WriteString(escReset)

	// Centered bold header.
	buf.WriteString(escCenter)
	buf.WriteString(escBoldOn)
	buf.WriteString(r.StoreName + "\n")
	buf.WriteString(escBoldOff)
	buf.WriteString(r.Tagline + "\n")
	buf.WriteString(rule)

	// Order fields, left aligned.
	buf.WriteString(escLeft)
	for _, f := range r.Fields {
		fmt.Fprintf(&buf, "%s: %s\n", f.Label, f.Value)
	}

	if r.Note != "" {
		buf.WriteString(rule)
		buf.WriteString("OBSERVACOES:\n")
		buf.WriteString(r.Note + "\n")
	}

	buf.WriteString(rule)
	buf.WriteString(escBoldOn)
	buf.WriteString("ITENS DO PEDIDO\n")
	buf.WriteString(escBoldOff)

	for _, it := range r.Items {
		fmt.Fprintf(&buf, "%dx %s\n", it.Quantity, it.Name)
		fmt.Fprintf(&buf, "   %s\n", it.Subtotal)
	}

	buf.WriteString(rule)

	// Bold centered total.
	buf.WriteString(escBoldOn)
	buf.WriteString(escCenter)
	fmt.Fprintf(&buf, "TOTAL: %s\n", r.Total)
	buf.WriteString(escLeft)
	buf.WriteString(escBoldOff)

	buf.WriteString("\n")
	buf.WriteString(r.Footer + "\n")
	buf.WriteString(rule)
	buf.WriteString("\n\n")

	buf.WriteString(escCut)

	return buf.Bytes()
}
