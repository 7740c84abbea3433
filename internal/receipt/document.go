package receipt

import (
	"bytes"
	"fmt"
	"html/template"
)

// documentTmpl is an 80mm-equivalent print-ready page. Layout only: all
// content comes from the shared Receipt assembly.
var documentTmpl = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>{{.StoreName}} - Pedido</title>
<style>
  @page { size: 80mm auto; margin: 4mm; }
  body { width: 72mm; margin: 0 auto; font-family: "Courier New", monospace; font-size: 12px; color: #000; }
  .center { text-align: center; }
  .bold { font-weight: bold; }
  hr { border: 0; border-top: 1px dashed #000; margin: 4px 0; }
  .item-price { padding-left: 12px; }
  .total { font-size: 14px; }
</style>
</head>
<body onload="window.print()">
<div class="center">
  <div class="bold">{{.StoreName}}</div>
  <div>{{.Tagline}}</div>
</div>
<hr>
{{range .Fields}}<div>{{.Label}}: {{.Value}}</div>
{{end}}{{if .Note}}<hr>
<div class="bold">OBSERVACOES:</div>
<div>{{.Note}}</div>
{{end}}<hr>
<div class="bold">ITENS DO PEDIDO</div>
{{range .Items}}<div>{{.Quantity}}x {{.Name}}</div>
<div class="item-price">{{.Subtotal}}</div>
{{end}}<hr>
<div class="center bold total">TOTAL: {{.Total}}</div>
<div class="center">{{.Footer}}</div>
</body>
</html>
`))

// EncodeDocument encodes the receipt as a self-contained HTML page sized
// for 80mm paper, suitable for a generic browser print dialog.
func EncodeDocument(r Receipt) ([]byte, error) {
	var buf bytes.Buffer
	if err := documentTmpl.Execute(&buf, r); err != nil {
		return nil, fmt.Errorf("rendering receipt document: %w", err)
	}
	return buf.Bytes(), nil
}
