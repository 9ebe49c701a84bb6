package notify

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/goliatone/go-checkout/core"
)

var confirmationTemplate = template.Must(template.New("order_confirmation").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Helvetica, Arial, sans-serif; color: #111827;">
    <h1>Thank you for your order!</h1>
    <p>We are preparing your order and will let you know once it ships.</p>
    <table role="presentation" cellpadding="4">
      <tr><td><strong>Order ID</strong></td><td>{{ .OrderID }}</td></tr>
      <tr><td><strong>Order date</strong></td><td>{{ .OrderDate }}</td></tr>
    </table>
    <h2>Shipping to</h2>
    <p>
      {{- with .ShippingAddress }}
      {{ if .Name }}{{ .Name }}<br>{{ end }}
      {{ if .Street }}{{ .Street }}<br>{{ end }}
      {{ .City }}{{ if .State }}, {{ .State }}{{ end }} {{ .PostalCode }}<br>
      {{ .Country }}
      {{- end }}
    </p>
  </body>
</html>
`))

// RenderConfirmation renders the HTML body of an order confirmation email.
func RenderConfirmation(confirmation core.OrderConfirmation) (string, error) {
	var buf bytes.Buffer
	if err := confirmationTemplate.Execute(&buf, confirmation); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
