package notify

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRequest carries the fields of a burn-event operator message.
type PaymentRequest struct {
	Requester   string
	Tokens      decimal.Decimal
	ProcessedAt time.Time
	ExplorerURL string
}

var paymentRequestTmpl = template.Must(template.New("payment_request").Parse(`<html>
<body>
  <p>You have a payment request from {{.Requester}}.</p>
  <p>The amount of tokens to be redeemed is {{.Tokens}}.</p>
  <p>The request was processed on {{.ProcessedAt.Format "2006-01-02 15:04:05 MST"}}.</p>
  <p>If you want to see more information about the transaction you can view it
  <a href="{{.ExplorerURL}}">here</a>.</p>
</body>
</html>
`))

// RenderPaymentRequest builds the operator message for a redemption.
func RenderPaymentRequest(recipient string, req PaymentRequest) (Message, error) {
	var body strings.Builder
	if err := paymentRequestTmpl.Execute(&body, req); err != nil {
		return Message{}, fmt.Errorf("render payment request: %w", err)
	}
	return Message{
		Subject:   "Payment Request Information",
		Recipient: recipient,
		Body:      body.String(),
	}, nil
}
