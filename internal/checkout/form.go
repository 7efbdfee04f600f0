package checkout

import (
	"bytes"
	"html"
	"html/template"
	"net/url"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const checkoutScript = "https://checkout.razorpay.com/v1/checkout.js"

// FormData holds everything the checkout.js form needs.
type FormData struct {
	CallbackURL string
	InvoiceID   int64
	InvoiceHash string
	KeyID       string
	OrderID     string
	Amount      int64
	Currency    string
	BuyerName   string
	BuyerEmail  string
}

type formView struct {
	Action     string
	Script     string
	KeyID      string
	Amount     int64
	Currency   string
	OrderID    string
	InvoiceID  int64
	BuyerName  string
	BuyerEmail string
}

var formTemplate = template.Must(template.New("checkout").Parse(`<form action="{{.Action}}" method="POST">
  <script src="{{.Script}}"
          data-key="{{.KeyID}}"
          data-amount="{{.Amount}}"
          data-currency="{{.Currency}}"
          data-order_id="{{.OrderID}}"
          data-buttontext="Pay with Razorpay"
          data-name="Invoice #{{.InvoiceID}}"
          data-description="Payment for Invoice #{{.InvoiceID}}"
          data-prefill.name="{{.BuyerName}}"
          data-prefill.email="{{.BuyerEmail}}"
          data-theme.color="#3399cc"></script>
  <input type="hidden" name="invoice_id" value="{{.InvoiceID}}">
</form>`))

var textPolicy = bluemonday.StrictPolicy()

// RenderForm renders the checkout form. Buyer fields are stripped of markup
// and then escaped by the template.
func RenderForm(data FormData) (string, error) {
	view := formView{
		Action:     formAction(data.CallbackURL, data.InvoiceHash),
		Script:     checkoutScript,
		KeyID:      data.KeyID,
		Amount:     data.Amount,
		Currency:   data.Currency,
		OrderID:    data.OrderID,
		InvoiceID:  data.InvoiceID,
		BuyerName:  plainText(data.BuyerName),
		BuyerEmail: plainText(data.BuyerEmail),
	}

	var buf bytes.Buffer
	if err := formTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formAction appends the redirect flag and invoice hash so the callback
// handler can send the payer back to the invoice page.
func formAction(callbackURL, invoiceHash string) string {
	sep := "?"
	if strings.Contains(callbackURL, "?") {
		sep = "&"
	}
	q := url.Values{}
	q.Set("redirect", strconv.Itoa(1))
	q.Set("invoice_hash", invoiceHash)
	return callbackURL + sep + q.Encode()
}

func plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}
