package export

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

var loiTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"money": formatMoney,
	}

	loiTemplate = template.Must(template.New("loi").Funcs(funcMap).Parse(loiTemplateHTML))
}

// formatMoney renders cents as a dollar amount.
func formatMoney(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// RenderLOIHTML renders the letter of intent template with provided data
func RenderLOIHTML(data LOIData) (string, error) {
	var buf bytes.Buffer
	if err := loiTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const loiTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Letter of Intent — {{.ListingTitle}}</title>
  <style>
    body { font-family: Georgia, 'Times New Roman', serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; color: #222; }
    h1 { border-bottom: 2px solid #222; padding-bottom: 0.5rem; font-size: 1.6rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { border-collapse: collapse; width: 100%; margin: 1.5rem 0; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border-bottom: 1px solid #ddd; }
    th { width: 40%; color: #444; font-weight: normal; }
    .conditions { background: #f7f7f5; padding: 1rem; margin: 1rem 0; border-left: 3px solid #222; }
    .status { text-transform: uppercase; letter-spacing: 0.05em; font-size: 0.85em; }
  </style>
</head>
<body>
  <h1>Letter of Intent</h1>
  <div class="meta">
    {{.ListingTitle}} | Prepared {{formatDate .CreatedAt "Jan 2, 2006"}} |
    <span class="status">{{.Status}}</span>
  </div>

  <p>{{.BuyerName}} proposes to acquire the business listed as
  <strong>{{.ListingTitle}}</strong> from {{.SellerName}} on the terms below.</p>

  <table>
    <tr><th>Offer price</th><td>{{money .OfferPrice}}</td></tr>
    <tr><th>Cash at close</th><td>{{money .CashAmount}}</td></tr>
    <tr><th>Earnout</th><td>{{money .EarnoutAmount}}</td></tr>
    <tr><th>Due diligence period</th><td>{{.DueDiligenceDays}} days</td></tr>
    <tr><th>Exclusivity period</th><td>{{.ExclusivityDays}} days</td></tr>
    <tr><th>Offer expires</th><td>{{formatDate .ExpirationDate "Jan 2, 2006"}}</td></tr>
  </table>

  {{if .Conditions}}
  <h2>Conditions</h2>
  <div class="conditions">
    <ul>
      {{range .Conditions}}<li>{{.}}</li>{{end}}
    </ul>
  </div>
  {{end}}

  <p>This letter is non-binding and is an expression of intent only. Definitive
  terms are subject to due diligence and a signed purchase agreement.</p>
</body>
</html>`
