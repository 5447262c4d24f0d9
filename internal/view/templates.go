package view

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/grocerops/grocerops/internal/shared"
	"github.com/grocerops/grocerops/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Principal   shared.Principal
	Permissions map[string]bool
	Data        any
}

// SignedIn reports whether the page is rendered for an authenticated user.
func (d TemplateData) SignedIn() bool {
	return d.Principal.ID != ""
}

// Can reports whether the current user holds perm.
func (d TemplateData) Can(perm string) bool {
	return d.Permissions[perm]
}

// NewEngine parses templates at build-time. Money is rendered in the given
// ISO 4217 currency.
func NewEngine(currencyCode string) (*Engine, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(currencyCode)))
	if err != nil {
		return nil, fmt.Errorf("view: currency %q: %w", currencyCode, err)
	}
	printer := message.NewPrinter(language.English)
	symbol := printer.Sprint(currency.Symbol(unit))
	title := cases.Title(language.English)

	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"formatDay": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.Format("02 Jan 2006")
		},
		"isoDay": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"money": func(d decimal.Decimal) string {
			return FormatMoney(printer, symbol, d)
		},
		"number": func(v any) string {
			return printer.Sprint(v)
		},
		"title": func(v any) string {
			return title.String(strings.ReplaceAll(fmt.Sprint(v), "_", " "))
		},
		"statusClass": StatusClass,
		"add": func(a, b int) int { return a + b },
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates,
		"templates/layouts/*.html",
		"templates/partials/*.html",
		"templates/pages/*/*.html",
	)
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}

// RenderString executes a named template into a string, used for PDF sources.
func (e *Engine) RenderString(name string, data TemplateData) (string, error) {
	if e == nil {
		return "", fmt.Errorf("template engine not initialised")
	}
	var b strings.Builder
	if err := e.templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// FormatMoney renders d with two decimals and locale digit grouping.
func FormatMoney(p *message.Printer, symbol string, d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	rounded := d.Round(2)
	whole := rounded.Truncate(0)
	cents := rounded.Sub(whole).Shift(2).IntPart()
	return fmt.Sprintf("%s%s%s.%02d", sign, symbol, p.Sprintf("%d", whole.IntPart()), cents)
}

// StatusClass maps workflow states and alert severities to badge classes.
// It accepts any string-like value so typed statuses render directly.
func StatusClass(status any) string {
	switch strings.ToLower(fmt.Sprint(status)) {
	case "approved", "delivered", "paid", "success", "completed", "in_stock":
		return "badge-ok"
	case "pending", "warning", "low_stock", "expiring_soon", "created":
		return "badge-warn"
	case "rejected", "cancelled", "failed", "critical", "out_of_stock", "expired":
		return "badge-danger"
	case "shipped", "info":
		return "badge-info"
	}
	return "badge-muted"
}

// Option is a select box entry.
type Option struct {
	Value string
	Label string
}
