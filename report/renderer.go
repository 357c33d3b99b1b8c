package report

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ledgerline/ledgerline/internal/documents"
)

// LinesPerPage is how many document lines fit on one printed page.
const LinesPerPage = 25

//go:embed templates/*.html
var templates embed.FS

// PDFClient exposes the subset of the report client used by the renderer.
type PDFClient interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// DocumentRenderer prints document snapshots via html/template + Gotenberg.
type DocumentRenderer struct {
	tpl    *template.Template
	client PDFClient
}

type page struct {
	Number int
	Lines  []documents.SnapshotLine
	Last   bool
}

type view struct {
	Title    string
	Snapshot documents.Snapshot
	Pages    []page
	Total    int
}

// NewDocumentRenderer parses the document template.
func NewDocumentRenderer(client PDFClient) (*DocumentRenderer, error) {
	if client == nil {
		return nil, fmt.Errorf("document renderer: pdf client required")
	}
	printer := message.NewPrinter(language.English)
	funcMap := template.FuncMap{
		"money": func(symbol string, v decimal.Decimal) string {
			return symbol + " " + formatAmount(printer, v)
		},
		"amount": func(v decimal.Decimal) string {
			return formatAmount(printer, v)
		},
		"percent": func(v decimal.Decimal) string {
			return v.StringFixed(2) + "%"
		},
		"deref": func(t *time.Time) time.Time {
			if t == nil {
				return time.Time{}
			}
			return *t
		},
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006")
		},
	}
	tpl, err := template.New("document.html").Funcs(funcMap).ParseFS(templates, "templates/document.html")
	if err != nil {
		return nil, err
	}
	return &DocumentRenderer{tpl: tpl, client: client}, nil
}

// RenderHTML executes the template for snap.
func (r *DocumentRenderer) RenderHTML(snap documents.Snapshot) (string, error) {
	if r == nil || r.tpl == nil {
		return "", fmt.Errorf("document renderer not initialised")
	}
	pages := paginate(snap.Lines)
	data := view{
		Title:    cases.Title(language.English).String(string(snap.Document.Type)),
		Snapshot: snap,
		Pages:    pages,
		Total:    len(pages),
	}
	buf := &bytes.Buffer{}
	if err := r.tpl.Execute(buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderPDF implements documents.Renderer.
func (r *DocumentRenderer) RenderPDF(ctx context.Context, snap documents.Snapshot) ([]byte, error) {
	html, err := r.RenderHTML(snap)
	if err != nil {
		return nil, err
	}
	return r.client.RenderHTML(ctx, html)
}

// paginate always yields at least one page so totals are printed.
func paginate(lines []documents.SnapshotLine) []page {
	var pages []page
	for start := 0; start < len(lines); start += LinesPerPage {
		end := min(start+LinesPerPage, len(lines))
		pages = append(pages, page{Number: len(pages) + 1, Lines: lines[start:end]})
	}
	if len(pages) == 0 {
		pages = append(pages, page{Number: 1})
	}
	pages[len(pages)-1].Last = true
	return pages
}

// formatAmount groups thousands without going through float64.
func formatAmount(p *message.Printer, v decimal.Decimal) string {
	fixed := v.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return v.StringFixed(2)
	}
	sign := ""
	if v.IsNegative() {
		sign = "-"
	}
	return sign + p.Sprintf("%d", n) + "." + frac
}
