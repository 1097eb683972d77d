package report

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"portfolio-tracker/internal/atomicfile"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Format selects how a report is written.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "text", "txt", "":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// Text renders the export layout: one line per position, then totals.
func Text(r Report) string {
	var b strings.Builder
	b.WriteString(Title + "\n\n")
	for _, row := range r.Rows {
		if row.Malformed {
			fmt.Fprintf(&b, "%s - invalid entry, P/L: %s\n", row.Ticker, r.Money(row.ProfitLoss))
			continue
		}
		fmt.Fprintf(&b, "%s - Buy: %s, Current: %s, Qty: %d, P/L: %s\n",
			row.Ticker, r.Money(row.BuyPrice), r.Money(row.CurrentPrice), row.Quantity, r.Money(row.ProfitLoss))
	}
	fmt.Fprintf(&b, "\nTotal Portfolio Value: %s\n", r.Money(r.TotalValue))
	fmt.Fprintf(&b, "Overall Profit/Loss: %s\n", r.Money(r.TotalProfitLoss))
	return b.String()
}

// Overview renders the on-screen profit/loss summary.
func Overview(r Report) string {
	var b strings.Builder
	for _, row := range r.Rows {
		if row.Malformed {
			fmt.Fprintf(&b, "%s: invalid entry, Profit/Loss %s\n", row.Ticker, r.Money(row.ProfitLoss))
			continue
		}
		fmt.Fprintf(&b, "%s: Buy %s, Current %s, Quantity %d, Profit/Loss %s\n",
			row.Ticker, r.Money(row.BuyPrice), r.Money(row.CurrentPrice), row.Quantity, r.Money(row.ProfitLoss))
	}
	fmt.Fprintf(&b, "\nTotal Portfolio Value: %s\n", r.Money(r.TotalValue))
	fmt.Fprintf(&b, "Overall Profit/Loss: %s", r.Money(r.TotalProfitLoss))
	return b.String()
}

// Markdown renders the report as a GitHub flavoured Markdown document.
func Markdown(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", Title)
	fmt.Fprintf(&b, "Generated %s (report %s)\n\n", r.GeneratedAt.Format("2006-01-02 15:04"), r.ID)
	b.WriteString("| Ticker | Buy | Current | Qty | P/L |\n")
	b.WriteString("|---|---:|---:|---:|---:|\n")
	for _, row := range r.Rows {
		if row.Malformed {
			fmt.Fprintf(&b, "| %s | - | - | - | %s |\n", escapeCell(row.Ticker), r.Money(row.ProfitLoss))
			continue
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %s |\n",
			escapeCell(row.Ticker), r.Money(row.BuyPrice), r.Money(row.CurrentPrice), row.Quantity, r.Money(row.ProfitLoss))
	}
	fmt.Fprintf(&b, "\n**Total Portfolio Value:** %s\n\n", r.Money(r.TotalValue))
	fmt.Fprintf(&b, "**Overall Profit/Loss:** %s (%s)\n", r.Money(r.TotalProfitLoss), r.Tone())
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// HTML renders the Markdown report as a standalone HTML page.
func HTML(r Report) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(r)), &body); err != nil {
		return nil, fmt.Errorf("failed to convert report to HTML: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n</head>\n<body>\n", Title)
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// Terminal renders the Markdown report with ANSI styling for a terminal.
func Terminal(r Report, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create terminal renderer: %w", err)
	}
	return renderer.Render(Markdown(r))
}

// Render encodes r in the given format.
func Render(r Report, format Format) ([]byte, error) {
	switch format {
	case FormatText:
		return []byte(Text(r)), nil
	case FormatMarkdown:
		return []byte(Markdown(r)), nil
	case FormatHTML:
		return HTML(r)
	}
	return nil, fmt.Errorf("unknown report format %q", format)
}

// WriteFile renders r and atomically replaces path with the result.
func WriteFile(path string, r Report, format Format) error {
	data, err := Render(r, format)
	if err != nil {
		return err
	}
	if err := atomicfile.WriteFile(path, data, os.FileMode(0o644)); err != nil {
		return fmt.Errorf("failed to export report: %w", err)
	}
	return nil
}
