// Package chart renders small inline SVG charts for dashboards.
package chart

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Defaults for dashboard charts.
const (
	DefaultWidth   = 640
	DefaultHeight  = 220
	DefaultPadding = 28.0
	DefaultTicks   = 4
)

// BarOpts customises the bar chart renderer.
type BarOpts struct {
	Title       string
	Description string
	Color       string
	AlertColor  string
	AxisColor   string
	GridColor   string
	// Marker draws a dashed horizontal reference line, e.g. a stock threshold.
	// Bars at or below it use AlertColor.
	Marker      float64
	MarkerLabel string
}

// Bars renders a single-series bar chart.
func Bars(width, height int, values []float64, labels []string, opts BarOpts) (template.HTML, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("chart: values required")
	}
	if len(values) != len(labels) {
		return "", fmt.Errorf("chart: labels length must match values")
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	padding := DefaultPadding
	plotW := float64(width) - 2*padding
	plotH := float64(height) - 2*padding
	if plotW <= 0 || plotH <= 0 {
		return "", fmt.Errorf("chart: viewport too small")
	}

	color := fallback(opts.Color, "#16a34a")
	alertColor := fallback(opts.AlertColor, "#dc2626")
	axisColor := fallback(opts.AxisColor, "#475569")
	gridColor := fallback(opts.GridColor, "#cbd5e1")

	maxVal := math.Max(opts.Marker, 0)
	for _, v := range values {
		maxVal = math.Max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}
	scale := plotH / maxVal
	bottom := padding + plotH

	titleID := makeID(opts.Title, "chart-title")
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s">`, width, height, titleID)
	fmt.Fprintf(&b, `<title id="%s">%s</title>`, titleID, template.HTMLEscapeString(fallback(opts.Title, "Bar chart")))
	if opts.Description != "" {
		fmt.Fprintf(&b, `<desc>%s</desc>`, template.HTMLEscapeString(opts.Description))
	}

	for i := 0; i <= DefaultTicks; i++ {
		ratio := float64(i) / DefaultTicks
		y := bottom - ratio*plotH
		fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" aria-hidden="true"></line>`, padding, y, padding+plotW, y, gridColor)
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`, padding-4, y+3, axisColor, formatTick(maxVal*ratio))
	}

	slot := plotW / float64(len(values))
	barW := slot * 0.6
	for i, v := range values {
		h := math.Max(v, 0) * scale
		x := padding + float64(i)*slot + (slot-barW)/2
		fill := color
		if opts.Marker > 0 && v <= opts.Marker {
			fill = alertColor
		}
		fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"><title>%s: %s</title></rect>`,
			x, bottom-h, barW, h, fill, template.HTMLEscapeString(labels[i]), formatTick(v))
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`,
			x+barW/2, bottom+14, axisColor, template.HTMLEscapeString(truncate(labels[i], 10)))
	}

	if opts.Marker > 0 {
		y := bottom - opts.Marker*scale
		fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-dasharray="4,3"></line>`, padding, y, padding+plotW, y, alertColor)
		if opts.MarkerLabel != "" {
			fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`, padding+plotW, y-3, alertColor, template.HTMLEscapeString(opts.MarkerLabel))
		}
	}

	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func makeID(title, suffix string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, strings.TrimSpace(title))
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}

func formatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	case abs == math.Trunc(abs):
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
