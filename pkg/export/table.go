package export

import (
	"fmt"
	"strings"
)

// Table is a titled document made of sections sharing one header row.
type Table struct {
	Title    string
	Headers  []string
	Sections []Section
}

// Section is a headed group of rows, such as one day of a timetable.
type Section struct {
	Heading string
	Rows    [][]string
}

// Format selects the rendered encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat accepts csv or pdf in any case; empty means csv.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "csv":
		return FormatCSV, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv"
}

func (f Format) Extension() string { return string(f) }

// Render encodes t in the requested format.
func Render(format Format, t Table) ([]byte, error) {
	switch format {
	case FormatCSV:
		return RenderCSV(t)
	case FormatPDF:
		return RenderPDF(t)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func (t Table) validate() error {
	if len(t.Headers) == 0 {
		return fmt.Errorf("table requires at least one header")
	}
	for _, section := range t.Sections {
		for _, row := range section.Rows {
			if len(row) != len(t.Headers) {
				return fmt.Errorf("section %q has a row with %d cells, want %d", section.Heading, len(row), len(t.Headers))
			}
		}
	}
	return nil
}
