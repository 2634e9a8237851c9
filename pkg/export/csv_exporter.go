package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// RenderCSV flattens the table; the section heading becomes the first column.
func RenderCSV(t Table) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	header := append([]string{"section"}, t.Headers...)
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, section := range t.Sections {
		for _, row := range section.Rows {
			record := append([]string{section.Heading}, row...)
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
