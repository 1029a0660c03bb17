package export

import (
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/icubam/icubam/internal/shared/constants"
)

// Format is an output encoding of /db.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
	FormatXLSX Format = "xlsx"
)

var ErrUnknownFormat = fmt.Errorf("unknown format")

// ParseFormat defaults to csv.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatHTML, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return constants.ContentTypeHTML
	case FormatXLSX:
		return constants.ContentTypeXLSX
	default:
		return constants.ContentTypeCSV
	}
}

// FileName is the attachment name, e.g. bedcounts_2020-04-01_10h30.csv.
// HTML is rendered inline and has none.
func (f Format) FileName(t *Table, now time.Time) string {
	if f == FormatHTML {
		return ""
	}
	return fmt.Sprintf("%s_%s.%s", t.Name, now.Format("2006-01-02_15h04"), f)
}

// Write encodes t to w in format f.
func Write(w io.Writer, f Format, t *Table) error {
	switch f {
	case FormatHTML:
		return WriteHTML(w, t)
	case FormatXLSX:
		return WriteXLSX(w, t)
	default:
		return WriteCSV(w, t)
	}
}

func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write csv rows: %w", err)
	}
	return nil
}

var tableTemplate = template.Must(template.New("table").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Name}}</title></head>
<body>
<table>
<thead><tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Rows}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

func WriteHTML(w io.Writer, t *Table) error {
	if err := tableTemplate.Execute(w, t); err != nil {
		return fmt.Errorf("failed to render html table: %w", err)
	}
	return nil
}

// WriteXLSX writes a single-sheet workbook. Counter, coordinate and id
// columns are stored as numbers.
func WriteXLSX(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Name
	if sheet == "" {
		sheet = "data"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	numeric := make([]bool, len(t.Header))
	for i, name := range t.Header {
		numeric[i] = isNumericColumn(name)
	}

	if err := setRow(f, sheet, 1, toCells(t.Header, nil)); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(t.Header), 1)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	for i, row := range t.Rows {
		if err := setRow(f, sheet, i+2, toCells(row, numeric)); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to set row %d: %w", row, err)
	}
	return nil
}

func isNumericColumn(name string) bool {
	switch name {
	case "id", "lat", "long":
		return true
	}
	return strings.HasPrefix(name, "n_")
}

func toCells(values []string, numeric []bool) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
		if i >= len(numeric) || !numeric[i] {
			continue
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			cells[i] = n
		}
	}
	return cells
}
