// Package export renders ticket collections as CSV or XLSX spreadsheets with
// a fixed column layout.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/eris-support/triage-service/internal/domain"
	apperrors "github.com/eris-support/triage-service/pkg/util/errorutil"
)

// Format is an output format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the name of the single worksheet in XLSX output.
const SheetName = "Заявки"

// DateLayout matches the ru-RU locale rendering used by the operator UI.
const DateLayout = "02.01.2006, 15:04:05"

const bom = "\ufeff"

// Headers is the fixed column order.
var Headers = []string{
	"ID", "Дата", "ФИО", "Объект", "Телефон", "Email",
	"Зав. номера", "Тип прибора", "Тональность", "Категория", "Суть вопроса", "Статус",
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", apperrors.NewInvalidInput("unknown export format", map[string]any{"format": s})
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename returns tickets_<YYYY-MM-DD>.<ext> for the UTC date of now.
func Filename(format Format, now time.Time) string {
	return fmt.Sprintf("tickets_%s.%s", now.UTC().Format("2006-01-02"), format)
}

// Serializer renders tickets with dates shown in a fixed zone.
type Serializer struct {
	loc *time.Location
}

// NewSerializer builds a serializer; nil loc means UTC.
func NewSerializer(loc *time.Location) *Serializer {
	if loc == nil {
		loc = time.UTC
	}
	return &Serializer{loc: loc}
}

// Rows returns the cell values for tickets, one row per ticket, without the
// header.
func (s *Serializer) Rows(tickets []domain.Ticket) [][]string {
	rows := make([][]string, 0, len(tickets))
	for _, t := range tickets {
		rows = append(rows, []string{
			t.ID,
			s.formatDate(t.DateReceived),
			t.FullName,
			t.Company,
			t.Phone,
			t.Email,
			strings.Join(t.DeviceSerials, "; "),
			t.DeviceType,
			SentimentLabel(t.Sentiment),
			CategoryLabel(t.Category),
			t.Summary,
			StatusLabel(t.Status),
		})
	}
	return rows
}

func (s *Serializer) formatDate(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(s.loc).Format(DateLayout)
}

// Serialize renders tickets in format.
func (s *Serializer) Serialize(tickets []domain.Ticket, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return s.CSV(tickets), nil
	case FormatXLSX:
		return s.XLSX(tickets)
	}
	return nil, apperrors.NewInvalidInput("unknown export format", map[string]any{"format": string(format)})
}

// CSV quotes every cell, doubles embedded quotes, joins rows with a bare
// newline and prefixes the payload with a UTF-8 byte order mark.
func (s *Serializer) CSV(tickets []domain.Ticket) []byte {
	var b strings.Builder
	b.WriteString(bom)
	writeCSVRow(&b, Headers)
	for _, row := range s.Rows(tickets) {
		b.WriteByte('\n')
		writeCSVRow(&b, row)
	}
	return []byte(b.String())
}

func writeCSVRow(b *strings.Builder, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(cell, `"`, `""`))
		b.WriteByte('"')
	}
}

// XLSX writes a workbook with one sheet holding the header and rows.
func (s *Serializer) XLSX(tickets []domain.Ticket) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	rows := append([][]string{Headers}, s.Rows(tickets)...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
