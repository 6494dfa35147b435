package domain

import (
	"strconv"
	"strings"
	"time"
)

// Date layouts shared by exporters and the HTTP layer
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02T15:04:05"
)

// Column is one named cell of a record. Value is nil when the cell is null.
type Column struct {
	Name    string
	Value   any
	Numeric bool
}

// Record is implemented by every table row the pipeline validates or exports
type Record interface {
	Columns() []Column
	RecordDate() time.Time
}

// IsNull reports whether the cell holds no value
func (c Column) IsNull() bool {
	return c.Value == nil
}

// Float returns the numeric value of the cell
func (c Column) Float() (float64, bool) {
	switch v := c.Value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Format renders the cell for text sinks. Null cells render as an empty string.
func (c Column) Format() string {
	switch v := c.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 {
			return v.Format(DateLayout)
		}
		return v.Format(TimestampLayout)
	}
	return ""
}

// ColumnNames lists the column names of a record
func ColumnNames(r Record) []string {
	cols := r.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// RowKey identifies a full row; two rows with equal keys are duplicates
func RowKey(r Record) string {
	var b strings.Builder
	for _, c := range r.Columns() {
		if c.IsNull() {
			b.WriteByte(0)
		} else {
			b.WriteString(c.Format())
		}
		b.WriteByte(0x1f)
	}
	return b.String()
}

func floatColumn(name string, v *float64) Column {
	if v == nil {
		return Column{Name: name, Numeric: true}
	}
	return Column{Name: name, Value: *v, Numeric: true}
}

func intColumn(name string, v *int) Column {
	if v == nil {
		return Column{Name: name, Numeric: true}
	}
	return Column{Name: name, Value: *v, Numeric: true}
}

func stringColumn(name string, v *string) Column {
	if v == nil {
		return Column{Name: name}
	}
	return Column{Name: name, Value: *v}
}

func timeColumn(name string, t time.Time) Column {
	if t.IsZero() {
		return Column{Name: name}
	}
	return Column{Name: name, Value: t}
}
