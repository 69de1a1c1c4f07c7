package excel

// RawRowData represents a row of raw sheet data keyed by header
type RawRowData map[string]string

// ExcelData represents the complete sheet
type ExcelData struct {
	Source  string       // file the sheet was read from
	Sheet   string       // empty for csv
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// HasColumn reports whether the header row contains name
func (d *ExcelData) HasColumn(name string) bool {
	for _, h := range d.Headers {
		if h == name {
			return true
		}
	}
	return false
}
