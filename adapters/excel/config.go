package excel

// ColumnMap names the production columns of the sheet
type ColumnMap struct {
	Well string `json:"well"` // empty when the sheet holds a single well
	Date string `json:"date"`
	Oil  string `json:"oil"`
	Gas  string `json:"gas"`
}

// ReaderConfig holds configuration for a production data source
type ReaderConfig struct {
	FilePath string    `json:"file_path"`
	Sheet    string    `json:"sheet"` // empty reads the first sheet
	Columns  ColumnMap `json:"columns"`
}

// DefaultColumns returns the daily production headers of the Volve data set
func DefaultColumns() ColumnMap {
	return ColumnMap{
		Well: "NPD_WELL_BORE_NAME",
		Date: "DATEPRD",
		Oil:  "BORE_OIL_VOL",
		Gas:  "BORE_GAS_VOL",
	}
}

// DefaultReaderConfig returns defaults for the given file
func DefaultReaderConfig(filePath string) ReaderConfig {
	return ReaderConfig{
		FilePath: filePath,
		Columns:  DefaultColumns(),
	}
}
