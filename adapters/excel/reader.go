package excel

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"

	"welldecline/domain/production"
	"welldecline/internal/errors"
)

// Layouts tried after the common formats understood by cast
var dateLayouts = []string{
	"02.01.2006",
	"2.1.2006",
	"1/2/2006",
	"1/2/06",
	"02-Jan-06",
	"2-Jan-2006",
	"2006/01/02",
}

// DataReader handles reading production workbooks and CSV exports
type DataReader struct {
	config   ReaderConfig
	fileType string // "xlsx" or "csv"
	logger   zerolog.Logger
}

// NewDataReader creates a reader that picks xlsx or csv by file extension
func NewDataReader(config ReaderConfig, logger zerolog.Logger) *DataReader {
	ext := strings.ToLower(filepath.Ext(config.FilePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{
		config:   config,
		fileType: fileType,
		logger:   logger.With().Str("component", "excel").Str("file", config.FilePath).Logger(),
	}
}

// ReadData reads the sheet into header-keyed string rows
func (r *DataReader) ReadData() (*ExcelData, error) {
	r.logger.Debug().Str("type", r.fileType).Msg("reading production data")

	if _, err := os.Stat(r.config.FilePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.config.FilePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	default:
		return r.readExcelData()
	}
}

// readExcelData reads raw cell values so that date cells arrive as serials
func (r *DataReader) readExcelData() (*ExcelData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	r.logger.Debug().Str("sheet", sheet).Int("rows", len(rows)).Dur("elapsed", time.Since(startTime)).Msg("sheet read")

	if len(rows) < 2 {
		return nil, fmt.Errorf("Excel file must have at least a header row and one data row")
	}

	data := r.processRows(rows)
	data.Sheet = sheet
	return data, nil
}

// readCSVData reads CSV data into structured format
func (r *DataReader) readCSVData() (*ExcelData, error) {
	file, err := os.Open(r.config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	startTime := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	r.logger.Debug().Int("rows", len(rows)).Dur("elapsed", time.Since(startTime)).Msg("csv read")

	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV file must have at least a header row and one data row")
	}

	return r.processRows(rows), nil
}

// processRows converts raw string rows into ExcelData format
func (r *DataReader) processRows(rows [][]string) *ExcelData {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rowData := make(RawRowData, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	return &ExcelData{
		Source:  r.config.FilePath,
		Headers: headers,
		Rows:    dataRows,
	}
}

// ReadRecords reads the sheet and converts it to production records sorted
// by well and date. Blank or unparsable volume cells become NaN; rows
// without a parsable date are skipped.
func (r *DataReader) ReadRecords() ([]production.Record, error) {
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	return r.ToRecords(data)
}

// ToRecords converts string rows using the configured column map
func (r *DataReader) ToRecords(data *ExcelData) ([]production.Record, error) {
	cols := r.config.Columns
	for _, name := range []string{cols.Date, cols.Oil, cols.Gas} {
		if !data.HasColumn(name) {
			return nil, errors.InvalidData(fmt.Sprintf("column %q not found in %s", name, data.Source))
		}
	}
	wellColumn := cols.Well
	if wellColumn != "" && !data.HasColumn(wellColumn) {
		return nil, errors.InvalidData(fmt.Sprintf("well column %q not found in %s", wellColumn, data.Source))
	}

	records := make([]production.Record, 0, len(data.Rows))
	skipped, badVolumes := 0, 0
	for _, row := range data.Rows {
		date, err := parseDate(row[cols.Date])
		if err != nil {
			skipped++
			continue
		}
		oil, ok := parseVolume(row[cols.Oil])
		if !ok {
			badVolumes++
		}
		gas, ok := parseVolume(row[cols.Gas])
		if !ok {
			badVolumes++
		}

		rec := production.Record{Date: date, Oil: oil, Gas: gas}
		if wellColumn != "" {
			rec.Well = row[wellColumn]
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Well != records[j].Well {
			return records[i].Well < records[j].Well
		}
		return records[i].Date.Before(records[j].Date)
	})

	r.logger.Info().
		Int("rows", len(data.Rows)).
		Int("records", len(records)).
		Int("skipped_dates", skipped).
		Int("unparsable_volumes", badVolumes).
		Msg("production records loaded")

	if len(records) == 0 {
		return nil, errors.InvalidData(fmt.Sprintf("no dated production rows in %s", data.Source))
	}
	return records, nil
}

// Wells lists the distinct well names in first-seen order
func Wells(records []production.Record) []string {
	seen := make(map[string]bool)
	var wells []string
	for _, rec := range records {
		if !seen[rec.Well] {
			seen[rec.Well] = true
			wells = append(wells, rec.Well)
		}
	}
	return wells
}

// parseDate accepts Excel serial dates and common text layouts, truncated
// to the calendar day in UTC.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	var t time.Time
	if serial, err := cast.ToFloat64E(s); err == nil {
		t, err = excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
	} else if parsed, err := cast.ToTimeE(s); err == nil {
		t = parsed
	} else {
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				t = parsed
				break
			}
		}
		if t.IsZero() {
			return time.Time{}, fmt.Errorf("unrecognised date %q", s)
		}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// parseVolume returns NaN for blank cells; ok is false only for cells that
// hold something other than a number.
func parseVolume(s string) (float64, bool) {
	if s == "" {
		return math.NaN(), true
	}
	v, err := cast.ToFloat64E(s)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}
