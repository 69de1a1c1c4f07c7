package excel

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"welldecline/internal/errors"
)

func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "production.xlsx")

	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		require.NoError(t, f.SetSheetName("Sheet1", sheet))
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	return path
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestReadRecords_Workbook(t *testing.T) {
	path := writeWorkbook(t, "Daily Production Data", [][]interface{}{
		{"DATEPRD", "NPD_WELL_BORE_NAME", "BORE_OIL_VOL", "BORE_GAS_VOL"},
		{day(2008, 7, 14), "15/9-F-14", 510.5, 76000.0},
		{day(2008, 7, 13), "15/9-F-14", 600.0, 90000.0},
		{day(2008, 7, 13), "15/9-F-12", 300.0, nil},
		{day(2008, 7, 15), "15/9-F-14", "n/a", 75000.0},
	})

	reader := NewDataReader(DefaultReaderConfig(path), zerolog.Nop())
	records, err := reader.ReadRecords()
	require.NoError(t, err)
	require.Len(t, records, 4)

	// sorted by well, then date
	assert.Equal(t, "15/9-F-12", records[0].Well)
	assert.True(t, math.IsNaN(records[0].Gas), "blank gas cell is NaN")

	assert.Equal(t, "15/9-F-14", records[1].Well)
	assert.Equal(t, day(2008, 7, 13), records[1].Date)
	assert.Equal(t, 600.0, records[1].Oil)
	assert.Equal(t, day(2008, 7, 14), records[2].Date)
	assert.Equal(t, 510.5, records[2].Oil)
	assert.True(t, math.IsNaN(records[3].Oil), "text volume is NaN")

	assert.Equal(t, []string{"15/9-F-12", "15/9-F-14"}, Wells(records))
}

func TestReadData_NamedSheet(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]interface{}{
		{"DATEPRD", "BORE_OIL_VOL", "BORE_GAS_VOL"},
		{day(2010, 1, 1), 10.0, 20.0},
	})

	config := DefaultReaderConfig(path)
	config.Sheet = "Sheet1"
	data, err := NewDataReader(config, zerolog.Nop()).ReadData()
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", data.Sheet)
	assert.Equal(t, []string{"DATEPRD", "BORE_OIL_VOL", "BORE_GAS_VOL"}, data.Headers)
	require.Len(t, data.Rows, 1)

	config.Sheet = "Missing"
	_, err = NewDataReader(config, zerolog.Nop()).ReadData()
	assert.Error(t, err)
}

func TestReadRecords_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "production.csv")
	content := "well,date,oil,gas\n" +
		"A-1,2014-03-02,100,1000\n" +
		"A-1,01.03.2014,120.5,\n" +
		"A-1,,90,900\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config := DefaultReaderConfig(path)
	config.Columns = ColumnMap{Well: "well", Date: "date", Oil: "oil", Gas: "gas"}
	records, err := NewDataReader(config, zerolog.Nop()).ReadRecords()
	require.NoError(t, err)

	// the undated row is skipped
	require.Len(t, records, 2)
	assert.Equal(t, day(2014, 3, 1), records[0].Date)
	assert.Equal(t, 120.5, records[0].Oil)
	assert.True(t, math.IsNaN(records[0].Gas))
	assert.Equal(t, day(2014, 3, 2), records[1].Date)
}

func TestReadRecords_SingleWellWithoutWellColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "single.csv")
	require.NoError(t, os.WriteFile(path, []byte("DATEPRD,BORE_OIL_VOL,BORE_GAS_VOL\n2016-01-01,5,6\n"), 0o644))

	config := DefaultReaderConfig(path)
	config.Columns.Well = ""
	records, err := NewDataReader(config, zerolog.Nop()).ReadRecords()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Well)
}

func TestReadRecords_Errors(t *testing.T) {
	missing := NewDataReader(DefaultReaderConfig(filepath.Join(t.TempDir(), "none.xlsx")), zerolog.Nop())
	_, err := missing.ReadRecords()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "columns.csv")
	require.NoError(t, os.WriteFile(path, []byte("DATEPRD,OIL\n2016-01-01,5\n"), 0o644))
	_, err = NewDataReader(DefaultReaderConfig(path), zerolog.Nop()).ReadRecords()
	require.Error(t, err)
	assert.True(t, errors.IsInvalidData(err))

	headerOnly := filepath.Join(t.TempDir(), "header.csv")
	require.NoError(t, os.WriteFile(headerOnly, []byte("DATEPRD,BORE_OIL_VOL,BORE_GAS_VOL\n"), 0o644))
	_, err = NewDataReader(DefaultReaderConfig(headerOnly), zerolog.Nop()).ReadRecords()
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"39642", day(2008, 7, 13)},
		{"39642.5", day(2008, 7, 13)},
		{"2008-07-13", day(2008, 7, 13)},
		{"2008-07-13 06:00:00", day(2008, 7, 13)},
		{"13.07.2008", day(2008, 7, 13)},
		{"13-Jul-08", day(2008, 7, 13)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseDate("")
	assert.Error(t, err)
	_, err = parseDate("yesterday")
	assert.Error(t, err)
}
