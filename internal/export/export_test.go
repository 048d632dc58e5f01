package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/m3rciful/synthbot/internal/experiments"
)

func sample() []experiments.Experiment {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	measured := experiments.Experiment{
		ID: "11111111-1111-1111-1111-111111111111", UserID: 1,
		EuConcentration: 1, PhenConcentration: 1, LigandConcentration: 3,
		LigandType: 2, PH: 11, AdditionVolume: 500, AdditionTime: 30, AdditionRate: 16.67,
		PredictedSize: 100, PredictedPdI: 0, CreatedAt: created,
	}
	measured.SetActuals(110, 0.2)
	pending := experiments.Experiment{
		ID: "22222222-2222-2222-2222-222222222222", UserID: 1,
		EuConcentration: 2, PhenConcentration: 2, LigandConcentration: 6,
		LigandType: 1, PH: 9, AdditionVolume: 340, AdditionTime: 34, AdditionRate: 10,
		PredictedSize: 80.5, PredictedPdI: 0.15, CreatedAt: created.Add(time.Hour),
	}
	return []experiments.Experiment{measured, pending}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])

	first := rows[1]
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", first[0])
	assert.Equal(t, "2024-03-01T09:00:00Z", first[1])
	assert.Equal(t, "110", first[12])
	assert.Equal(t, "10", first[14])
	assert.Equal(t, "", first[15], "zero prediction has no percentage difference")

	second := rows[2]
	assert.Equal(t, "80.5", second[10])
	assert.Equal(t, "", second[12])
	assert.Equal(t, "", second[14])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sample()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", rows[2][0])

	v, err := f.GetCellValue(sheetName, "K3")
	require.NoError(t, err)
	assert.Equal(t, "80.5", v)

	typ, err := f.GetCellType(sheetName, "K3")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ)
}

func TestFileName(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC)
	assert.Equal(t, "experiments_20240301_0905.csv", FileName("csv", now))
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"2026-3-1", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"01.03.2026 08:15", time.Date(2026, 3, 1, 8, 15, 0, 0, time.UTC), true},
		{"7d", now.AddDate(0, 0, -7), true},
		{"2W", now.AddDate(0, 0, -14), true},
		{"0d", time.Time{}, false},
		{"yesterday", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tc := range cases {
		got, ok := ParseSince(tc.in, now, time.UTC)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.True(t, tc.want.Equal(got), "%s: got %s", tc.in, got)
	}
}
