// Package export serializes experiments as CSV or XLSX tables.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/m3rciful/synthbot/internal/experiments"
)

// Columns is the header row shared by both formats.
var Columns = []string{
	"id", "created_at",
	"eu_concentration", "phen_concentration", "ligand_concentration", "ligand_type", "ph",
	"addition_volume", "addition_time", "addition_rate",
	"predicted_size", "predicted_pdi", "actual_size", "actual_pdi",
	"size_diff_pct", "pdi_diff_pct",
}

const sheetName = "Experiments"

// values returns one row; missing measurements and undefined differences are nil.
func values(e *experiments.Experiment) []any {
	row := []any{
		e.ID, e.CreatedAt.UTC().Format(time.RFC3339),
		e.EuConcentration, e.PhenConcentration, e.LigandConcentration, e.LigandType, e.PH,
		e.AdditionVolume, e.AdditionTime, e.AdditionRate,
		e.PredictedSize, e.PredictedPdI,
		nil, nil, nil, nil,
	}
	if e.ActualSize != nil {
		row[12] = *e.ActualSize
		if d, ok := experiments.PercentDiff(e.PredictedSize, *e.ActualSize); ok {
			row[14] = d
		}
	}
	if e.ActualPdI != nil {
		row[13] = *e.ActualPdI
		if d, ok := experiments.PercentDiff(e.PredictedPdI, *e.ActualPdI); ok {
			row[15] = d
		}
	}
	return row
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// WriteCSV writes a header row followed by one row per experiment.
func WriteCSV(w io.Writer, exps []experiments.Experiment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	rec := make([]string, len(Columns))
	for i := range exps {
		for j, v := range values(&exps[i]) {
			rec[j] = cell(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a single-sheet workbook with numeric cells.
func WriteXLSX(w io.Writer, exps []experiments.Experiment) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetRowStyle(sheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetColWidth(sheetName, "A", "A", 38); err != nil {
		return fmt.Errorf("column width: %w", err)
	}
	if err := f.SetColWidth(sheetName, "B", "B", 22); err != nil {
		return fmt.Errorf("column width: %w", err)
	}

	for i := range exps {
		row := values(&exps[i])
		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, addr, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// FileName returns a timestamped file name such as experiments_20240301_0900.csv.
func FileName(ext string, now time.Time) string {
	return fmt.Sprintf("experiments_%s.%s", now.UTC().Format("20060102_1504"), ext)
}
