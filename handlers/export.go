package handlers

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"traffic-sensor-stream/models"
)

const (
	readingsSheet = "readings"
	summarySheet  = "summary"
)

var sensorHeaders = [models.SensorCount]string{"Sensor 1 (cm)", "Sensor 2 (cm)", "Sensor 3 (cm)", "Sensor 4 (cm)"}

// BuildReadingsXLSX renders readings, one row each, plus a summary sheet.
func BuildReadingsXLSX(readings []models.StoredReading, window models.Window) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", readingsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}

	header := []any{"ID", "Recorded At", "Device Timestamp"}
	for _, h := range sensorHeaders {
		header = append(header, h)
	}
	if err := f.SetSheetRow(readingsSheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, r := range readings {
		row := []any{r.ID, r.RecordedAt.Format(time.RFC3339Nano), r.Timestamp, r.Sensor1, r.Sensor2, r.Sensor3, r.Sensor4}
		if err := f.SetSheetRow(readingsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}

	_ = f.SetCellValue(summarySheet, "A1", "Sensor Readings Export")
	_ = f.SetCellValue(summarySheet, "A3", "From")
	_ = f.SetCellValue(summarySheet, "B3", window.From.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "To")
	_ = f.SetCellValue(summarySheet, "B4", window.To.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Readings")
	_ = f.SetCellValue(summarySheet, "B5", len(readings))

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportPDF renders window statistics as a one-page report.
func BuildReportPDF(stats models.WindowStats, t models.Thresholds) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Traffic Sensor Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("From: %s", stats.TimeRange.From.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("To: %s", stats.TimeRange.To.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Readings: %d", stats.TotalReadings))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Alert thresholds: below %.2f cm or above %.2f cm", t.Min, t.Max))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Alerts: %d", stats.AlertsCount))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	for _, h := range []string{"Sensor", "Average", "Min", "Max"} {
		pdf.CellFormat(40, 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	avg, lo, hi := stats.AverageValues.Values(), stats.MinValues.Values(), stats.MaxValues.Values()
	for i := range avg {
		pdf.CellFormat(40, 6, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.2f", avg[i]), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.2f", lo[i]), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.2f", hi[i]), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
