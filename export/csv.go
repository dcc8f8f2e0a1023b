// Package export renders pay reports for payroll systems.
package export

import (
	"fmt"

	"github.com/gocarina/gocsv"

	"github.com/warp/nota-engine/nota"
)

// ReportRowCSV is one line of the detailed payroll file.
type ReportRowCSV struct {
	CycleID       string `csv:"cycle_id"`
	EmployeeCode  string `csv:"employee_code"`
	EmployeeName  string `csv:"employee_name"`
	OSICode       string `csv:"osi_code"`
	EventID       string `csv:"event_id"`
	Detail        string `csv:"detail"`
	Qty           string `csv:"qty"`
	Unit          string `csv:"unit"`
	Amount        string `csv:"amount"`
	Status        string `csv:"status"`
	Extra         string `csv:"extra"`
	EffectiveDate string `csv:"effective_date"`
}

// EmployeeTotalCSV is one line of the per-employee summary file.
type EmployeeTotalCSV struct {
	CycleID      string `csv:"cycle_id"`
	PayDate      string `csv:"pay_date"`
	EmployeeCode string `csv:"employee_code"`
	EmployeeName string `csv:"employee_name"`
	Events       int    `csv:"events"`
	Total        string `csv:"total"`
}

// CSVExporter renders reports into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// RenderRows produces the detailed file, one line per reported event.
// Amounts are written with two decimals.
func (e *CSVExporter) RenderRows(report nota.PayReport) ([]byte, error) {
	records := make([]ReportRowCSV, 0, len(report.Rows))
	for _, r := range report.Rows {
		extra := "N"
		if r.IsExtra {
			extra = "S"
		}
		records = append(records, ReportRowCSV{
			CycleID:       report.CycleID,
			EmployeeCode:  r.EmployeeCode,
			EmployeeName:  r.EmployeeName,
			OSICode:       r.OSICode,
			EventID:       r.EventID,
			Detail:        r.Detail,
			Qty:           r.Qty.String(),
			Unit:          r.Unit,
			Amount:        r.Amount.StringFixed(2),
			Status:        string(r.Status),
			Extra:         extra,
			EffectiveDate: r.EffectiveDate,
		})
	}

	out, err := gocsv.MarshalBytes(&records)
	if err != nil {
		return nil, fmt.Errorf("marshal report rows: %w", err)
	}
	return out, nil
}

// RenderTotals produces the per-employee summary file.
func (e *CSVExporter) RenderTotals(report nota.PayReport) ([]byte, error) {
	records := make([]EmployeeTotalCSV, 0, len(report.TotalsByEmployee))
	for _, t := range report.TotalsByEmployee {
		records = append(records, EmployeeTotalCSV{
			CycleID:      report.CycleID,
			PayDate:      report.PayDate.String(),
			EmployeeCode: t.EmployeeCode,
			EmployeeName: t.EmployeeName,
			Events:       t.Events,
			Total:        t.Total.StringFixed(2),
		})
	}

	out, err := gocsv.MarshalBytes(&records)
	if err != nil {
		return nil, fmt.Errorf("marshal report totals: %w", err)
	}
	return out, nil
}
