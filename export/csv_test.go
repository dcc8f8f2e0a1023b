package export_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/nota-engine/export"
	"github.com/warp/nota-engine/nota"
)

func sampleReport() nota.PayReport {
	return nota.PayReport{
		ID:      "REPORT-PAY-2024-02-1-v1",
		CycleID: "PAY-2024-02-1",
		PayDate: nota.NewDate(2024, time.February, 20),
		Rows: []nota.PayReportRow{
			{EventID: "ev-1", OSICode: "OSI-1", EmployeeCode: "E-001", EmployeeName: "Ana Rojas",
				Detail: "Traslado de piano - Motivo: tercer piso, sin ascensor", Qty: decimal.RequireFromString("1"),
				Unit: "unidad", Amount: decimal.RequireFromString("25000"), Status: nota.StatusAprobado,
				IsExtra: true, EffectiveDate: "2024-02-03"},
			{EventID: "ev-2", OSICode: "OSI-1", EmployeeCode: "E-001", EmployeeName: "Ana Rojas",
				Detail: "Embalaje por m3", Qty: decimal.RequireFromString("2.5"), Unit: "m3",
				Amount: decimal.RequireFromString("3750.5"), Status: nota.StatusRegistrado, EffectiveDate: "2024-02-04"},
		},
		TotalsByEmployee: []nota.EmployeeTotal{
			{EmployeeCode: "E-001", EmployeeName: "Ana Rojas", Events: 2, Total: decimal.RequireFromString("28750.5")},
		},
	}
}

func TestRenderRows(t *testing.T) {
	out, err := export.NewCSVExporter().RenderRows(sampleReport())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "cycle_id,employee_code,employee_name,osi_code,event_id,detail,qty,unit,amount,status,extra,effective_date", lines[0])
	assert.Equal(t, `PAY-2024-02-1,E-001,Ana Rojas,OSI-1,ev-1,"Traslado de piano - Motivo: tercer piso, sin ascensor",1,unidad,25000.00,APROBADO,S,2024-02-03`, lines[1])
	assert.Equal(t, "PAY-2024-02-1,E-001,Ana Rojas,OSI-1,ev-2,Embalaje por m3,2.5,m3,3750.50,REGISTRADO,N,2024-02-04", lines[2])
}

func TestRenderTotals(t *testing.T) {
	out, err := export.NewCSVExporter().RenderTotals(sampleReport())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "cycle_id,pay_date,employee_code,employee_name,events,total", lines[0])
	assert.Equal(t, "PAY-2024-02-1,2024-02-20,E-001,Ana Rojas,2,28750.50", lines[1])
}

func TestRenderRows_EmptyReportHasHeader(t *testing.T) {
	out, err := export.NewCSVExporter().RenderRows(nota.PayReport{CycleID: "PAY-2024-02-1"})
	require.NoError(t, err)
	assert.Equal(t, "cycle_id,employee_code,employee_name,osi_code,event_id,detail,qty,unit,amount,status,extra,effective_date",
		strings.TrimSpace(string(out)))
}
