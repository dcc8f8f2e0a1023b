package nota

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAY REPORT - Derived per-cycle payroll snapshot
// =============================================================================

const (
	unknownEmployeeName = "Sin nombre"
	reasonSeparator     = " - Motivo: "
)

// PayReportRow is one reported event.
type PayReportRow struct {
	EventID       string          `json:"eventId"`
	OSIID         string          `json:"osiId"`
	OSICode       string          `json:"osiCode"`
	EmployeeID    string          `json:"employeeId"`
	EmployeeCode  string          `json:"employeeCode"`
	EmployeeName  string          `json:"employeeName"`
	EventTypeID   string          `json:"eventTypeId"`
	Detail        string          `json:"detail"`
	Qty           decimal.Decimal `json:"qty"`
	Unit          string          `json:"unit"`
	Amount        decimal.Decimal `json:"amount"`
	Status        EventStatus     `json:"status"`
	IsExtra       bool            `json:"isExtra"`
	EffectiveDate string          `json:"effectiveDate"`

	sortDate     Date
	registeredAt time.Time
}

// EmployeeTotal is the summed amount of one employee code.
type EmployeeTotal struct {
	EmployeeCode string          `json:"employeeCode"`
	EmployeeName string          `json:"employeeName"`
	Events       int             `json:"events"`
	Total        decimal.Decimal `json:"total"`
}

// PayReport is never authoritative; rebuild it whenever needed.
type PayReport struct {
	ID               string          `json:"id"`
	CycleID          string          `json:"cycleId"`
	CycleLabel       string          `json:"cycleLabel"`
	Period           Period          `json:"period"`
	PayDate          Date            `json:"payDate"`
	CycleStatus      CycleStatus     `json:"cycleStatus"`
	ConfigVersion    int             `json:"configVersion"`
	GeneratedAt      time.Time       `json:"generatedAt"`
	Rows             []PayReportRow  `json:"rows"`
	TotalsByEmployee []EmployeeTotal `json:"totalsByEmployee"`
	GrandTotal       decimal.Decimal `json:"grandTotal"`
}

// ReportID returns REPORT-<cycleId>-v<configVersion>.
func ReportID(cycleID string, configVersion int) string {
	return fmt.Sprintf("REPORT-%s-v%d", cycleID, configVersion)
}

// IsReportable reports whether an event in status s belongs in a report.
func IsReportable(s EventStatus) bool {
	return s == StatusRegistrado || s == StatusAprobado || s == StatusLiquidado
}

// ReportBuilder builds reports; Now stamps GeneratedAt.
type ReportBuilder struct {
	Now func() time.Time
}

// BuildReport builds a report stamped with the current time.
func BuildReport(cycle PayCycle, osis []OSI, users []User, catalogs Catalogs, cfg PayConfig) PayReport {
	return ReportBuilder{}.Build(cycle, osis, users, catalogs, cfg)
}

// Build aggregates the cycle's reportable events by employee code.
func (b ReportBuilder) Build(cycle PayCycle, osis []OSI, users []User, catalogs Catalogs, cfg PayConfig) PayReport {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	var rows []PayReportRow
	for _, o := range osis {
		for _, e := range o.NotaEvents {
			if e.PayCycleID != cycle.ID || !IsReportable(e.Status) {
				continue
			}
			row := buildRow(o, e, users, catalogs)
			row.sortDate = DateOf(e.RegisteredAt, cfg.Location())
			if e.EffectiveDate != nil {
				row.sortDate = *e.EffectiveDate
			}
			rows = append(rows, row)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].EmployeeCode != rows[j].EmployeeCode {
			return rows[i].EmployeeCode < rows[j].EmployeeCode
		}
		if !rows[i].sortDate.Equal(rows[j].sortDate) {
			return rows[i].sortDate.Before(rows[j].sortDate)
		}
		if !rows[i].registeredAt.Equal(rows[j].registeredAt) {
			return rows[i].registeredAt.Before(rows[j].registeredAt)
		}
		return rows[i].EventID < rows[j].EventID
	})

	totals := make(map[string]*EmployeeTotal)
	var codes []string
	for _, r := range rows {
		t, ok := totals[r.EmployeeCode]
		if !ok {
			t = &EmployeeTotal{EmployeeCode: r.EmployeeCode, EmployeeName: r.EmployeeName, Total: decimal.Zero}
			totals[r.EmployeeCode] = t
			codes = append(codes, r.EmployeeCode)
		}
		t.Events++
		t.Total = t.Total.Add(r.Amount)
	}

	grand := decimal.Zero
	byEmployee := make([]EmployeeTotal, 0, len(codes))
	for _, code := range codes {
		byEmployee = append(byEmployee, *totals[code])
		grand = grand.Add(totals[code].Total)
	}

	if rows == nil {
		rows = []PayReportRow{}
	}

	return PayReport{
		ID:               ReportID(cycle.ID, cfg.Version),
		CycleID:          cycle.ID,
		CycleLabel:       cycle.Label,
		Period:           cycle.Period(),
		PayDate:          cycle.PayDate,
		CycleStatus:      cycle.Status,
		ConfigVersion:    cfg.Version,
		GeneratedAt:      now(),
		Rows:             rows,
		TotalsByEmployee: byEmployee,
		GrandTotal:       grand,
	}
}

func buildRow(o OSI, e NotaEvent, users []User, catalogs Catalogs) PayReportRow {
	code, name := e.EmployeeID, unknownEmployeeName
	if u, ok := FindUser(users, e.EmployeeID); ok {
		if u.Code != "" {
			code = u.Code
		}
		if dn := u.DisplayName(); dn != "" {
			name = dn
		}
	}

	detail := e.EventTypeID
	if et, ok := catalogs.EventType(e.EventTypeID); ok && et.Name != "" {
		detail = et.Name
	}
	if e.IsExtra && e.Reason != "" {
		detail = detail + reasonSeparator + e.Reason
	}

	eff := ""
	if e.EffectiveDate != nil {
		eff = e.EffectiveDate.String()
	}

	return PayReportRow{
		EventID:       e.ID,
		OSIID:         o.ID,
		OSICode:       o.Code,
		EmployeeID:    e.EmployeeID,
		EmployeeCode:  code,
		EmployeeName:  name,
		EventTypeID:   e.EventTypeID,
		Detail:        detail,
		Qty:           e.QtyActual,
		Unit:          e.Unit,
		Amount:        e.ReportAmount(),
		Status:        e.Status,
		IsExtra:       e.IsExtra,
		EffectiveDate: eff,
		registeredAt:  e.RegisteredAt,
	}
}
