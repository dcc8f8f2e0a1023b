/*
Package factory provides JSON to Go pay configuration conversion.

PURPOSE:
  Converts JSON pay configuration documents into nota.PayConfig values and
  back. Payroll admins edit cut rules as JSON (admin UI, seed files, the
  PUT /api/config body); the factory turns them into the sealed cut-rule
  variant the engine understands.

JSON SCHEMA:
  {
    "id": "default",
    "version": 3,
    "frequency": 2,
    "datePolicy": "REGISTERED_AT",
    "timeZone": "America/Santiago",
    "cutRules": {
      "cut1StartDay": 1,  "cut1EndDay": 15, "pay1Day": 20,
      "cut2StartDay": 16, "cut2EndDay": 31, "pay2Day": 5
    }
  }

  frequency 1 reads startDay / endDay / payDay instead.

KEY FEATURES:
  - "frequency" is the discriminator of the cut-rule union
  - Missing datePolicy defaults to REGISTERED_AT
  - Missing timeZone defaults to the factory's DefaultTimeZone
  - Every parsed config passes nota.ValidateConfig

USAGE:
  f := factory.NewPayConfigFactory("America/Santiago")
  cfg, err := f.ParsePayConfig(jsonString)

SEE ALSO:
  - nota/cycle.go: CutRules variants and validation
  - factory/seed.go: catalog / directory / OSI import
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/nota-engine/nota"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PayConfigJSON is the JSON representation of a pay configuration.
type PayConfigJSON struct {
	ID         string       `json:"id"`
	Version    int          `json:"version"`
	Frequency  int          `json:"frequency"`
	DatePolicy string       `json:"datePolicy,omitempty"`
	TimeZone   string       `json:"timeZone,omitempty"`
	CutRules   CutRulesJSON `json:"cutRules"`
	UpdatedAt  *time.Time   `json:"updatedAt,omitempty"`
	UpdatedBy  string       `json:"updatedBy,omitempty"`
}

// CutRulesJSON carries the fields of both variants; Frequency picks which apply.
type CutRulesJSON struct {
	// monthly
	StartDay int `json:"startDay,omitempty"`
	EndDay   int `json:"endDay,omitempty"`
	PayDay   int `json:"payDay,omitempty"`

	// semi-monthly
	Cut1StartDay int `json:"cut1StartDay,omitempty"`
	Cut1EndDay   int `json:"cut1EndDay,omitempty"`
	Pay1Day      int `json:"pay1Day,omitempty"`
	Cut2StartDay int `json:"cut2StartDay,omitempty"`
	Cut2EndDay   int `json:"cut2EndDay,omitempty"`
	Pay2Day      int `json:"pay2Day,omitempty"`
}

// =============================================================================
// PAY CONFIG FACTORY
// =============================================================================

// PayConfigFactory converts JSON configs to nota.PayConfig.
type PayConfigFactory struct {
	DefaultTimeZone string
}

// NewPayConfigFactory creates a factory that fills missing time zones with tz.
func NewPayConfigFactory(tz string) *PayConfigFactory {
	return &PayConfigFactory{DefaultTimeZone: tz}
}

// ParsePayConfig parses a JSON string into a validated PayConfig.
func (f *PayConfigFactory) ParsePayConfig(jsonStr string) (nota.PayConfig, error) {
	var pj PayConfigJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nota.PayConfig{}, fmt.Errorf("failed to parse pay config JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PayConfigJSON to a validated nota.PayConfig.
func (f *PayConfigFactory) FromJSON(pj PayConfigJSON) (nota.PayConfig, error) {
	rules, err := parseCutRules(nota.Frequency(pj.Frequency), pj.CutRules)
	if err != nil {
		return nota.PayConfig{}, err
	}

	cfg := nota.PayConfig{
		ID:         pj.ID,
		Version:    pj.Version,
		DatePolicy: parseDatePolicy(pj.DatePolicy),
		CutRules:   rules,
		TimeZone:   pj.TimeZone,
		UpdatedBy:  pj.UpdatedBy,
	}
	if cfg.ID == "" {
		cfg.ID = DefaultConfigID
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = f.DefaultTimeZone
	}
	if pj.UpdatedAt != nil {
		cfg.UpdatedAt = *pj.UpdatedAt
	}

	if err := nota.ValidateConfig(cfg); err != nil {
		return nota.PayConfig{}, err
	}
	return cfg, nil
}

// ToJSON converts a PayConfig to PayConfigJSON.
func (f *PayConfigFactory) ToJSON(cfg nota.PayConfig) PayConfigJSON {
	pj := PayConfigJSON{
		ID:         cfg.ID,
		Version:    cfg.Version,
		Frequency:  int(cfg.Frequency()),
		DatePolicy: string(cfg.DatePolicy),
		TimeZone:   cfg.TimeZone,
		UpdatedBy:  cfg.UpdatedBy,
	}
	if !cfg.UpdatedAt.IsZero() {
		t := cfg.UpdatedAt
		pj.UpdatedAt = &t
	}

	switch r := cfg.CutRules.(type) {
	case nota.MonthlyCutRules:
		pj.CutRules = CutRulesJSON{StartDay: r.StartDay, EndDay: r.EndDay, PayDay: r.PayDay}
	case nota.SemiMonthlyCutRules:
		pj.CutRules = CutRulesJSON{
			Cut1StartDay: r.Cut1StartDay, Cut1EndDay: r.Cut1EndDay, Pay1Day: r.Pay1Day,
			Cut2StartDay: r.Cut2StartDay, Cut2EndDay: r.Cut2EndDay, Pay2Day: r.Pay2Day,
		}
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseCutRules(freq nota.Frequency, cj CutRulesJSON) (nota.CutRules, error) {
	switch freq {
	case nota.FrequencyMonthly:
		return nota.MonthlyCutRules{StartDay: cj.StartDay, EndDay: cj.EndDay, PayDay: cj.PayDay}, nil
	case nota.FrequencySemiMonthly:
		return nota.SemiMonthlyCutRules{
			Cut1StartDay: cj.Cut1StartDay, Cut1EndDay: cj.Cut1EndDay, Pay1Day: cj.Pay1Day,
			Cut2StartDay: cj.Cut2StartDay, Cut2EndDay: cj.Cut2EndDay, Pay2Day: cj.Pay2Day,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown frequency %d", nota.ErrInvalidConfig, freq)
	}
}

func parseDatePolicy(s string) nota.DatePolicy {
	if s == "" {
		return nota.DatePolicyRegisteredAt
	}
	return nota.DatePolicy(s)
}

// =============================================================================
// PRESETS
// =============================================================================

// DefaultConfigID is the id of the singleton pay configuration.
const DefaultConfigID = "default"

// SemiMonthlyJSON is the stock configuration: 1-15 paid on the 20th, 16-end
// paid on the 5th of the same month.
func SemiMonthlyJSON() string {
	return `{
  "id": "default",
  "version": 1,
  "frequency": 2,
  "datePolicy": "REGISTERED_AT",
  "cutRules": {
    "cut1StartDay": 1, "cut1EndDay": 15, "pay1Day": 20,
    "cut2StartDay": 16, "cut2EndDay": 31, "pay2Day": 5
  }
}`
}

// MonthlyJSON pays the whole month on its last day.
func MonthlyJSON() string {
	return `{
  "id": "default",
  "version": 1,
  "frequency": 1,
  "datePolicy": "REGISTERED_AT",
  "cutRules": {"startDay": 1, "endDay": 31, "payDay": 31}
}`
}
