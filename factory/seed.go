package factory

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/warp/nota-engine/nota"
)

// =============================================================================
// SEED - Catalog / directory / OSI import
// =============================================================================

// Seed is a bulk import document. The host application owns catalogs, users
// and OSIs; a seed mirrors them into a local store for development and demos.
type Seed struct {
	Catalogs  nota.Catalogs  `json:"catalogs"`
	Users     []nota.User    `json:"users"`
	OSIs      []nota.OSI     `json:"osis"`
	PayConfig *PayConfigJSON `json:"payConfig,omitempty"`
}

// ParseSeed decodes a seed document and checks its references.
func ParseSeed(r io.Reader) (*Seed, error) {
	var s Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse seed JSON: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects duplicate ids and events pointing at unknown event types
// or employees.
func (s *Seed) Validate() error {
	types := make(map[string]bool, len(s.Catalogs.EventTypes))
	for _, et := range s.Catalogs.EventTypes {
		if types[et.ID] {
			return fmt.Errorf("%w: duplicate event type %s", nota.ErrValidation, et.ID)
		}
		types[et.ID] = true
	}

	users := make(map[string]bool, len(s.Users))
	for _, u := range s.Users {
		if users[u.ID] {
			return fmt.Errorf("%w: duplicate user %s", nota.ErrValidation, u.ID)
		}
		users[u.ID] = true
	}

	osis := make(map[string]bool, len(s.OSIs))
	for _, o := range s.OSIs {
		if osis[o.ID] {
			return fmt.Errorf("%w: duplicate osi %s", nota.ErrValidation, o.ID)
		}
		osis[o.ID] = true

		for _, e := range o.NotaEvents {
			if !types[e.EventTypeID] {
				return fmt.Errorf("%w: osi %s event %s: %s", nota.ErrEventTypeNotFound, o.ID, e.ID, e.EventTypeID)
			}
			if !users[e.EmployeeID] {
				return fmt.Errorf("%w: osi %s event %s: %s", nota.ErrEmployeeNotFound, o.ID, e.ID, e.EmployeeID)
			}
		}
	}
	return nil
}

// DemoSeedJSON is a small moving-company dataset: two packers, a carpenter
// and one OSI with a plan.
func DemoSeedJSON() string {
	return `{
  "catalogs": {
    "baseQualificationTypes": [
      {"id": "bq-pack", "code": "PACK", "name": "Embalador"},
      {"id": "bq-drive", "code": "DRIVE", "name": "Conductor"}
    ],
    "shabTypes": [
      {"code": "CARP", "name": "Carpinteria"},
      {"code": "ELEC", "name": "Electricidad"}
    ],
    "allowanceTypes": [
      {"id": "al-meal", "code": "MEAL", "name": "Colacion", "amount": "6000"}
    ],
    "eventTypes": [
      {"id": "et-pack", "code": "PACK_M3", "name": "Embalaje por m3", "unit": "m3",
       "baseRate": "1500", "requiredQualificationId": "bq-pack", "minGradeValue": 1,
       "requiresEvidence": false, "active": true},
      {"id": "et-piano", "code": "PIANO", "name": "Traslado de piano", "unit": "unidad",
       "baseRate": "25000", "requiredQualificationId": "bq-pack", "minGradeValue": 3,
       "requiresEvidence": true, "active": true},
      {"id": "et-disarm", "code": "DISARM", "name": "Desarme de muebles", "unit": "unidad",
       "baseRate": "8000", "requiredShabCode": "CARP", "requiresEvidence": false, "active": true},
      {"id": "et-legacy", "code": "LEGACY", "name": "Tarifa antigua", "unit": "hora",
       "baseRate": "3000", "requiresEvidence": false, "active": false}
    ]
  },
  "users": [
    {"id": "u-ana", "code": "E-001", "fullName": "Ana Rojas",
     "baseQualifications": [{"baseTypeId": "bq-pack", "grade": "A"}],
     "shab": [{"code": "CARP", "active": true}]},
    {"id": "u-luis", "code": "E-002", "name": "Luis",
     "baseQualifications": [{"baseTypeId": "bq-pack", "grade": "C"}],
     "shab": [{"code": "CARP", "active": false}]}
  ],
  "osis": [
    {"id": "osi-1001", "code": "OSI-1001", "notaEvents": [],
     "osiNotaPlan": {"items": [
       {"id": "pi-1", "eventTypeId": "et-pack", "employeeId": "u-luis", "qtyEstimated": "12"},
       {"id": "pi-2", "eventTypeId": "et-disarm", "employeeId": "u-ana", "qtyEstimated": "3"}
     ]}}
  ],
  "payConfig": {
    "id": "default", "version": 1, "frequency": 2, "datePolicy": "REGISTERED_AT",
    "cutRules": {"cut1StartDay": 1, "cut1EndDay": 15, "pay1Day": 20,
                 "cut2StartDay": 16, "cut2EndDay": 31, "pay2Day": 5}
  }
}`
}
