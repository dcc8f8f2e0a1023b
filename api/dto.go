/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON bodies that are specific to the HTTP surface. Engine and
  service types (nota.NotaEvent, nota.PayReport, payroll.MonthResult...)
  are already shaped for JSON and are returned as they are.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Bodies are decoded here and validated by payroll.Service, which owns the
  validator rules.

SEE ALSO:
  - handlers.go: Uses these types
  - payroll/requests.go: Service request types with validation tags
  - factory/payconfig.go: PayConfigJSON
*/
package api

import (
	"github.com/warp/nota-engine/factory"
	"github.com/warp/nota-engine/payroll"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ActorRequest is the body of transition and cycle endpoints.
type ActorRequest struct {
	Actor string `json:"actor"`
	Note  string `json:"note,omitempty"`
}

// UpdateConfigRequest is the body of PUT /api/config.
type UpdateConfigRequest struct {
	Actor  string                `json:"actor"`
	Config factory.PayConfigJSON `json:"config"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ConfigUpdateResponse is returned by PUT /api/config.
type ConfigUpdateResponse struct {
	Config factory.PayConfigJSON `json:"config"`
	Months []payroll.MonthResult `json:"months"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Frequency   string `json:"frequency"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
}
