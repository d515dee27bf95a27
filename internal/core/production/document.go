package production

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion tags the interchange encoding of exported plans.
const SchemaVersion = "gmpsched/v1"

// PlanDocument is the versioned interchange envelope for a confirmed plan.
type PlanDocument struct {
	SchemaVersion string         `json:"schema_version"`
	SessionID     string         `json:"session_id"`
	ConfirmedAt   time.Time      `json:"confirmed_at"`
	Plan          ProductionPlan `json:"plan"`
	Orders        []Order        `json:"orders"`
	Equipment     []Equipment    `json:"equipment"`
}

// EncodePlanDocument renders the document as indented JSON.
func EncodePlanDocument(doc PlanDocument) ([]byte, error) {
	if doc.SchemaVersion == "" {
		doc.SchemaVersion = SchemaVersion
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DecodePlanDocument parses a document and checks its schema version.
func DecodePlanDocument(data []byte) (PlanDocument, error) {
	var doc PlanDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return PlanDocument{}, fmt.Errorf("decode plan document: %w", err)
	}
	if doc.SchemaVersion != SchemaVersion {
		return PlanDocument{}, fmt.Errorf("unsupported plan document version %q", doc.SchemaVersion)
	}
	return doc, nil
}
