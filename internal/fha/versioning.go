// internal/fha/versioning.go
package fha

import (
	"encoding/json"

	"rpas-compliance/internal/models"
)

// contentFields is the allow-list of fields whose change bumps a master
// hazard's version. Status and other workflow fields never do.
var contentFields = []string{
	"title",
	"description",
	"consequences",
	"likelihood",
	"severity",
	"controlMeasures",
	"residualLikelihood",
	"residualSeverity",
	"metadata",
}

// contentChanged reports whether any content field differs between two
// hazards. Fields are compared on their canonical JSON encodings: object keys
// are order-insensitive, array order is significant. Reordering an
// array-valued field such as controlMeasures therefore counts as a content
// change.
func contentChanged(before, after *models.Hazard) bool {
	beforeFields := contentFieldMap(before)
	afterFields := contentFieldMap(after)
	for _, field := range contentFields {
		if beforeFields[field] != afterFields[field] {
			return true
		}
	}
	return false
}

// contentFieldMap renders each content field to its canonical JSON string.
// encoding/json sorts object keys, so structurally equal objects always
// encode identically.
func contentFieldMap(h *models.Hazard) map[string]string {
	raw, _ := json.Marshal(h)
	var generic map[string]interface{}
	json.Unmarshal(raw, &generic)

	out := make(map[string]string, len(contentFields))
	for _, field := range contentFields {
		value, ok := generic[field]
		if !ok {
			out[field] = ""
			continue
		}
		encoded, _ := json.Marshal(value)
		out[field] = string(encoded)
	}
	return out
}
