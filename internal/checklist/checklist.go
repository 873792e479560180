// internal/checklist/checklist.go
package checklist

import (
	"math"

	"rpas-compliance/internal/models"
	"rpas-compliance/internal/status"
	"rpas-compliance/pkg/catalog"
)

// Expand materializes one ChecklistItem per catalog entry for a new
// application. Entries that do not apply are still created, with status
// not_applicable and IsRequired=false, so the total item count always equals
// the catalog length. IDs, timestamps and audit fields are filled in by the
// caller at write time.
func Expand(c *catalog.Catalog, applicationID string, triggers []string, options map[string]bool) []models.ChecklistItem {
	items := make([]models.ChecklistItem, 0, c.Len())
	for _, entry := range c.Entries {
		item := models.ChecklistItem{
			ParentApplicationID: applicationID,
			RequirementID:       entry.ID,
			Category:            entry.Category,
			Label:               entry.Label,
		}
		if entry.Applies(triggers, options) {
			item.Status = status.ItemNotStarted
			item.IsRequired = true
		} else {
			item.Status = status.ItemNotApplicable
			item.IsRequired = false
		}
		items = append(items, item)
	}
	return items
}

// PercentComplete computes the completion percentage over required, applicable
// items, counting approved and uploaded as complete. An empty denominator is
// vacuously complete and returns 100.
func PercentComplete(items []models.ChecklistItem) int {
	var total, complete int
	for _, item := range items {
		if !item.IsRequired || item.Status == status.ItemNotApplicable {
			continue
		}
		total++
		if item.Status == status.ItemApproved || item.Status == status.ItemUploaded {
			complete++
		}
	}
	if total == 0 {
		return 100
	}
	return int(math.Round(100 * float64(complete) / float64(total)))
}
