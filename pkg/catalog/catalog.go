// pkg/catalog/catalog.go
package catalog

// Entry is a single requirement in the catalog. Entries are read-only and not
// user-owned.
type Entry struct {
	ID             string   `json:"id"`
	Category       string   `json:"category"`
	Label          string   `json:"label"`
	AlwaysRequired bool     `json:"alwaysRequired"`
	RequiredFor    []string `json:"requiredFor,omitempty"` // trigger ids
	RequiredIf     string   `json:"requiredIf,omitempty"`  // named boolean option on the creation payload
}

// Catalog is an immutable requirement table loaded once at process start.
type Catalog struct {
	Entries []Entry `json:"entries"`
}

// Applies reports whether the entry is required for an application with the
// given trigger set and creation options.
func (e Entry) Applies(triggers []string, options map[string]bool) bool {
	if e.AlwaysRequired {
		return true
	}
	for _, want := range e.RequiredFor {
		for _, have := range triggers {
			if want == have {
				return true
			}
		}
	}
	if e.RequiredIf != "" && options[e.RequiredIf] {
		return true
	}
	return false
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.Entries)
}

// Builtin returns the built-in SFOC requirement catalog.
func Builtin() *Catalog {
	return &Catalog{Entries: builtinEntries}
}

var builtinEntries = []Entry{
	{
		ID:             "operator_certificate",
		Category:       "operator",
		Label:          "RPAS Operator Certificate",
		AlwaysRequired: true,
	},
	{
		ID:             "pilot_certificates",
		Category:       "operator",
		Label:          "Pilot Certificates for all crew",
		AlwaysRequired: true,
	},
	{
		ID:             "operations_manual",
		Category:       "documentation",
		Label:          "Company Operations Manual",
		AlwaysRequired: true,
	},
	{
		ID:             "emergency_procedures",
		Category:       "documentation",
		Label:          "Emergency Procedures",
		AlwaysRequired: true,
	},
	{
		ID:             "hazard_assessment",
		Category:       "safety",
		Label:          "Formal Hazard Assessment",
		AlwaysRequired: true,
	},
	{
		ID:          "manufacturer_declaration",
		Category:    "aircraft",
		Label:       "Manufacturer Declaration",
		RequiredFor: []string{"large_rpas", "bvlos"},
	},
	{
		ID:          "detect_and_avoid",
		Category:    "aircraft",
		Label:       "Detect and Avoid Capability Evidence",
		RequiredFor: []string{"bvlos"},
	},
	{
		ID:          "crowd_management_plan",
		Category:    "safety",
		Label:       "Crowd Management Plan",
		RequiredFor: []string{"over_people"},
	},
	{
		ID:          "airspace_authorization",
		Category:    "airspace",
		Label:       "Controlled Airspace Authorization",
		RequiredFor: []string{"controlled_space"},
	},
	{
		ID:         "insurance_certificate",
		Category:   "operator",
		Label:      "Liability Insurance Certificate",
		RequiredIf: "commercialOperation",
	},
	{
		ID:         "night_operations_plan",
		Category:   "safety",
		Label:      "Night Operations Plan",
		RequiredIf: "nightOperations",
	},
}
