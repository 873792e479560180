// internal/status/registry.go
package status

// Entry describes a single status: display label, UI color, and the set of
// statuses a record may move to next.
type Entry struct {
	Label              string
	Color              string
	AllowedTransitions []string
}

// Registry maps status ids to their entries. Registries are immutable constant
// tables populated at init and never mutated afterwards.
type Registry map[string]Entry

// SFOC application statuses.
const (
	StatusDraft          = "draft"
	StatusReadyForReview = "ready_for_review"
	StatusSubmitted      = "submitted"
	StatusUnderReview    = "under_review"
	StatusApproved       = "approved"
	StatusRejected       = "rejected"
	StatusRequiresAction = "requires_action"
)

// Checklist item statuses.
const (
	ItemNotStarted    = "not_started"
	ItemInProgress    = "in_progress"
	ItemUploaded      = "uploaded"
	ItemUnderReview   = "under_review"
	ItemApproved      = "approved"
	ItemRejected      = "rejected"
	ItemNotApplicable = "not_applicable"
)

// Complexity levels.
const (
	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"
)

// SFOCRegistry governs SFOC application status transitions. A draft must pass
// through ready_for_review before it can be submitted.
var SFOCRegistry = Registry{
	StatusDraft: {
		Label:              "Draft",
		Color:              "gray",
		AllowedTransitions: []string{StatusReadyForReview},
	},
	StatusReadyForReview: {
		Label:              "Ready for Review",
		Color:              "blue",
		AllowedTransitions: []string{StatusDraft, StatusSubmitted},
	},
	StatusSubmitted: {
		Label:              "Submitted",
		Color:              "indigo",
		AllowedTransitions: []string{StatusUnderReview, StatusApproved, StatusRejected},
	},
	StatusUnderReview: {
		Label:              "Under Review",
		Color:              "yellow",
		AllowedTransitions: []string{StatusApproved, StatusRejected, StatusRequiresAction},
	},
	StatusRequiresAction: {
		Label:              "Requires Action",
		Color:              "orange",
		AllowedTransitions: []string{StatusSubmitted},
	},
	StatusApproved: {
		Label:              "Approved",
		Color:              "green",
		AllowedTransitions: []string{},
	},
	StatusRejected: {
		Label:              "Rejected",
		Color:              "red",
		AllowedTransitions: []string{StatusDraft},
	},
}

// ComplianceRegistry governs compliance application status transitions.
var ComplianceRegistry = Registry{
	StatusDraft: {
		Label:              "Draft",
		Color:              "gray",
		AllowedTransitions: []string{StatusReadyForReview},
	},
	StatusReadyForReview: {
		Label:              "Ready for Review",
		Color:              "blue",
		AllowedTransitions: []string{StatusDraft, StatusSubmitted},
	},
	StatusSubmitted: {
		Label:              "Submitted",
		Color:              "indigo",
		AllowedTransitions: []string{StatusApproved, StatusRejected},
	},
	StatusApproved: {
		Label:              "Approved",
		Color:              "green",
		AllowedTransitions: []string{},
	},
	StatusRejected: {
		Label:              "Rejected",
		Color:              "red",
		AllowedTransitions: []string{StatusDraft},
	},
}

// ChecklistRegistry governs checklist item status transitions. not_applicable
// is terminal: applicability is decided at expansion time, not by users.
var ChecklistRegistry = Registry{
	ItemNotStarted: {
		Label:              "Not Started",
		Color:              "gray",
		AllowedTransitions: []string{ItemInProgress, ItemUploaded},
	},
	ItemInProgress: {
		Label:              "In Progress",
		Color:              "blue",
		AllowedTransitions: []string{ItemUploaded, ItemNotStarted},
	},
	ItemUploaded: {
		Label:              "Uploaded",
		Color:              "indigo",
		AllowedTransitions: []string{ItemUnderReview, ItemInProgress},
	},
	ItemUnderReview: {
		Label:              "Under Review",
		Color:              "yellow",
		AllowedTransitions: []string{ItemApproved, ItemRejected},
	},
	ItemApproved: {
		Label:              "Approved",
		Color:              "green",
		AllowedTransitions: []string{ItemUnderReview},
	},
	ItemRejected: {
		Label:              "Rejected",
		Color:              "red",
		AllowedTransitions: []string{ItemInProgress, ItemUploaded},
	},
	ItemNotApplicable: {
		Label:              "Not Applicable",
		Color:              "gray",
		AllowedTransitions: []string{},
	},
}

// complexityByTrigger maps an application trigger to the complexity level it
// forces. Unlisted triggers leave the level at low.
var complexityByTrigger = map[string]string{
	"large_rpas":        ComplexityMedium,
	"bvlos":             ComplexityHigh,
	"over_people":       ComplexityHigh,
	"controlled_space":  ComplexityMedium,
	"special_operation": ComplexityMedium,
}

var complexityRank = map[string]int{
	ComplexityLow:    0,
	ComplexityMedium: 1,
	ComplexityHigh:   2,
}

// ComplexityForTriggers resolves the highest complexity level implied by the
// selected trigger set. An empty set resolves to low.
func ComplexityForTriggers(triggers []string) string {
	level := ComplexityLow
	for _, t := range triggers {
		if c, ok := complexityByTrigger[t]; ok && complexityRank[c] > complexityRank[level] {
			level = c
		}
	}
	return level
}
