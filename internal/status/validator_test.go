// internal/status/validator_test.go
package status

import (
	"testing"

	apperrors "rpas-compliance/internal/common/errors"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Transition Validation Tests
// ==========================

func TestValidateTransition_SFOC(t *testing.T) {
	tests := []struct {
		name      string
		current   string
		requested string
		wantErr   bool
		wantKind  apperrors.Kind
	}{
		{
			name:      "draft to ready_for_review allowed",
			current:   StatusDraft,
			requested: StatusReadyForReview,
			wantErr:   false,
		},
		{
			name:      "draft to submitted rejected without intermediate state",
			current:   StatusDraft,
			requested: StatusSubmitted,
			wantErr:   true,
			wantKind:  apperrors.KindValidation,
		},
		{
			name:      "ready_for_review to submitted allowed",
			current:   StatusReadyForReview,
			requested: StatusSubmitted,
			wantErr:   false,
		},
		{
			name:      "ready_for_review back to draft allowed",
			current:   StatusReadyForReview,
			requested: StatusDraft,
			wantErr:   false,
		},
		{
			name:      "submitted to approved allowed",
			current:   StatusSubmitted,
			requested: StatusApproved,
			wantErr:   false,
		},
		{
			name:      "submitted to under_review allowed",
			current:   StatusSubmitted,
			requested: StatusUnderReview,
			wantErr:   false,
		},
		{
			name:      "under_review to requires_action allowed",
			current:   StatusUnderReview,
			requested: StatusRequiresAction,
			wantErr:   false,
		},
		{
			name:      "requires_action resubmit allowed",
			current:   StatusRequiresAction,
			requested: StatusSubmitted,
			wantErr:   false,
		},
		{
			name:      "approved is terminal",
			current:   StatusApproved,
			requested: StatusDraft,
			wantErr:   true,
			wantKind:  apperrors.KindValidation,
		},
		{
			name:      "rejected back to draft allowed",
			current:   StatusRejected,
			requested: StatusDraft,
			wantErr:   false,
		},
		{
			name:      "unknown current status",
			current:   "archived",
			requested: StatusDraft,
			wantErr:   true,
			wantKind:  apperrors.KindValidation,
		},
		{
			name:      "unknown requested status",
			current:   StatusDraft,
			requested: "archived",
			wantErr:   true,
			wantKind:  apperrors.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(SFOCRegistry, tt.current, tt.requested)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, tt.wantKind, apperrors.KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTransition_UnknownStatusCode(t *testing.T) {
	err := ValidateTransition(SFOCRegistry, "no_such_status", StatusDraft)
	assert.Error(t, err)

	appErr := apperrors.AsAppError(err)
	assert.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeUnknownStatus, appErr.Code)
}

func TestValidateTransition_InvalidTransitionMessage(t *testing.T) {
	err := ValidateTransition(SFOCRegistry, StatusDraft, StatusSubmitted)
	assert.Error(t, err)

	appErr := apperrors.AsAppError(err)
	assert.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeInvalidTransition, appErr.Code)
	assert.Contains(t, appErr.Message, StatusDraft)
	assert.Contains(t, appErr.Message, StatusSubmitted)
	assert.False(t, appErr.Retryable)
}

func TestValidateTransition_Checklist(t *testing.T) {
	assert.NoError(t, ValidateTransition(ChecklistRegistry, ItemNotStarted, ItemInProgress))
	assert.NoError(t, ValidateTransition(ChecklistRegistry, ItemUploaded, ItemUnderReview))
	assert.NoError(t, ValidateTransition(ChecklistRegistry, ItemRejected, ItemUploaded))

	// not_applicable is terminal
	assert.Error(t, ValidateTransition(ChecklistRegistry, ItemNotApplicable, ItemInProgress))
}

// ==========================
// Registry Integrity Tests
// ==========================

func TestRegistries_AllowedTransitionsAreKnown(t *testing.T) {
	registries := map[string]Registry{
		"sfoc":       SFOCRegistry,
		"compliance": ComplianceRegistry,
		"checklist":  ChecklistRegistry,
	}

	for name, registry := range registries {
		t.Run(name, func(t *testing.T) {
			for id, entry := range registry {
				assert.NotEmpty(t, entry.Label, "status %s has no label", id)
				assert.NotEmpty(t, entry.Color, "status %s has no color", id)
				for _, next := range entry.AllowedTransitions {
					assert.True(t, IsKnown(registry, next),
						"status %s allows transition to unknown status %s", id, next)
				}
			}
		})
	}
}

// ==========================
// Complexity Resolution Tests
// ==========================

func TestComplexityForTriggers(t *testing.T) {
	tests := []struct {
		name     string
		triggers []string
		expected string
	}{
		{"no triggers", nil, ComplexityLow},
		{"empty triggers", []string{}, ComplexityLow},
		{"large_rpas resolves medium", []string{"large_rpas"}, ComplexityMedium},
		{"bvlos resolves high", []string{"bvlos"}, ComplexityHigh},
		{"over_people resolves high", []string{"over_people"}, ComplexityHigh},
		{"controlled_space resolves medium", []string{"controlled_space"}, ComplexityMedium},
		{"highest wins", []string{"large_rpas", "bvlos"}, ComplexityHigh},
		{"unknown trigger stays low", []string{"night_ops"}, ComplexityLow},
		{"unknown plus medium", []string{"night_ops", "large_rpas"}, ComplexityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ComplexityForTriggers(tt.triggers))
		})
	}
}
