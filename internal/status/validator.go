// internal/status/validator.go
package status

import (
	apperrors "rpas-compliance/internal/common/errors"
)

// ValidateTransition checks a requested status change against the registry's
// allow-list. It is deterministic and has no side effects. Both statuses must
// exist in the registry or the call fails with a configuration error.
func ValidateTransition(registry Registry, current, requested string) error {
	entry, ok := registry[current]
	if !ok {
		return apperrors.NewConfigurationError(current)
	}
	if _, ok := registry[requested]; !ok {
		return apperrors.NewConfigurationError(requested)
	}

	for _, allowed := range entry.AllowedTransitions {
		if allowed == requested {
			return nil
		}
	}
	return apperrors.NewInvalidTransitionError(current, requested)
}

// IsKnown reports whether the status id exists in the registry.
func IsKnown(registry Registry, status string) bool {
	_, ok := registry[status]
	return ok
}
