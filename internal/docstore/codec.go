// internal/docstore/codec.go
package docstore

import (
	"encoding/json"

	apperrors "rpas-compliance/internal/common/errors"
)

// Encode converts an entity struct into document data via its JSON form.
func Encode(entity interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return data, nil
}

// Decode populates an entity struct from document data.
func Decode(data map[string]interface{}, entity interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := json.Unmarshal(raw, entity); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}
