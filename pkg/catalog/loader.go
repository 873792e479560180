// pkg/catalog/loader.go
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	apperrors "rpas-compliance/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// catalogSchema validates catalog override files before they replace the
// built-in table.
const catalogSchema = `{
	"type": "object",
	"required": ["entries"],
	"properties": {
		"entries": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "category", "label"],
				"additionalProperties": false,
				"properties": {
					"id": {"type": "string", "minLength": 1, "pattern": "^[a-z][a-z0-9_]*$"},
					"category": {"type": "string", "minLength": 1},
					"label": {"type": "string", "minLength": 1},
					"alwaysRequired": {"type": "boolean"},
					"requiredFor": {"type": "array", "items": {"type": "string"}},
					"requiredIf": {"type": "string"}
				}
			}
		}
	}
}`

// Load returns the catalog from path, or the built-in catalog when path is
// empty. Override files are schema-validated and must not contain duplicate
// entry ids.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Builtin(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	schemaLoader := gojsonschema.NewStringLoader(catalogSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, apperrors.NewCatalogInvalidError(err.Error())
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, apperrors.NewCatalogInvalidError(strings.Join(problems, "; "))
	}

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, apperrors.NewCatalogInvalidError(err.Error())
	}

	seen := make(map[string]bool, len(c.Entries))
	for _, e := range c.Entries {
		if seen[e.ID] {
			return nil, apperrors.NewCatalogInvalidError(fmt.Sprintf("duplicate entry id %q", e.ID))
		}
		seen[e.ID] = true
	}
	return &c, nil
}
