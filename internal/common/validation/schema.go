// internal/common/validation/schema.go
package validation

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "placement-backend/internal/common/errors"
)

// Validate checks a decoded request body against a JSON schema expressed as
// a Go map. Returns a VALIDATION_FAILED StandardError listing every schema
// violation.
func Validate(schemaMap, data map[string]interface{}) error {
	if len(schemaMap) == 0 {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schemaMap)
	documentLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return apperrors.NewValidationFailedError(err.Error())
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return apperrors.NewValidationFailedError(strings.Join(errs, "; "))
	}

	return nil
}
