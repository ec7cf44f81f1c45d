package extraction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

var (
	envelopeSchema = newEnvelopeSchema()
	assetSchema    = newAssetSchema()
)

func newEnvelopeSchema() *openapi3.Schema {
	schema := openapi3.NewObjectSchema().
		WithProperty("assets", openapi3.NewArraySchema().WithItems(openapi3.NewSchema()))
	schema.Required = []string{"assets"}
	return schema
}

func newAssetSchema() *openapi3.Schema {
	nonBlank := openapi3.NewStringSchema().WithMinLength(1).WithPattern(`\S`)
	coordinates := openapi3.NewArraySchema().
		WithItems(openapi3.NewFloat64Schema()).
		WithMinItems(2).
		WithMaxItems(2)

	schema := openapi3.NewObjectSchema().
		WithProperty("tag", nonBlank).
		WithProperty("type", nonBlank).
		WithProperty("coordinates", coordinates)
	schema.Required = []string{"tag", "type", "coordinates"}
	return schema
}

// describeViolation renders a schema error as "pointer: reason".
func describeViolation(err error) string {
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		pointer := "/" + strings.Join(schemaErr.JSONPointer(), "/")
		return fmt.Sprintf("%s: %s", pointer, schemaErr.Reason)
	}
	return err.Error()
}
