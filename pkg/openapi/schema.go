package openapi

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// resolveSchemaRef recursively inlines $ref references under the document's
// own components/schemas, replacing any ref that recurs into itself with a
// stub object rather than looping forever.
func resolveSchemaRef(ref *openapi3.SchemaRef, visited map[string]bool) interface{} {
	if ref == nil {
		return nil
	}

	if ref.Ref != "" {
		if visited[ref.Ref] {
			return map[string]interface{}{
				"type":        "object",
				"description": fmt.Sprintf("Circular reference to %s", ref.Ref),
			}
		}
		next := make(map[string]bool, len(visited)+1)
		for k := range visited {
			next[k] = true
		}
		next[ref.Ref] = true
		return resolveSchemaValue(ref.Value, next)
	}

	return resolveSchemaValue(ref.Value, visited)
}

func resolveSchemaValue(schema *openapi3.Schema, visited map[string]bool) interface{} {
	if schema == nil {
		return nil
	}

	out := map[string]interface{}{}
	if schema.Type != nil && len(*schema.Type) > 0 {
		out["type"] = (*schema.Type)[0]
	}
	if schema.Title != "" {
		out["title"] = schema.Title
	}
	if schema.Description != "" {
		out["description"] = schema.Description
	}
	if schema.Format != "" {
		out["format"] = schema.Format
	}

	if len(schema.Properties) > 0 {
		props := make(map[string]interface{}, len(schema.Properties))
		for name, propRef := range schema.Properties {
			props[name] = resolveSchemaRef(propRef, visited)
		}
		out["properties"] = props
	}

	if schema.Items != nil {
		out["items"] = resolveSchemaRef(schema.Items, visited)
	}

	if len(schema.Required) > 0 {
		out["required"] = schema.Required
	}

	return out
}

// ResolveRequestBodySchema inlines the application/json schema of a
// requestBody, cycle-safe, returning nil when there is no JSON body.
func ResolveRequestBodySchema(body *openapi3.RequestBodyRef) interface{} {
	if body == nil || body.Value == nil {
		return nil
	}
	media := body.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil {
		return nil
	}
	return resolveSchemaRef(media.Schema, map[string]bool{})
}
