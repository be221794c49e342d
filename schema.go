// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package evidencekit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qri-io/jsonschema"
	"github.com/tidwall/gjson"
)

// Schemas for every persisted record type. They are embedded so a
// verification pass years later can parse and check records without the
// acquisition code path that wrote them.
var schemaSources = map[string]string{
	"case": `{
		"$schema": "https://json-schema.org/draft/2019-09/schema#",
		"title": "case",
		"type": "object",
		"required": ["id", "type", "case_id", "investigators", "created", "directory"],
		"properties": {
			"id": {"type": "string"},
			"type": {"type": "string", "const": "case"},
			"case_id": {"type": "string", "minLength": 1},
			"investigators": {"type": "array", "items": {"type": "string"}, "minItems": 1},
			"description": {"type": "string"},
			"created": {"type": "string"},
			"directory": {"type": "string"},
			"evidence_ids": {"type": "array", "items": {"type": "string"}}
		}
	}`,
	"evidence": `{
		"$schema": "https://json-schema.org/draft/2019-09/schema#",
		"title": "evidence",
		"type": "object",
		"required": ["id", "type", "case_id", "sequence", "source", "acquisition", "artifact", "status"],
		"properties": {
			"id": {"type": "string"},
			"type": {"type": "string", "const": "evidence"},
			"case_id": {"type": "string", "minLength": 1},
			"sequence": {"type": "integer", "minimum": 1},
			"source": {"type": "string", "minLength": 1},
			"acquisition": {"type": "string", "enum": ["disk", "memory", "network"]},
			"artifact": {"type": "string", "minLength": 1},
			"algorithms": {"type": "array", "items": {"type": "string"}},
			"status": {"type": "string", "enum": ["in-progress", "complete", "failed", "verified", "verification-failed"]}
		}
	}`,
	"manifest": `{
		"$schema": "https://json-schema.org/draft/2019-09/schema#",
		"title": "manifest",
		"type": "object",
		"required": ["manifest_version", "type", "evidence", "case_id", "artifact", "hashes", "size", "started", "finished", "tool", "tool_version", "completed", "coverage"],
		"properties": {
			"manifest_version": {"type": "integer", "minimum": 1},
			"type": {"type": "string", "const": "manifest"},
			"evidence": {"type": "string"},
			"case_id": {"type": "string"},
			"source": {"type": "string"},
			"acquisition": {"type": "string"},
			"artifact": {"type": "string"},
			"hashes": {"type": "object", "additionalProperties": {"type": "string", "pattern": "^[0-9a-f]*$"}},
			"size": {"type": "integer", "minimum": 0},
			"chunk_size": {"type": "integer"},
			"started": {"type": "string"},
			"finished": {"type": "string"},
			"tool": {"type": "string"},
			"tool_version": {"type": "string"},
			"hostname": {"type": "string"},
			"completed": {"type": "boolean"},
			"coverage": {"type": "string", "enum": ["full", "partial"]},
			"error": {"type": "string"}
		}
	}`,
	"custody-entry": `{
		"$schema": "https://json-schema.org/draft/2019-09/schema#",
		"title": "custody-entry",
		"type": "object",
		"required": ["sequence", "timestamp", "actor", "action", "previous", "digest"],
		"properties": {
			"sequence": {"type": "integer", "minimum": 0},
			"timestamp": {"type": "string"},
			"actor": {"type": "string", "minLength": 1},
			"action": {"type": "string", "minLength": 1},
			"evidence": {"type": "string"},
			"previous": {"type": "string", "pattern": "^[0-9a-f]{64}$"},
			"digest": {"type": "string", "pattern": "^[0-9a-f]{64}$"}
		}
	}`,
}

var schemas map[string]*jsonschema.Schema // nolint:gochecknoglobals

func init() { // nolint:gochecknoinits
	schemas = make(map[string]*jsonschema.Schema)
	for name, content := range schemaSources {
		schema := &jsonschema.Schema{}
		if err := json.Unmarshal([]byte(content), schema); err != nil {
			panic(err)
		}
		schemas[name] = schema
	}
}

// ValidateElement validates a record against the schema named by its type
// field.
func ValidateElement(element JSONElement) (flaws []string, err error) {
	elementType := gjson.GetBytes(element, discriminator)
	if !elementType.Exists() {
		return []string{"element needs to have a type"}, nil
	}
	return ValidateAs(elementType.String(), element)
}

// ValidateAs validates a record against a named schema. Records of unknown
// types pass, the index stores them but makes no guarantees.
func ValidateAs(name string, element JSONElement) (flaws []string, err error) {
	schema, ok := schemas[name]
	if !ok {
		return nil, nil
	}

	errs, err := schema.ValidateBytes(context.Background(), element)
	if err != nil {
		return nil, err
	}
	for _, verr := range errs {
		flaws = append(flaws, fmt.Sprintf("failed to validate element: %s", verr.Error()))
	}
	return flaws, nil
}
