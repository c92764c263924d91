package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

// Verification is the output_verify payload.
type Verification struct {
	Data      interface{} `json:"data"`
	Errors    []string    `json:"errors"`
	Sanitized bool        `json:"sanitized"`
}

// OutputVerify checks a document against a JSON Schema. Top-level members the
// schema forbids through additionalProperties:false are dropped rather than
// reported.
type OutputVerify struct{ tool.Base }

var outputVerifySchema = tool.MustSchema(false,
	tool.Parameter{Name: "data", Type: "object", Description: "Document to verify, or its JSON encoding as a string"},
	tool.Parameter{Name: "schema", Type: "object", Description: "JSON Schema the document must satisfy"},
	tool.Parameter{Name: "strict", Type: "boolean", Description: "Fail with SCHEMA_FAIL on any violation"},
)

func NewOutputVerify() *OutputVerify {
	return &OutputVerify{tool.Base{
		ToolName:    "output_verify",
		Description: "Validate and sanitize a JSON document against a JSON Schema.",
	}}
}

func (t *OutputVerify) Schema() *tool.Schema { return outputVerifySchema }

func (t *OutputVerify) ValidateArgs(args tool.Args) (tool.Args, error) {
	out := args.Clone()

	if raw, ok := args["data"].(string); ok {
		var decoded interface{}
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, tool.NewArgError("data is not valid json")
		}
		out["data"] = decoded
	}

	if s, ok := args["schema"]; ok && s != nil {
		doc, isObject := s.(map[string]interface{})
		if !isObject {
			return nil, tool.NewArgError("schema must be an object")
		}
		if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc)); err != nil {
			return nil, tool.ArgErrorf("schema is invalid: %v", err)
		}
	}

	if v, ok := args["strict"]; ok && v != nil {
		if _, isBool := v.(bool); !isBool {
			return nil, tool.NewArgError("strict must be a boolean")
		}
	}
	return out, nil
}

func (t *OutputVerify) Execute(_ context.Context, args tool.Args) (toolresult.Envelope[Verification], error) {
	data := args["data"]
	strict, _ := args.Bool("strict")

	doc, _ := args["schema"].(map[string]interface{})
	if doc == nil {
		return toolresult.Success(Verification{Data: data, Errors: []string{}}), nil
	}

	data, sanitized := dropUnknownMembers(doc, data)

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return toolresult.Envelope[Verification]{}, fmt.Errorf("failed to compile schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return toolresult.Envelope[Verification]{}, fmt.Errorf("failed to validate data: %w", err)
	}

	violations := []string{}
	for _, e := range result.Errors() {
		violations = append(violations, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}

	if strict && len(violations) > 0 {
		return toolresult.Failure[Verification]("SCHEMA_FAIL", strings.Join(violations, "; ")), nil
	}
	return toolresult.Success(Verification{Data: data, Errors: violations, Sanitized: sanitized}), nil
}

// dropUnknownMembers removes top-level members the schema disallows.
func dropUnknownMembers(schema map[string]interface{}, data interface{}) (interface{}, bool) {
	obj, ok := data.(map[string]interface{})
	if !ok {
		return data, false
	}
	if extra, set := schema["additionalProperties"].(bool); !set || extra {
		return data, false
	}
	props, _ := schema["properties"].(map[string]interface{})

	out := make(map[string]interface{}, len(obj))
	sanitized := false
	for k, v := range obj {
		if _, known := props[k]; !known {
			sanitized = true
			continue
		}
		out[k] = v
	}
	return out, sanitized
}
