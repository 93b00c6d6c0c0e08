package tools

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// compileSchemas prepares a validator for every catalog entry.
func compileSchemas() (map[ToolName]*gojsonschema.Schema, error) {
	out := make(map[ToolName]*gojsonschema.Schema, len(catalog))
	for _, d := range catalog {
		s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(d.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", d.Name, err)
		}
		out[d.Name] = s
	}
	return out, nil
}

// validate checks required arguments first, so a missing argument is always
// reported as such, then checks argument types against the schema. Null
// optional arguments count as absent.
func validate(d Descriptor, s *gojsonschema.Schema, args map[string]any) error {
	for _, key := range d.InputSchema.Required {
		if isAbsent(args[key]) {
			return missingArgument(d.Name, key)
		}
	}
	if s == nil {
		return nil
	}

	doc := make(map[string]any, len(args))
	for k, v := range args {
		if v != nil {
			doc[k] = v
		}
	}
	result, err := s.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return invalidArgument(d.Name, fmt.Sprintf("arguments are not valid JSON: %v", err))
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return invalidArgument(d.Name, strings.Join(msgs, "; "))
	}
	return nil
}

func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg returns an integer argument. JSON numbers arrive as float64.
func intArg(args map[string]any, key string) (int, bool) {
	switch t := args[key].(type) {
	case float64:
		if t == float64(int(t)) {
			return int(t), true
		}
	case int:
		return t, true
	case int64:
		return int(t), true
	}
	return 0, false
}
