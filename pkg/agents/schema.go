package agents

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// Role names one of the generation roles.
type Role string

const (
	RoleQuery     Role = "query"
	RoleFollowUp  Role = "follow-up"
	RoleSummarize Role = "summarization"
	RoleSynthesis Role = "synthesis"
)

// ErrMalformedResponse matches every ResponseError.
var ErrMalformedResponse = errors.New("malformed model response")

// ResponseError is returned when a model reply cannot be turned into the
// shape a role declares.
type ResponseError struct {
	Role Role
	Raw  string
	Err  error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("malformed %s response: %v", e.Role, e.Err)
}

func (e *ResponseError) Unwrap() error { return e.Err }

func (e *ResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// schemaFor is a rendered response schema and its required properties.
type schemaFor struct {
	text     string
	required []string
}

func newReflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		Anonymous:                 true,
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
}

func reflectSchema(r *jsonschema.Reflector, v any) (schemaFor, error) {
	schema := r.Reflect(v)
	// The draft URI is noise for the model.
	schema.Version = ""

	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return schemaFor{}, fmt.Errorf("failed to marshal JSON schema: %w", err)
	}
	return schemaFor{text: string(b), required: schema.Required}, nil
}

// decodeResponse parses content into out, rejecting unknown fields and
// missing required properties.
func decodeResponse(content string, out any, required []string) error {
	body := stripCodeFence(content)
	if body == "" {
		return errors.New("empty response")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return fmt.Errorf("json parse error: %w", err)
	}
	for _, key := range required {
		if _, ok := fields[key]; !ok {
			return fmt.Errorf("missing required property %q", key)
		}
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("json decode error: %w", err)
	}
	return nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the language tag line, e.g. ```json
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
