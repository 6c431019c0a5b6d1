package synthesis

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const summarySchemaURL = "https://warroom.local/schemas/summary.json"

const summarySchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["title", "strategy", "components", "riskLevel", "complexity"],
  "properties": {
    "title":      {"type": "string", "minLength": 1},
    "strategy":   {"type": "string", "minLength": 1},
    "components": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "riskLevel":  {"enum": ["low", "medium", "high", "critical"]},
    "complexity": {"enum": ["low", "medium", "high"]}
  }
}`

// Validator checks decoded documents against the summary schema.
type Validator struct {
	schema *jsonschema.Schema
}

var (
	validatorOnce sync.Once
	validator     *Validator
	validatorErr  error
)

// NewValidator compiles the summary schema.
func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(summarySchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("synthesis: unmarshal summary schema: %w", err)
	}
	if err := c.AddResource(summarySchemaURL, doc); err != nil {
		return nil, fmt.Errorf("synthesis: add summary schema: %w", err)
	}
	compiled, err := c.Compile(summarySchemaURL)
	if err != nil {
		return nil, fmt.Errorf("synthesis: compile summary schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

func defaultValidator() (*Validator, error) {
	validatorOnce.Do(func() {
		validator, validatorErr = NewValidator()
	})
	return validator, validatorErr
}

// Validate checks a document produced by jsonschema.UnmarshalJSON.
func (v *Validator) Validate(doc any) error {
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSummary, describeViolation(err))
	}
	return nil
}

// ParseSummary extracts a Summary from raw model output. Markdown fences and
// surrounding prose are tolerated; the JSON object itself must satisfy the
// summary schema.
func (v *Validator) ParseSummary(raw string) (Summary, error) {
	content := extractObject(raw)
	if content == "" {
		return Summary{}, fmt.Errorf("%w: no JSON object in response", ErrInvalidSummary)
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(content))
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrInvalidSummary, err)
	}
	if err := v.Validate(doc); err != nil {
		return Summary{}, err
	}
	var summary Summary
	if err := json.Unmarshal([]byte(content), &summary); err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrInvalidSummary, err)
	}
	if summary.Components == nil {
		summary.Components = []string{}
	}
	return summary, nil
}

// ValidateSummary checks an already decoded Summary.
func (v *Validator) ValidateSummary(s Summary) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSummary, err)
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSummary, err)
	}
	return v.Validate(doc)
}

// extractObject strips code fences and returns the outermost {...} span.
func extractObject(raw string) string {
	content := strings.TrimSpace(raw)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return ""
	}
	return content[start : end+1]
}

func describeViolation(err error) string {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	leaves := collectViolations(verr)
	if len(leaves) == 0 {
		return verr.Error()
	}
	return strings.Join(leaves, "; ")
}

func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/" + strings.Join(verr.InstanceLocation, "/")
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}
	var out []string
	for _, cause := range verr.Causes {
		out = append(out, collectViolations(cause)...)
	}
	return out
}
