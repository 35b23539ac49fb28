package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrMalformed is returned when model output cannot be turned into an
// AnalysisResult.
var ErrMalformed = errors.New("malformed analysis response")

var (
	delimited = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(JSONStart) + `(.*?)` + regexp.QuoteMeta(JSONEnd))
	fenced    = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
)

// resultSchema is the contract AnalysisPrompt asks for. Models sometimes nest
// the payload under "data"; that wrapper is removed before validation.
const resultSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["containsFood"],
  "properties": {
    "containsFood": {"type": "boolean"},
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "calories"],
        "properties": {
          "name": {"type": "string"},
          "calories": {"type": "number"},
          "protein": {"type": "number"},
          "carbs": {"type": "number"},
          "fat": {"type": "number"}
        }
      }
    },
    "totalCalories": {"type": "number"},
    "totalProtein": {"type": "number"},
    "totalCarbs": {"type": "number"},
    "totalFat": {"type": "number"},
    "healthierAlternatives": {"type": ["string", "null"]}
  },
  "if": {"properties": {"containsFood": {"const": true}}},
  "then": {"required": ["items", "totalCalories", "totalProtein", "totalCarbs", "totalFat"]}
}`

var schemaLoader = gojsonschema.NewStringLoader(resultSchema)

// ExtractJSON isolates the JSON payload from raw model text: the content
// between the delimiters when present, otherwise the text without a Markdown
// code fence, otherwise the trimmed text itself. Output cut off before the
// closing delimiter keeps everything after the opening one.
func ExtractJSON(raw string) string {
	if m := delimited.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	if _, after, ok := strings.Cut(raw, JSONStart); ok {
		raw = after
	}
	text := strings.TrimSpace(raw)
	if m := fenced.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// ParseResponse decodes raw model text into an AnalysisResult. It is a pure
// function of raw. A truthy "error" key in the payload yields a result with
// Error set rather than a Go error; a falsy one is ignored.
func ParseResponse(raw string) (*AnalysisResult, error) {
	body := ExtractJSON(raw)

	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if inner, ok := doc["data"].(map[string]any); ok {
		doc = inner
	}

	if errVal, ok := doc["error"]; ok && truthy(errVal) {
		res := NoFood()
		res.Error = fmt.Sprint(errVal)
		if msg, ok := doc["message"].(string); ok {
			res.Message = msg
		}
		res.RawResponse = raw
		return res, nil
	}
	delete(doc, "error")
	return decodeValidated(doc, raw)
}

func decodeValidated(doc map[string]any, raw string) (*AnalysisResult, error) {
	validation, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !validation.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, describe(validation.Errors()))
	}

	// Re-encode the validated document so "data"-wrapped payloads decode the
	// same way as flat ones.
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var res AnalysisResult
	if err := json.Unmarshal(normalized, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !res.ContainsFood {
		res = *NoFood()
	}
	if res.Items == nil {
		res.Items = []FoodItem{}
	}
	res.RawResponse = raw
	return &res, nil
}

// truthy reports whether v would count as true in the loosely typed payloads
// models produce: empty strings, false, zero and null do not.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return true
	}
}

func describe(errs []gojsonschema.ResultError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, "; ")
}
