package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/navapbc/labs-referral-pilot/internal/domain"
)

// EntrySchema is shown to the generator so it knows the expected shape.
const EntrySchema = `[
  {
    "name": string;
    "website": string | null;
    "emails": string[];
    "addresses": string[];
    "phoneNumbers": string[];
    "description": string | null;
  }
]`

// ValidationError is a non-conforming generator output. Its message is
// fed back to the generator on the next attempt.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Validate decodes raw generator output into entries. The output must be,
// or contain, a JSON array of objects each carrying a string "name".
// Any violation fails the whole output.
func Validate(raw string) ([]domain.ExtractedEntry, error) {
	body, err := arraySpan(raw)
	if err != nil {
		return nil, err
	}

	var items []map[string]json.RawMessage
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&items); err != nil {
		return nil, invalidf("output is not a JSON array of objects: %v", err)
	}
	if dec.More() {
		return nil, invalidf("unexpected data after the JSON array")
	}

	out := make([]domain.ExtractedEntry, 0, len(items))
	for i, item := range items {
		if item == nil {
			return nil, invalidf("entry %d: expected an object, got null", i)
		}
		e, err := decodeEntry(item)
		if err != nil {
			return nil, invalidf("entry %d: %s", i, err.Error())
		}
		out = append(out, e)
	}
	return out, nil
}

func arraySpan(raw string) (string, error) {
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start == -1 || end == -1 || end < start {
		return "", invalidf("no JSON array found in output")
	}
	return raw[start : end+1], nil
}

func decodeEntry(item map[string]json.RawMessage) (domain.ExtractedEntry, error) {
	var e domain.ExtractedEntry

	name, err := requiredString(item, "name")
	if err != nil {
		return e, err
	}
	e.Name = name

	website, err := optionalString(item, "website")
	if err != nil {
		return e, err
	}
	e.Website = optional(CleanText(website))

	desc, err := optionalString(item, "description")
	if err != nil {
		return e, err
	}
	e.Description = optional(plainText(desc))

	if e.Emails, err = stringList(item, "emails"); err != nil {
		return e, err
	}
	if e.Addresses, err = stringList(item, "addresses"); err != nil {
		return e, err
	}
	if e.PhoneNumbers, err = stringList(item, "phoneNumbers", "phone_numbers"); err != nil {
		return e, err
	}
	return e, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || strings.TrimSpace(string(raw)) == "null"
}

func requiredString(item map[string]json.RawMessage, key string) (string, error) {
	raw, ok := item[key]
	if !ok || isNull(raw) {
		return "", fmt.Errorf("field %q is required", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("field %q must be a string", key)
	}
	s = CleanText(s)
	if s == "" {
		return "", fmt.Errorf("field %q must not be empty", key)
	}
	return s, nil
}

func optionalString(item map[string]json.RawMessage, key string) (string, error) {
	raw, ok := item[key]
	if !ok || isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("field %q must be a string or null", key)
	}
	return s, nil
}

// stringList reads the first present key; later keys are accepted aliases.
func stringList(item map[string]json.RawMessage, keys ...string) ([]string, error) {
	for _, key := range keys {
		raw, ok := item[key]
		if !ok {
			continue
		}
		if isNull(raw) {
			return []string{}, nil
		}
		var xs []string
		if err := json.Unmarshal(raw, &xs); err != nil {
			return nil, fmt.Errorf("field %q must be an array of strings", key)
		}
		return cleanList(xs), nil
	}
	return []string{}, nil
}
