package extract_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/navapbc/labs-referral-pilot/internal/extract"
)

// ── Accepted output ────────────────────────────────────────────────────────

func TestValidate_FullEntry(t *testing.T) {
	raw := `[{"name":"Food Bank","addresses":["1 Main St"],"phoneNumbers":["555-1234"],
	"emails":["help@foodbank.org"],"website":"https://foodbank.org","description":"Free groceries."}]`

	got, err := extract.Validate(raw)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	e := got[0]
	if e.Name != "Food Bank" {
		t.Errorf("Name = %q", e.Name)
	}
	if len(e.Addresses) != 1 || e.Addresses[0] != "1 Main St" {
		t.Errorf("Addresses = %v", e.Addresses)
	}
	if len(e.PhoneNumbers) != 1 || e.PhoneNumbers[0] != "555-1234" {
		t.Errorf("PhoneNumbers = %v", e.PhoneNumbers)
	}
	if e.Website == nil || *e.Website != "https://foodbank.org" {
		t.Errorf("Website = %v", e.Website)
	}
	if e.Description == nil || *e.Description != "Free groceries." {
		t.Errorf("Description = %v", e.Description)
	}
}

func TestValidate_OmittedOptionalsBecomeEmpty(t *testing.T) {
	got, err := extract.Validate(`[{"name":"A","website":null,"description":null,"emails":null}]`)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	e := got[0]
	if e.Emails == nil || e.Addresses == nil || e.PhoneNumbers == nil {
		t.Errorf("optional arrays must be empty, not nil: %+v", e)
	}
	if len(e.Emails)+len(e.Addresses)+len(e.PhoneNumbers) != 0 {
		t.Errorf("expected empty arrays, got %+v", e)
	}
	if e.Website != nil || e.Description != nil {
		t.Errorf("expected nil website/description, got %+v", e)
	}
}

func TestValidate_EmptyArray(t *testing.T) {
	got, err := extract.Validate(`[]`)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestValidate_ArrayWrappedInProse(t *testing.T) {
	raw := "Here are the resources:\n```json\n[{\"name\":\"Shelter\"}]\n```\nLet me know!"
	got, err := extract.Validate(raw)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Shelter" {
		t.Errorf("got %+v", got)
	}
}

func TestValidate_SnakeCasePhoneNumbers(t *testing.T) {
	got, err := extract.Validate(`[{"name":"A","phone_numbers":["512-000-0000"]}]`)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if len(got[0].PhoneNumbers) != 1 {
		t.Errorf("PhoneNumbers = %v", got[0].PhoneNumbers)
	}
}

func TestValidate_NormalizesText(t *testing.T) {
	raw := `[{"name":"  Caritas \n of Austin ","addresses":["", "  611 Neches St "],
	"description":"<p>Meals and <b>housing</b> help.</p>"}]`
	got, err := extract.Validate(raw)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	e := got[0]
	if e.Name != "Caritas of Austin" {
		t.Errorf("Name = %q", e.Name)
	}
	if len(e.Addresses) != 1 || e.Addresses[0] != "611 Neches St" {
		t.Errorf("Addresses = %q", e.Addresses)
	}
	if e.Description == nil || *e.Description != "Meals and housing help." {
		t.Errorf("Description = %v", e.Description)
	}
}

func TestValidate_KeepsDuplicates(t *testing.T) {
	got, err := extract.Validate(`[{"name":"A"},{"name":"A"}]`)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("validator must not dedupe, len = %d", len(got))
	}
}

// ── Rejected output ────────────────────────────────────────────────────────

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"not json", "I could not find anything.", "no JSON array"},
		{"truncated", `[{"name":"A"`, "no JSON array"},
		{"malformed", `[{"name":"A",}]`, "not a JSON array"},
		{"object not array", `{"name":"A"}`, "no JSON array"},
		{"missing name", `[{"website":"x"}]`, `field "name" is required`},
		{"null name", `[{"name":null}]`, `field "name" is required`},
		{"blank name", `[{"name":"   "}]`, `field "name" must not be empty`},
		{"numeric name", `[{"name":42}]`, `field "name" must be a string`},
		{"second entry bad", `[{"name":"A"},{"addresses":[]}]`, "entry 1"},
		{"null element", `[null]`, "expected an object"},
		{"scalar element", `["A"]`, "not a JSON array of objects"},
		{"website number", `[{"name":"A","website":1}]`, `field "website"`},
		{"emails string", `[{"name":"A","emails":"a@b.c"}]`, `field "emails" must be an array`},
		{"addresses numbers", `[{"name":"A","addresses":[1,2]}]`, `field "addresses"`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := extract.Validate(c.raw)
			if err == nil {
				t.Fatalf("expected error, got %+v", got)
			}
			if got != nil {
				t.Errorf("expected no partial result, got %+v", got)
			}
			var verr *extract.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("error %T is not a ValidationError", err)
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Errorf("error %q does not mention %q", err, c.want)
			}
		})
	}
}
