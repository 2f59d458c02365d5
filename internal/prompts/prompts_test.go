package prompts_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/navapbc/labs-referral-pilot/internal/extract"
	"github.com/navapbc/labs-referral-pilot/internal/prompts"
)

func TestInstruction_RendersDomainAndSchema(t *testing.T) {
	r, err := prompts.New(prompts.Defaults())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := r.Instruction(prompts.CrawlSupports, "example.org")
	if err != nil {
		t.Fatalf("Instruction: %v", err)
	}
	if !strings.Contains(got, "Search example.org") {
		t.Errorf("domain not rendered:\n%s", got)
	}
	if !strings.Contains(got, extract.EntrySchema) {
		t.Errorf("schema not rendered:\n%s", got)
	}
}

func TestRender_Unknown(t *testing.T) {
	r, _ := prompts.New(nil)
	if _, err := r.Render("nope", prompts.Data{}); !errors.Is(err, prompts.ErrUnknownPrompt) {
		t.Errorf("err = %v, want ErrUnknownPrompt", err)
	}
}

func TestNew_BadTemplate(t *testing.T) {
	if _, err := prompts.New(map[string]string{"bad": "{{.Domain"}); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnsureDefaultThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prompts.yml")
	if err := prompts.EnsureDefault(path); err != nil {
		t.Fatalf("EnsureDefault: %v", err)
	}

	r, err := prompts.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := r.Names(); len(got) != 2 || got[0] != prompts.CrawlSupports || got[1] != prompts.ExtractDocument {
		t.Errorf("Names = %v", got)
	}

	doc, err := r.Render(prompts.ExtractDocument, prompts.Data{Document: "Caritas of Austin\n611 Neches St"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(doc), "611 Neches St") {
		t.Errorf("document not rendered:\n%s", doc)
	}
}

func TestEnsureDefault_KeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yml")
	custom := "prompts:\n  crawl_supports: \"Look at {{.Domain}}\"\n"
	if err := os.WriteFile(path, []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := prompts.EnsureDefault(path); err != nil {
		t.Fatalf("EnsureDefault: %v", err)
	}

	r, err := prompts.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, _ := r.Instruction(prompts.CrawlSupports, "example.org")
	if got != "Look at example.org" {
		t.Errorf("custom prompt overwritten: %q", got)
	}
}
