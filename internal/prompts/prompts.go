// Package prompts resolves instruction refs to prompt text from a yaml file
// of text/template bodies.
package prompts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/navapbc/labs-referral-pilot/internal/extract"
)

const (
	CrawlSupports   = "crawl_supports"
	ExtractDocument = "extract_document"
)

var ErrUnknownPrompt = errors.New("unknown prompt")

// Data is what a template can reference.
type Data struct {
	Domain   string
	Schema   string
	Document string
}

type File struct {
	Prompts map[string]string `yaml:"prompts"`
}

type Registry struct {
	tmpl map[string]*template.Template
}

func Load(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return New(f.Prompts)
}

func New(bodies map[string]string) (*Registry, error) {
	r := &Registry{tmpl: make(map[string]*template.Template, len(bodies))}
	for name, body := range bodies {
		t, err := template.New(name).Option("missingkey=error").Parse(body)
		if err != nil {
			return nil, fmt.Errorf("prompt %q: %w", name, err)
		}
		r.tmpl[name] = t
	}
	return r, nil
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tmpl))
	for name := range r.tmpl {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Has(ref string) bool {
	_, ok := r.tmpl[ref]
	return ok
}

func (r *Registry) Render(ref string, d Data) (string, error) {
	t, ok := r.tmpl[ref]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPrompt, ref)
	}
	if d.Schema == "" {
		d.Schema = extract.EntrySchema
	}
	var b strings.Builder
	if err := t.Execute(&b, d); err != nil {
		return "", fmt.Errorf("render %q: %w", ref, err)
	}
	return b.String(), nil
}

// Instruction renders ref for a crawl job on host.
func (r *Registry) Instruction(ref, host string) (string, error) {
	return r.Render(ref, Data{Domain: host})
}

// EnsureDefault writes the built-in prompts to path unless it exists.
func EnsureDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(File{Prompts: Defaults()})
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func Defaults() map[string]string {
	return map[string]string{
		CrawlSupports:   defaultCrawlSupports,
		ExtractDocument: defaultExtractDocument,
	}
}

const defaultCrawlSupports = `Search {{.Domain}} for community support resources such as food, housing,
health care, employment, legal aid and transportation programs.

Return a JSON list of objects, one per resource, matching exactly this schema:
` + "```" + `
{{.Schema}}
` + "```" + `

Rules:
- Output ONLY raw JSON (no markdown fences, no commentary).
- Only include resources described on {{.Domain}}.
- If a field is missing, use null or [] as appropriate.
- "description" is a 2-sentence summary, including offerings.
- Keep strings concise; avoid line breaks inside values.
`

const defaultExtractDocument = `Using only the document content below, return a JSON list of objects.
Each object must match exactly this schema:
` + "```" + `
{{.Schema}}
` + "```" + `

Rules:
- Output ONLY raw JSON (no markdown fences, no commentary).
- If a field is missing in the document, use null or [] as appropriate.
- "description" is a 2-sentence summary, including offerings.
- Keep strings concise; avoid line breaks inside values.

Document content:
{{.Document}}
`
