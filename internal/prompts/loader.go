// Package prompts provides the LLM prompt templates used by the engine.
// Templates are stored as JSON files and embedded at compile time.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// Outreach is the prompt file for email drafting.
const Outreach = "outreach.json"

// RewriteDraft is the key of the draft rewrite prompt in Outreach.
const RewriteDraft = "rewrite-draft"

//go:embed *.json
var promptFiles embed.FS

// Prompt is a rendered prompt: standing instructions plus the per-request message.
type Prompt struct {
	System string
	User   string
}

// Template is one prompt definition. System and User are text/template sources;
// Defaults fill any field that is missing or blank in the render data.
type Template struct {
	System   string            `json:"system"`
	User     string            `json:"user"`
	Defaults map[string]string `json:"defaults,omitempty"`

	name     string
	compiled struct {
		once   sync.Once
		system *template.Template
		user   *template.Template
		err    error
	}
}

var (
	cache   = make(map[string]map[string]*Template)
	cacheMu sync.RWMutex
)

// Get returns the template stored under key in filename.
func Get(filename, key string) (*Template, error) {
	templates, err := loadFile(filename)
	if err != nil {
		return nil, err
	}

	tmpl, ok := templates[key]
	if !ok {
		return nil, fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return tmpl, nil
}

// Render executes the template against data. A placeholder with no value and no
// default is an error.
func (t *Template) Render(data map[string]string) (Prompt, error) {
	t.compiled.once.Do(t.compile)
	if t.compiled.err != nil {
		return Prompt{}, t.compiled.err
	}

	values := make(map[string]string, len(data)+len(t.Defaults))
	for k, v := range t.Defaults {
		values[k] = v
	}
	for k, v := range data {
		if _, hasDefault := t.Defaults[k]; hasDefault && strings.TrimSpace(v) == "" {
			continue
		}
		values[k] = v
	}

	system, err := execute(t.compiled.system, values)
	if err != nil {
		return Prompt{}, fmt.Errorf("prompt %s: %w", t.name, err)
	}
	user, err := execute(t.compiled.user, values)
	if err != nil {
		return Prompt{}, fmt.Errorf("prompt %s: %w", t.name, err)
	}
	return Prompt{System: system, User: user}, nil
}

func (t *Template) compile() {
	parse := func(part, src string) *template.Template {
		if t.compiled.err != nil {
			return nil
		}
		tmpl, err := template.New(t.name + "." + part).Option("missingkey=error").Parse(src)
		if err != nil {
			t.compiled.err = fmt.Errorf("failed to parse prompt %s: %w", t.name, err)
		}
		return tmpl
	}
	t.compiled.system = parse("system", t.System)
	t.compiled.user = parse("user", t.User)
}

func execute(tmpl *template.Template, values map[string]string) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, values); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func loadFile(filename string) (map[string]*Template, error) {
	cacheMu.RLock()
	templates, ok := cache[filename]
	cacheMu.RUnlock()
	if ok {
		return templates, nil
	}

	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}
	for key, tmpl := range templates {
		if strings.TrimSpace(tmpl.User) == "" {
			return nil, fmt.Errorf("prompt %s in %s has no user message", key, filename)
		}
		tmpl.name = key
	}

	cacheMu.Lock()
	cache[filename] = templates
	cacheMu.Unlock()
	return templates, nil
}

// ClearCache clears the prompt cache. Useful for testing.
func ClearCache() {
	cacheMu.Lock()
	cache = make(map[string]map[string]*Template)
	cacheMu.Unlock()
}
