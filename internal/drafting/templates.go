// Package drafting renders outreach email drafts from role-keyed templates.
// Drafting is pure: no provider calls, no I/O after the templates are loaded.
package drafting

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// DefaultRole is the template used when no template matches a contact's role category.
const DefaultRole = "default"

// TemplateSpec is one YAML template entry.
type TemplateSpec struct {
	Role    string `yaml:"role"`
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

type templateFile struct {
	Templates []TemplateSpec `yaml:"templates"`
}

type compiled struct {
	subject *template.Template
	body    *template.Template
}

// TemplateSet holds compiled templates keyed by role category.
type TemplateSet struct {
	byRole map[string]compiled
}

// DefaultTemplates returns the built-in template set.
func DefaultTemplates() (*TemplateSet, error) {
	data, err := templateFS.ReadFile("templates/default.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded templates: %w", err)
	}
	return ParseTemplates(data)
}

// LoadTemplates reads a template set from a YAML file. An empty path returns the defaults.
// Roles missing from the file fall back to the built-in templates.
func LoadTemplates(path string) (*TemplateSet, error) {
	defaults, err := DefaultTemplates()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file %s: %w", path, err)
	}
	set, err := ParseTemplates(data)
	if err != nil {
		return nil, fmt.Errorf("templates file %s: %w", path, err)
	}
	for role, tmpl := range defaults.byRole {
		if _, ok := set.byRole[role]; !ok {
			set.byRole[role] = tmpl
		}
	}
	return set, nil
}

// ParseTemplates compiles YAML template data. Every template is test-rendered against
// sample data so field typos fail here rather than while drafting.
func ParseTemplates(data []byte) (*TemplateSet, error) {
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse templates YAML: %w", err)
	}
	if len(file.Templates) == 0 {
		return nil, fmt.Errorf("no templates defined")
	}

	set := &TemplateSet{byRole: make(map[string]compiled, len(file.Templates))}
	for i, spec := range file.Templates {
		role := strings.ToLower(strings.TrimSpace(spec.Role))
		if role == "" {
			return nil, fmt.Errorf("template %d: role is required", i)
		}
		if _, dup := set.byRole[role]; dup {
			return nil, fmt.Errorf("template %d: duplicate role %q", i, role)
		}

		subject, err := template.New(role + "_subject").Option("missingkey=error").Parse(spec.Subject)
		if err != nil {
			return nil, fmt.Errorf("template %q subject: %w", role, err)
		}
		body, err := template.New(role + "_body").Option("missingkey=error").Parse(spec.Body)
		if err != nil {
			return nil, fmt.Errorf("template %q body: %w", role, err)
		}
		c := compiled{subject: subject, body: body}
		if _, _, err := c.render(sampleData()); err != nil {
			return nil, fmt.Errorf("template %q: %w", role, err)
		}
		set.byRole[role] = c
	}
	return set, nil
}

// Roles lists the role categories the set has templates for.
func (s *TemplateSet) Roles() []string {
	roles := make([]string, 0, len(s.byRole))
	for role := range s.byRole {
		roles = append(roles, role)
	}
	return roles
}

func (s *TemplateSet) lookup(role string) (compiled, bool) {
	if c, ok := s.byRole[role]; ok {
		return c, true
	}
	c, ok := s.byRole[DefaultRole]
	return c, ok
}

func (c compiled) render(data templateData) (subject, body string, err error) {
	var sb, bb bytes.Buffer
	if err := c.subject.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("subject: %w", err)
	}
	if err := c.body.Execute(&bb, data); err != nil {
		return "", "", fmt.Errorf("body: %w", err)
	}
	return strings.Join(strings.Fields(sb.String()), " "), strings.TrimSpace(bb.String()), nil
}
