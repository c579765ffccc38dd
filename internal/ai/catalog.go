package ai

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Scope tells which object a prompt is applied to.
type Scope string

const (
	ScopeNews    Scope = "news"
	ScopeMarket  Scope = "market"
	ScopeGeneral Scope = "general"
)

// Prompt is one catalog entry.
type Prompt struct {
	Key      string `yaml:"key"`
	Title    string `yaml:"title"`
	Scope    Scope  `yaml:"scope"`
	Template string `yaml:"template"`

	tmpl *template.Template
}

// Catalog is an ordered, immutable set of prompts.
type Catalog struct {
	prompts []*Prompt
	byKey   map[string]*Prompt
}

// DefaultCatalog parses the embedded prompts.yaml.
func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(defaultPrompts)
}

// LoadCatalog parses a YAML catalog and compiles every template.
func LoadCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Prompts []*Prompt `yaml:"prompts"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ai: parse catalog: %w", err)
	}
	c := &Catalog{byKey: make(map[string]*Prompt, len(doc.Prompts))}
	for i, p := range doc.Prompts {
		p.Key = strings.TrimSpace(p.Key)
		switch {
		case p.Key == "":
			return nil, fmt.Errorf("ai: prompt #%d: empty key", i)
		case c.byKey[p.Key] != nil:
			return nil, fmt.Errorf("ai: prompt %q: duplicate key", p.Key)
		case p.Scope != ScopeNews && p.Scope != ScopeMarket && p.Scope != ScopeGeneral:
			return nil, fmt.Errorf("ai: prompt %q: unknown scope %q", p.Key, p.Scope)
		case strings.TrimSpace(p.Template) == "":
			return nil, fmt.Errorf("ai: prompt %q: empty template", p.Key)
		}
		tmpl, err := template.New(p.Key).Option("missingkey=zero").Parse(p.Template)
		if err != nil {
			return nil, fmt.Errorf("ai: prompt %q: %w", p.Key, err)
		}
		p.tmpl = tmpl
		if p.Title == "" {
			p.Title = p.Key
		}
		c.prompts = append(c.prompts, p)
		c.byKey[p.Key] = p
	}
	return c, nil
}

// Get returns the prompt with key.
func (c *Catalog) Get(key string) (Prompt, bool) {
	p, ok := c.byKey[key]
	if !ok {
		return Prompt{}, false
	}
	return *p, true
}

// List returns prompts of scope in catalog order; empty scope lists all.
func (c *Catalog) List(scope Scope) []Prompt {
	out := make([]Prompt, 0, len(c.prompts))
	for _, p := range c.prompts {
		if scope == "" || p.Scope == scope {
			out = append(out, *p)
		}
	}
	return out
}

// Len is the number of prompts.
func (c *Catalog) Len() int { return len(c.prompts) }

// Render fills the template of key with input.
func (c *Catalog) Render(key string, input map[string]string) (string, error) {
	p, ok := c.byKey[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPrompt, key)
	}
	var b strings.Builder
	if err := p.tmpl.Execute(&b, input); err != nil {
		return "", fmt.Errorf("ai: render %q: %w", key, err)
	}
	return strings.TrimSpace(b.String()), nil
}
