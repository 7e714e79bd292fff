// Package catalog holds the built-in form templates and the demo seed data.
// Both are embedded YAML documents parsed once at first use.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/artpar/formdesk/internal/core/domain"
)

//go:embed templates.yaml
var templatesYAML []byte

//go:embed seed.yaml
var seedYAML []byte

// =============================================================================
// Types
// =============================================================================

// Template is a starter form a user can copy into the builder.
type Template struct {
	ID          string         `json:"id" yaml:"id"`
	Title       string         `json:"title" yaml:"title"`
	Description string         `json:"description" yaml:"description"`
	Public      bool           `json:"isPublic" yaml:"public"`
	Fields      []domain.Field `json:"fields" yaml:"-"`

	RawFields []fieldDoc `json:"-" yaml:"fields"`
}

// Input converts the template into the body of a create request.
func (t Template) Input() domain.FormInput {
	return domain.FormInput{
		Title:       t.Title,
		Description: t.Description,
		IsPublic:    t.Public,
		Fields:      append([]domain.Field(nil), t.Fields...),
	}
}

// SeedUser is the demo account.
type SeedUser struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// Seed is the demo account and its forms.
type Seed struct {
	User  SeedUser   `yaml:"user"`
	Forms []Template `yaml:"forms"`
}

type fieldDoc struct {
	Label     string   `yaml:"label"`
	Type      string   `yaml:"type"`
	Required  bool     `yaml:"required"`
	Options   []string `yaml:"options"`
	MinLength *int     `yaml:"minLength"`
	MaxLength *int     `yaml:"maxLength"`
	MinValue  *float64 `yaml:"minValue"`
	MaxValue  *float64 `yaml:"maxValue"`
	Pattern   string   `yaml:"pattern"`
}

func (d fieldDoc) field(order int) domain.Field {
	return domain.Field{
		Label:     d.Label,
		Type:      domain.FieldType(d.Type),
		Required:  d.Required,
		Order:     order,
		Options:   d.Options,
		MinLength: d.MinLength,
		MaxLength: d.MaxLength,
		MinValue:  d.MinValue,
		MaxValue:  d.MaxValue,
		Pattern:   d.Pattern,
	}
}

// =============================================================================
// Loading
// =============================================================================

var (
	loadOnce  sync.Once
	templates []Template
	seed      Seed
	loadErr   error
)

func load() {
	var doc struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(templatesYAML, &doc); err != nil {
		loadErr = fmt.Errorf("parsing templates catalog: %w", err)
		return
	}
	if err := yaml.Unmarshal(seedYAML, &seed); err != nil {
		loadErr = fmt.Errorf("parsing seed data: %w", err)
		return
	}

	templates = doc.Templates
	for _, list := range [][]Template{templates, seed.Forms} {
		for i := range list {
			if err := resolve(&list[i]); err != nil {
				loadErr = err
				return
			}
		}
	}
}

func resolve(t *Template) error {
	t.Fields = make([]domain.Field, len(t.RawFields))
	for i, d := range t.RawFields {
		t.Fields[i] = d.field(i)
	}
	if errs := domain.ValidateFields(t.Fields); len(errs) > 0 {
		return fmt.Errorf("template %q: %w", t.ID, errs)
	}
	return nil
}

// Templates returns every built-in template in catalog order.
func Templates() ([]Template, error) {
	loadOnce.Do(load)
	if loadErr != nil {
		return nil, loadErr
	}
	return append([]Template(nil), templates...), nil
}

// Get returns the template with the given id.
func Get(id string) (Template, bool, error) {
	all, err := Templates()
	if err != nil {
		return Template{}, false, err
	}
	for _, t := range all {
		if t.ID == id {
			return t, true, nil
		}
	}
	return Template{}, false, nil
}

// SeedData returns the demo account and forms.
func SeedData() (Seed, error) {
	loadOnce.Do(load)
	if loadErr != nil {
		return Seed{}, loadErr
	}
	return seed, nil
}
