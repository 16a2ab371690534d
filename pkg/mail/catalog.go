package mail

import (
	"bytes"
	_ "embed"
	"os"
	"strings"
	"text/template"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// DefaultTemplate is used when a catalog has no entry for the requested key.
const DefaultTemplate = "default"

//go:embed templates.toml
var embeddedCatalog []byte

type catalogFile struct {
	SignOff   string                  `toml:"sign_off"`
	Templates map[string]templateSpec `toml:"templates"`
}

type templateSpec struct {
	Subject string `toml:"subject"`
	Body    string `toml:"body"`
}

type compiledTemplate struct {
	subject *template.Template
	body    *template.Template
}

// Catalog holds parsed subject/body templates keyed by name.
type Catalog struct {
	signOff   string
	templates map[string]compiledTemplate
}

// LoadCatalog parses the embedded catalog and, when path is set, overlays the entries found in that file.
func LoadCatalog(path string) (*Catalog, error) {
	base, err := decodeCatalog(embeddedCatalog)
	if err != nil {
		return nil, errors.Wrap(err, "decode embedded mail catalog")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read mail catalog %s", path)
		}
		override, err := decodeCatalog(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "decode mail catalog %s", path)
		}
		if override.SignOff != "" {
			base.SignOff = override.SignOff
		}
		for name, tpl := range override.Templates {
			base.Templates[name] = tpl
		}
	}
	return compileCatalog(base)
}

// ParseCatalog builds a catalog from raw TOML only.
func ParseCatalog(raw []byte) (*Catalog, error) {
	file, err := decodeCatalog(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode mail catalog")
	}
	return compileCatalog(file)
}

func decodeCatalog(raw []byte) (catalogFile, error) {
	var file catalogFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return file, err
	}
	if file.Templates == nil {
		file.Templates = map[string]templateSpec{}
	}
	return file, nil
}

func compileCatalog(file catalogFile) (*Catalog, error) {
	c := &Catalog{signOff: file.SignOff, templates: make(map[string]compiledTemplate, len(file.Templates))}
	funcs := template.FuncMap{"signoff": func() string { return c.signOff }}
	for name, tpl := range file.Templates {
		subject, err := template.New(name + ".subject").Funcs(funcs).Parse(tpl.Subject)
		if err != nil {
			return nil, errors.Wrapf(err, "parse subject template %s", name)
		}
		body, err := template.New(name + ".body").Funcs(funcs).Parse(tpl.Body)
		if err != nil {
			return nil, errors.Wrapf(err, "parse body template %s", name)
		}
		c.templates[name] = compiledTemplate{subject: subject, body: body}
	}
	if _, ok := c.templates[DefaultTemplate]; !ok {
		return nil, errors.Errorf("mail catalog has no %q template", DefaultTemplate)
	}
	return c, nil
}

// Has reports whether name has a dedicated template.
func (c *Catalog) Has(name string) bool {
	_, ok := c.templates[name]
	return ok
}

// Render executes the named template, falling back to DefaultTemplate.
func (c *Catalog) Render(name string, data interface{}) (string, string, error) {
	tmpl, ok := c.templates[name]
	if !ok {
		tmpl = c.templates[DefaultTemplate]
	}
	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return "", "", errors.Wrapf(err, "render subject %s", name)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return "", "", errors.Wrapf(err, "render body %s", name)
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}
