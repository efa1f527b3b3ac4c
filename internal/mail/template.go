package mail

import (
	"embed"
	"fmt"
	"github.com/aymerick/raymond"
	"strings"
	"sync"
)

//go:embed templates/*.hbs
var templateFS embed.FS

// Rendered is a message body produced from a template set.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Templates renders the embedded Handlebars templates. A template set named
// "welcome" consists of welcome.subject.hbs, welcome.text.hbs and welcome.html.hbs.
type Templates struct {
	mu    sync.RWMutex
	cache map[string]*raymond.Template
}

func NewTemplates() *Templates {
	return &Templates{cache: make(map[string]*raymond.Template)}
}

func (t *Templates) Render(name string, data map[string]any) (*Rendered, error) {
	subject, err := t.exec(name+".subject.hbs", data)
	if err != nil {
		return nil, err
	}
	text, err := t.exec(name+".text.hbs", data)
	if err != nil {
		return nil, err
	}
	html, err := t.exec(name+".html.hbs", data)
	if err != nil {
		return nil, err
	}
	return &Rendered{
		Subject: strings.TrimSpace(subject),
		Text:    text,
		HTML:    html,
	}, nil
}

func (t *Templates) exec(file string, data map[string]any) (string, error) {
	tpl, err := t.load(file)
	if err != nil {
		return "", err
	}
	out, err := tpl.Exec(data)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", file, err)
	}
	return out, nil
}

func (t *Templates) load(file string) (*raymond.Template, error) {
	t.mu.RLock()
	tpl, ok := t.cache[file]
	t.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	src, err := templateFS.ReadFile("templates/" + file)
	if err != nil {
		return nil, fmt.Errorf("template %s not found: %w", file, err)
	}
	tpl, err = raymond.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}

	t.mu.Lock()
	t.cache[file] = tpl
	t.mu.Unlock()
	return tpl, nil
}
