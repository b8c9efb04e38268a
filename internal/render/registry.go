package render

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"cv-generator/internal/domain"
	"cv-generator/internal/feature"
	"cv-generator/internal/model"
)

// DefaultTemplate is used whenever a requested template id is unknown.
const DefaultTemplate = "modern"

//go:embed templates/*
var templateFS embed.FS

// Renderer turns a résumé plus generated feature fragments into a complete
// HTML document.
type Renderer interface {
	Render(resume *model.Resume, jobID string, featureIDs []domain.FeatureID, features *feature.Result) (string, error)
}

// Theme describes a built-in template: a stylesheet and a body class applied
// to the shared layout.
type Theme struct {
	ID    string
	Name  string
	Class string
}

var builtinThemes = []Theme{
	{ID: "modern", Name: "Modern", Class: "cv-theme-modern"},
	{ID: "classic", Name: "Classic", Class: "cv-theme-classic"},
	{ID: "minimal", Name: "Minimal", Class: "cv-theme-minimal"},
	{ID: "creative", Name: "Creative", Class: "cv-theme-creative"},
	{ID: "executive", Name: "Executive", Class: "cv-theme-executive"},
}

// Registry resolves template ids to cached renderers.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
	layout    *template.Template
	logger    *slog.Logger
	language  string
	now       func() time.Time
}

type Option func(*Registry)

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithLanguage sets the heading language used when a résumé carries none.
func WithLanguage(lang string) Option {
	return func(r *Registry) {
		if lang != "" {
			r.language = lang
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry parses the embedded layout and builds a renderer per built-in
// theme.
func NewRegistry(opts ...Option) (*Registry, error) {
	r := &Registry{
		renderers: make(map[string]Renderer),
		logger:    slog.Default(),
		language:  DefaultLanguage,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	layout, err := template.New("layout.html").Funcs(template.FuncMap{
		"join": strings.Join,
	}).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	r.layout = layout

	for _, th := range builtinThemes {
		css, err := templateFS.ReadFile("templates/" + th.ID + ".css")
		if err != nil {
			return nil, fmt.Errorf("load %s stylesheet: %w", th.ID, err)
		}
		r.renderers[th.ID] = &HTMLRenderer{
			theme:    th,
			css:      template.CSS(css),
			layout:   layout,
			language: r.language,
			now:      r.now,
		}
	}
	return r, nil
}

// Resolve normalises id and maps unknown ids to DefaultTemplate.
func (r *Registry) Resolve(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	r.mu.RLock()
	_, ok := r.renderers[id]
	r.mu.RUnlock()
	if !ok {
		if id != "" {
			r.logger.Debug("unknown template, using default", "template", id, "default", DefaultTemplate)
		}
		return DefaultTemplate
	}
	return id
}

// Get returns the renderer for id, or the default renderer if id is unknown.
func (r *Registry) Get(id string) Renderer {
	id = r.Resolve(id)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.renderers[id]
}

// Register adds or replaces a renderer under id.
func (r *Registry) Register(id string, rd Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[strings.ToLower(id)] = rd
}

// Templates lists the registered template ids in sorted order.
func (r *Registry) Templates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.renderers))
	for id := range r.renderers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
