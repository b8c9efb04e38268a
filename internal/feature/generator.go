package feature

import (
	"bytes"
	"context"
	"html/template"

	"cv-generator/internal/domain"
	"cv-generator/internal/model"
)

// Input is everything a generator may read. Generators must not mutate it.
type Input struct {
	Resume     *model.Resume
	JobID      string
	Options    map[string]string
	Enrichment domain.Enrichment
}

func (in Input) option(key, def string) string {
	if v, ok := in.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// Output is a generator's contribution. An empty HTML means the feature has
// nothing to place in its slot.
type Output struct {
	HTML    template.HTML
	Styles  string
	Scripts string
}

type Generator interface {
	Generate(ctx context.Context, in Input) (Output, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, in Input) (Output, error)

func (f GeneratorFunc) Generate(ctx context.Context, in Input) (Output, error) {
	return f(ctx, in)
}

// Factory builds a generator. It runs at most once per registry and id.
type Factory func() (Generator, error)

// Observer receives per-feature lifecycle events. Calls may arrive from
// several goroutines at once.
type Observer interface {
	FeatureStarted(id domain.FeatureID)
	FeatureCompleted(id domain.FeatureID)
	FeatureFailed(id domain.FeatureID, err error)
}

type nopObserver struct{}

func (nopObserver) FeatureStarted(domain.FeatureID) {}
func (nopObserver) FeatureCompleted(domain.FeatureID) {}
func (nopObserver) FeatureFailed(domain.FeatureID, error) {}

// Result is the merged output of a feature run.
type Result struct {
	Fragments       map[domain.Slot]template.HTML
	CombinedStyles  string
	CombinedScripts string
	Completed       []domain.FeatureID
	Failed          map[domain.FeatureID]error
}

// execute renders a fragment template into trusted HTML.
func execute(t *template.Template, data interface{}) (template.HTML, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
