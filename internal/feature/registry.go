package feature

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"

	"cv-generator/internal/domain"
)

var ErrUnknownFeature = errors.New("unknown feature")

const defaultConcurrency = 4

// Registry maps feature ids to generator factories. Instances are built on
// first use and cached for the life of the registry.
type Registry struct {
	mu          sync.Mutex
	factories   map[domain.FeatureID]Factory
	instances   map[domain.FeatureID]Generator
	concurrency int
	logger      *slog.Logger
}

type Option func(*Registry)

// WithConcurrency bounds how many generators run at once.
func WithConcurrency(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithFactory registers or replaces the factory for id.
func WithFactory(id domain.FeatureID, f Factory) Option {
	return func(r *Registry) {
		r.factories[id] = f
	}
}

// NewRegistry returns a registry holding the built-in generators, then applies
// opts on top.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		factories:   builtins(),
		instances:   make(map[domain.FeatureID]Generator),
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the cached generator for id, building it on first use.
func (r *Registry) Get(id domain.FeatureID) (Generator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.instances[id]; ok {
		return g, nil
	}
	f, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, id)
	}
	g, err := f()
	if err != nil {
		return nil, fmt.Errorf("build %s generator: %w", id, err)
	}
	r.instances[id] = g
	return g, nil
}

// Has reports whether a factory is registered for id.
func (r *Registry) Has(id domain.FeatureID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.factories[id]
	return ok
}

type outcome struct {
	id  domain.FeatureID
	out Output
	err error
	ran bool
}

// GenerateFeatures runs the generators for ids concurrently. A failing or
// panicking generator is recorded in Result.Failed and reported to obs; the
// others still run. Styles and scripts are combined in request order. The
// returned error is only set when ctx ends before every generator finished.
func (r *Registry) GenerateFeatures(ctx context.Context, in Input, ids []domain.FeatureID, obs Observer) (*Result, error) {
	if obs == nil {
		obs = nopObserver{}
	}

	outcomes := make([]outcome, len(ids))
	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup

	for i, id := range ids {
		outcomes[i].id = id
		if !r.Has(id) {
			r.logger.Debug("skipping unknown feature", "feature", id, "job_id", in.JobID)
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return r.merge(outcomes), ctx.Err()
		}

		wg.Add(1)
		go func(o *outcome) {
			defer wg.Done()
			defer func() { <-sem }()
			o.ran = true
			obs.FeatureStarted(o.id)
			o.out, o.err = r.run(ctx, o.id, in)
			if o.err != nil {
				r.logger.Warn("feature generation failed", "feature", o.id, "job_id", in.JobID, "error", o.err)
				obs.FeatureFailed(o.id, o.err)
				return
			}
			obs.FeatureCompleted(o.id)
		}(&outcomes[i])
	}
	wg.Wait()

	return r.merge(outcomes), ctx.Err()
}

// run invokes one generator, converting a panic into an error.
func (r *Registry) run(ctx context.Context, id domain.FeatureID, in Input) (out Output, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("feature generator panicked", "feature", id, "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("feature %s panicked: %v", id, p)
		}
	}()

	g, err := r.Get(id)
	if err != nil {
		return Output{}, err
	}
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	return g.Generate(ctx, in)
}

func (r *Registry) merge(outcomes []outcome) *Result {
	res := &Result{
		Fragments: make(map[domain.Slot]template.HTML),
		Failed:    make(map[domain.FeatureID]error),
	}
	var styles, scripts []string
	for _, o := range outcomes {
		if !o.ran {
			continue
		}
		if o.err != nil {
			res.Failed[o.id] = o.err
			continue
		}
		res.Completed = append(res.Completed, o.id)
		if slot, ok := o.id.Slot(); ok && o.out.HTML != "" {
			res.Fragments[slot] = o.out.HTML
		}
		if s := strings.TrimSpace(o.out.Styles); s != "" {
			styles = append(styles, s)
		}
		if s := strings.TrimSpace(o.out.Scripts); s != "" {
			scripts = append(scripts, s)
		}
	}
	res.CombinedStyles = strings.Join(styles, "\n")
	res.CombinedScripts = strings.Join(scripts, "\n")
	return res
}
