package quadsprite

import (
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

var (
	// ErrEmptyPipeline is returned when a pipeline is built with no stages.
	ErrEmptyPipeline = errors.New("quadsprite: pipeline has no stages")
	// ErrUnknownStage is returned when a stage name has no transform.
	ErrUnknownStage = errors.New("quadsprite: pipeline stage has no transform")
	// ErrNilTransform is returned when a stage maps to a nil transform.
	ErrNilTransform = errors.New("quadsprite: pipeline transform is nil")
)

// Transform is one pipeline stage. The owner is passed on every call so stages
// never need to capture it.
type Transform[O, A any] func(owner O, data any, key string, attrs A) (any, error)

// PipelineSettings configures a Pipeline.
type PipelineSettings[O, A any] struct {
	// Stages lists stage names in execution order.
	Stages []string
	// Transforms maps each stage name to its function.
	Transforms map[string]Transform[O, A]
	// NoMakeCache disables storing results.
	NoMakeCache bool
	// NoUseCache disables returning stored results.
	NoUseCache bool
}

// Pipeline runs an ordered list of transforms over an input and memoizes the
// result of every stage per key. Caches grow until ClearCache is called.
type Pipeline[O, A any] struct {
	owner      O
	stages     []string
	transforms []Transform[O, A]
	makeCache  bool
	useCache   bool

	cache     map[string]any
	cacheFull map[string]map[string]any
}

// NewPipeline validates the settings and returns a pipeline bound to owner.
// Every stage must have a non-nil transform.
func NewPipeline[O, A any](owner O, settings PipelineSettings[O, A]) (*Pipeline[O, A], error) {
	if len(settings.Stages) == 0 {
		return nil, ErrEmptyPipeline
	}
	p := &Pipeline[O, A]{
		owner:      owner,
		stages:     append([]string(nil), settings.Stages...),
		transforms: make([]Transform[O, A], len(settings.Stages)),
		makeCache:  !settings.NoMakeCache,
		useCache:   !settings.NoUseCache,
		cache:      make(map[string]any),
		cacheFull:  make(map[string]map[string]any, len(settings.Stages)),
	}
	for i, name := range settings.Stages {
		fn, ok := settings.Transforms[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStage, name)
		}
		if fn == nil {
			return nil, fmt.Errorf("%w: %q", ErrNilTransform, name)
		}
		p.transforms[i] = fn
		p.cacheFull[name] = make(map[string]any)
	}
	return p, nil
}

// Stages returns the stage names in execution order.
func (p *Pipeline[O, A]) Stages() []string {
	return append([]string(nil), p.stages...)
}

// cacheKey defaults an empty key to the data itself when the data is a string.
func cacheKey(data any, key string) (string, bool) {
	if key != "" {
		return key, true
	}
	if s, ok := data.(string); ok {
		return s, true
	}
	return "", false
}

// Process runs data through every stage and returns the final output.
// A cached result for key is returned without running any stage.
func (p *Pipeline[O, A]) Process(data any, key string, attrs A) (any, error) {
	key, keyed := cacheKey(data, key)
	if keyed && p.useCache {
		if out, ok := p.cache[key]; ok {
			return out, nil
		}
	}
	out, _, err := p.run(data, key, attrs, false)
	if err != nil {
		return nil, err
	}
	if keyed && p.makeCache {
		p.cache[key] = out
	}
	return out, nil
}

// ProcessFull runs data through every stage and returns each stage's output
// keyed by stage name. It always runs the stages.
func (p *Pipeline[O, A]) ProcessFull(data any, key string, attrs A) (map[string]any, error) {
	key, keyed := cacheKey(data, key)
	out, full, err := p.run(data, key, attrs, true)
	if err != nil {
		return nil, err
	}
	if keyed && p.makeCache {
		p.cache[key] = out
	}
	return full, nil
}

func (p *Pipeline[O, A]) run(data any, key string, attrs A, collect bool) (any, map[string]any, error) {
	var full map[string]any
	if collect {
		full = make(map[string]any, len(p.stages))
	}
	stageOut := make([]any, len(p.stages))
	for i, fn := range p.transforms {
		var err error
		data, err = fn(p.owner, data, key, attrs)
		if err != nil {
			return nil, nil, fmt.Errorf("quadsprite: stage %q for %q: %w", p.stages[i], key, err)
		}
		stageOut[i] = data
		if collect {
			full[p.stages[i]] = data
		}
	}
	// Stage results are only stored once the whole run succeeded.
	if p.makeCache && key != "" {
		for i, name := range p.stages {
			p.cacheFull[name][key] = stageOut[i]
		}
	}
	return data, full, nil
}

// Cached returns the final result stored for key.
func (p *Pipeline[O, A]) Cached(key string) (any, bool) {
	out, ok := p.cache[key]
	return out, ok
}

// CachedStage returns the output of one stage stored for key.
func (p *Pipeline[O, A]) CachedStage(stage, key string) (any, bool) {
	m, ok := p.cacheFull[stage]
	if !ok {
		return nil, false
	}
	out, ok := m[key]
	return out, ok
}

// Len returns the number of cached final results.
func (p *Pipeline[O, A]) Len() int {
	return len(p.cache)
}

// ClearCached forgets every result stored for key.
func (p *Pipeline[O, A]) ClearCached(key string) {
	delete(p.cache, key)
	for _, m := range p.cacheFull {
		delete(m, key)
	}
}

// ClearCache forgets all stored results.
func (p *Pipeline[O, A]) ClearCache() {
	clear(p.cache)
	for _, m := range p.cacheFull {
		clear(m)
	}
}

// DumpStages runs ProcessFull and renders every stage's output for debugging.
func (p *Pipeline[O, A]) DumpStages(data any, key string, attrs A) (string, error) {
	full, err := p.ProcessFull(data, key, attrs)
	if err != nil {
		return "", err
	}
	cfg := spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true}
	var out string
	for _, name := range p.stages {
		out += name + ": " + cfg.Sdump(full[name])
	}
	return out, nil
}
