package metrics

import (
	"fmt"
	"regexp"
	"sync"
)

// Registry is what can create metrics.
type Registry struct {
	metrics map[string]*Metric
	l       sync.RWMutex
}

// NewRegistry returns a new registry.
func NewRegistry() *Registry {
	return &Registry{
		metrics: make(map[string]*Metric),
	}
}

const nameRegexString = "^[\\p{L}\\p{N}\\._ !\\?/&#\\(\\)<>%-]{1,128}$"

var compileNameRegex = regexp.MustCompile(nameRegexString)

func checkName(name string) bool {
	return compileNameRegex.MatchString(name)
}

// NewMetric returns a new metric registered to this registry.
func (r *Registry) NewMetric(name string, kind Kind, valueType ...ValueType) (*Metric, error) {
	r.l.Lock()
	defer r.l.Unlock()

	if !checkName(name) {
		return nil, fmt.Errorf("invalid metric name: '%s'", name)
	}
	vt := Default
	if len(valueType) > 0 {
		vt = valueType[0]
	}
	if existing, ok := r.metrics[name]; ok {
		if existing.Kind != kind || existing.Contains != vt {
			return nil, fmt.Errorf("metric '%s' already exists with a different kind or value type", name)
		}
		return existing, nil
	}
	m := &Metric{Name: name, Kind: kind, Contains: vt}
	r.metrics[name] = m
	return m, nil
}

// MustNewMetric returns a new metric registered to this registry and panics
// if there is an error.
func (r *Registry) MustNewMetric(name string, kind Kind, valueType ...ValueType) *Metric {
	m, err := r.NewMetric(name, kind, valueType...)
	if err != nil {
		panic(err)
	}
	return m
}

// Get returns the Metric with the given name. If that metric doesn't exist,
// Get will return nil.
func (r *Registry) Get(name string) *Metric {
	r.l.RLock()
	defer r.l.RUnlock()
	return r.metrics[name]
}

// All returns all registered metrics.
func (r *Registry) All() []*Metric {
	r.l.RLock()
	defer r.l.RUnlock()
	res := make([]*Metric, 0, len(r.metrics))
	for _, m := range r.metrics {
		res = append(res, m)
	}
	return res
}
