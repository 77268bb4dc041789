package execute

import (
	"fmt"
	"sort"
	"strings"

	"retrospec/internal/errors"
)

// Factory builds an executor for the given options.
type Factory func(Options) (Executor, error)

// Registry maps executor ids, including legacy aliases, to factories.
type Registry struct {
	factories map[string]Factory
	aliases   map[string]string
}

// NewRegistry returns a registry holding every built-in executor.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		aliases:   make(map[string]string),
	}

	r.Register(ListID, func(o Options) (Executor, error) { return NewList(o), nil }, "dry-run")
	r.Register(CommandID, func(o Options) (Executor, error) {
		e, err := NewCommand(o)
		if err != nil {
			return nil, err
		}
		return e, nil
	})
	r.Register(KarmaID, func(o Options) (Executor, error) { return NewKarma(o), nil },
		"angular-test-suite-executor")
	r.Register(JQM144ID, func(o Options) (Executor, error) { return NewJQM(JQM144ID, false, o), nil },
		"jqm-test-suite-executor-144", "jqm-test-suite-executor")
	r.Register(JQM131ID, func(o Options) (Executor, error) { return NewJQM(JQM131ID, true, o), nil },
		"jqm-test-suite-executor-131")
	r.Register(KarmaTemplateID, func(o Options) (Executor, error) { return NewKarmaTemplate(o), nil },
		"angular-js-test-suite-executor")
	r.Register(UIBootstrapID, func(o Options) (Executor, error) {
		if o.KarmaTemplate == "" {
			o.KarmaTemplate = UIBootstrapTemplate
		}
		e := NewKarmaTemplate(o)
		e.id = UIBootstrapID
		e.output = UIBootstrapOutput
		return e, nil
	}, "ui-bootstrap-test-suite-executor")

	return r
}

// Register adds an executor under id and any aliases.
func (r *Registry) Register(id string, f Factory, aliases ...string) {
	r.factories[id] = f
	for _, a := range aliases {
		r.aliases[strings.ToLower(a)] = id
	}
}

// Executor resolves id and builds the executor.
func (r *Registry) Executor(id string, opts Options) (Executor, error) {
	if c, ok := r.aliases[strings.ToLower(id)]; ok {
		id = c
	}
	f, ok := r.factories[id]
	if !ok {
		return nil, errors.New(errors.UnknownExecutor,
			fmt.Sprintf("unknown executor %q (available: %s)", id, strings.Join(r.IDs(), ", ")), nil)
	}
	e, err := f(opts)
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, fmt.Sprintf("executor %q", id), err)
	}
	return e, nil
}

// IDs lists the canonical executor ids.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.factories))
	for id := range r.factories {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
