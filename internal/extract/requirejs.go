package extract

import (
	"context"
	"path"
	"sort"
	"strings"

	"retrospec/internal/jsast"
	"retrospec/internal/project"
)

const RequireJSModuleID = "requirejs-module"

// Dependency names the loader provides itself.
var requireJSMagic = map[string]bool{
	"require": true,
	"exports": true,
	"module":  true,
}

// RequireJSModuleExtractor reads AMD define/require calls and CommonJS
// require('x') calls. A file is a module only when it has at least one
// dependency.
type RequireJSModuleExtractor struct {
	opts Options
}

func NewRequireJSModuleExtractor(opts Options) *RequireJSModuleExtractor {
	return &RequireJSModuleExtractor{opts: opts}
}

func (e *RequireJSModuleExtractor) ID() string { return RequireJSModuleID }

func (e *RequireJSModuleExtractor) ExtractModules(ctx context.Context, f File) ([]project.Module, error) {
	src, err := jsast.Parse(ctx, f.Content)
	if err != nil {
		return nil, err
	}

	id := e.moduleID(f.Path)
	named := false
	var raw []string
	for _, c := range src.CallsTo("define", "require", "requirejs") {
		args := c.Args
		if c.Callee == "define" {
			if len(args) > 0 && args[0].Kind == jsast.KindString {
				if !named {
					id, named = args[0].Str, true
				}
				args = args[1:]
			}
			if len(args) > 0 && args[0].Kind == jsast.KindArray {
				raw = append(raw, args[0].Strings()...)
			}
			continue
		}

		switch {
		case len(args) == 1 && args[0].Kind == jsast.KindString:
			raw = append(raw, args[0].Str)
		case len(args) > 0 && args[0].Kind == jsast.KindArray:
			raw = append(raw, args[0].Strings()...)
		case len(args) > 1 && args[0].Kind == jsast.KindObject && args[1].Kind == jsast.KindArray:
			raw = append(raw, args[1].Strings()...)
		}
	}

	deps := make([]string, 0, len(raw))
	for _, d := range uniqueStrings(raw) {
		if d == "" || requireJSMagic[d] {
			continue
		}
		deps = append(deps, e.resolve(id, d))
	}
	if len(deps) == 0 {
		return nil, nil
	}

	m, err := project.NewModule(id, f.Path, deps, f.Hash)
	if err != nil {
		return nil, err
	}
	return []project.Module{m}, nil
}

// moduleID derives the anonymous module id from a file path relative to
// the base URL.
func (e *RequireJSModuleExtractor) moduleID(p string) string {
	id := strings.TrimSuffix(p, ".js")
	if base := strings.Trim(e.opts.RequireJS.BaseURL, "/"); base != "" && base != "." {
		id = strings.TrimPrefix(id, base+"/")
	}
	return id
}

// resolve maps a dependency reference to a module id: relative references
// are resolved against the requiring module, then path aliases applied.
// Plugin references (text!x) are kept as written.
func (e *RequireJSModuleExtractor) resolve(from, dep string) string {
	if strings.Contains(dep, "!") {
		return dep
	}
	if strings.HasPrefix(dep, "./") || strings.HasPrefix(dep, "../") {
		dep = path.Join(path.Dir(from), dep)
	}
	return applyPaths(e.opts.RequireJS.Paths, dep)
}

// applyPaths rewrites the longest matching alias prefix.
func applyPaths(aliases map[string]string, dep string) string {
	if len(aliases) == 0 {
		return dep
	}
	names := make([]string, 0, len(aliases))
	for k := range aliases {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	for _, name := range names {
		if dep == name {
			return strings.TrimSuffix(aliases[name], ".js")
		}
		if strings.HasPrefix(dep, name+"/") {
			return strings.TrimSuffix(aliases[name], ".js") + dep[len(name):]
		}
	}
	return dep
}

// ParseRequireJSConfig reads baseUrl and paths from the first
// require.config({...}), requirejs.config({...}), require({...}) or
// requirejs({...}) call in content.
func ParseRequireJSConfig(ctx context.Context, content []byte) (RequireJSOptions, bool, error) {
	src, err := jsast.Parse(ctx, content)
	if err != nil {
		return RequireJSOptions{}, false, err
	}

	for _, c := range src.CallsTo("require.config", "requirejs.config", "require", "requirejs") {
		if len(c.Args) == 0 || c.Args[0].Kind != jsast.KindObject {
			continue
		}
		cfg := c.Args[0].Fields
		opts := RequireJSOptions{BaseURL: cfg["baseUrl"].Str}
		if p := cfg["paths"]; p.Kind == jsast.KindObject {
			opts.Paths = make(map[string]string, len(p.Fields))
			for k, v := range p.Fields {
				switch v.Kind {
				case jsast.KindString:
					opts.Paths[k] = v.Str
				case jsast.KindArray:
					// fallback lists: the first entry is the primary location
					if s := v.Strings(); len(s) > 0 {
						opts.Paths[k] = s[0]
					}
				}
			}
		}
		return opts, true, nil
	}
	return RequireJSOptions{}, false, nil
}
