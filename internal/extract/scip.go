package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"

	"retrospec/internal/project"
)

const SCIPIndexID = "scip-index"

// SCIPModuleExtractor turns a SCIP index into one module per document.
// A document depends on every other document that defines a symbol it
// references.
type SCIPModuleExtractor struct {
	opts Options
}

func NewSCIPModuleExtractor(opts Options) *SCIPModuleExtractor {
	return &SCIPModuleExtractor{opts: opts}
}

func (e *SCIPModuleExtractor) ID() string { return SCIPIndexID }

func (e *SCIPModuleExtractor) ExtractModules(ctx context.Context, f File) ([]project.Module, error) {
	var index scippb.Index
	if err := proto.Unmarshal(f.Content, &index); err != nil {
		return nil, fmt.Errorf("parse SCIP index: %w", err)
	}

	definedIn := make(map[string]string)
	for _, doc := range index.Documents {
		for _, occ := range doc.Occurrences {
			if isDefinition(occ) && !isLocalSymbol(occ.Symbol) {
				definedIn[occ.Symbol] = doc.RelativePath
			}
		}
	}

	marshal := proto.MarshalOptions{Deterministic: true}
	modules := make([]project.Module, 0, len(index.Documents))
	for _, doc := range index.Documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		seen := make(map[string]struct{})
		for _, occ := range doc.Occurrences {
			if isDefinition(occ) || isLocalSymbol(occ.Symbol) {
				continue
			}
			target, ok := definedIn[occ.Symbol]
			if !ok || target == doc.RelativePath {
				continue
			}
			seen[target] = struct{}{}
		}
		deps := make([]string, 0, len(seen))
		for d := range seen {
			deps = append(deps, d)
		}
		sort.Strings(deps)

		raw, err := marshal.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode document %s: %w", doc.RelativePath, err)
		}
		m, err := project.NewModule(doc.RelativePath, doc.RelativePath, deps, e.opts.Hasher.Sum(raw))
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}

	if err := checkUnique(f.Path, modules); err != nil {
		return nil, err
	}
	return modules, nil
}

func isDefinition(occ *scippb.Occurrence) bool {
	return occ.SymbolRoles&int32(scippb.SymbolRole_Definition) != 0
}

func isLocalSymbol(symbol string) bool {
	return symbol == "" || strings.HasPrefix(symbol, "local ")
}
