package manifest

import (
	"encoding/json"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vango-dev/fluxreg/internal/errors"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// File is a parsed manifest.
type File struct {
	// Path is the file the manifest was read from.
	Path string

	// Modules are in declaration order.
	Modules []*Module
}

// Module is one module block.
type Module struct {
	Name string

	// Store names the Go store implementation. Defaults to Name.
	Store string

	Actions []string

	// Initial overrides the implementation's initial state when HasInitial
	// is set. Values decode as JSON does: numbers are float64, objects are
	// map[string]any.
	Initial    any
	HasInitial bool

	// Dependencies is nil when the block has no dependencies block.
	Dependencies *Dependencies

	// Range is the location of the block header.
	Range hcl.Range
}

// Dependencies mirrors registry.Dependencies.
type Dependencies struct {
	Stores  []string `hcl:"stores,optional"`
	Actions []string `hcl:"actions,optional"`
}

type hclModule struct {
	Store        string        `hcl:"store,optional"`
	Actions      []string      `hcl:"actions,optional"`
	Initial      *cty.Value    `hcl:"initial,optional"`
	Dependencies *Dependencies `hcl:"dependencies,block"`
}

var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "module", LabelNames: []string{"name"}},
	},
}

// Parse reads and decodes the manifest at path.
func Parse(path string) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, diagError(diags)
	}
	return decode(path, hclFile.Body)
}

// ParseBytes decodes manifest source. filename is used in error locations.
func ParseBytes(src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diagError(diags)
	}
	return decode(filename, hclFile.Body)
}

func decode(path string, body hcl.Body) (*File, error) {
	content, diags := body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, diagError(diags)
	}

	f := &File{Path: path}
	seen := make(map[string]hcl.Range, len(content.Blocks))
	for _, block := range content.Blocks {
		name := block.Labels[0]
		if prev, ok := seen[name]; ok {
			return nil, locate(errors.New("E108").
				WithDetailf("module %q is already declared at %s", name, prev.String()), block.DefRange)
		}
		seen[name] = block.DefRange

		var raw hclModule
		if diags := gohcl.DecodeBody(block.Body, nil, &raw); diags.HasErrors() {
			return nil, diagError(diags)
		}

		m := &Module{
			Name:         name,
			Store:        raw.Store,
			Actions:      raw.Actions,
			Dependencies: raw.Dependencies,
			Range:        block.DefRange,
		}
		if m.Store == "" {
			m.Store = name
		}
		if raw.Initial != nil && !raw.Initial.IsNull() {
			v, err := ctyToGo(*raw.Initial)
			if err != nil {
				return nil, locate(errors.New("E108").
					WithDetailf("module %q: initial value: %v", name, err), block.DefRange)
			}
			m.Initial = v
			m.HasInitial = true
		}
		f.Modules = append(f.Modules, m)
	}
	return f, nil
}

// ctyToGo converts a known cty value through its JSON form.
func ctyToGo(v cty.Value) (any, error) {
	if !v.IsWhollyKnown() {
		return nil, errors.Newf(errors.CategoryDefinition, "value is not known")
	}
	raw, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Names returns the module names in declaration order.
func (f *File) Names() []string {
	names := make([]string, len(f.Modules))
	for i, m := range f.Modules {
		names[i] = m.Name
	}
	return names
}

// diagError reports the first error diagnostic as E108.
func diagError(diags hcl.Diagnostics) error {
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		e := errors.New("E108").WithDetail(d.Summary)
		if d.Detail != "" {
			e.WithDetail(d.Summary + ": " + d.Detail)
		}
		if d.Subject != nil {
			return locate(e, *d.Subject)
		}
		return e.Wrap(diags)
	}
	return errors.New("E108").Wrap(diags)
}

func locate(e *errors.FluxError, rng hcl.Range) *errors.FluxError {
	if rng.Filename == "" {
		return e
	}
	return e.WithLocation(rng.Filename, rng.Start.Line, rng.Start.Column)
}
