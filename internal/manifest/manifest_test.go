package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/vango-dev/fluxreg/internal/errors"
	"github.com/vango-dev/fluxreg/pkg/flux"
	"github.com/vango-dev/fluxreg/pkg/registry"
)

const sample = `
module "Counter" {
  actions = ["increment", "reset"]
  initial = 10

  dependencies {
    stores  = ["History"]
    actions = ["record"]
  }
}

module "History" {
  actions = ["record"]
}

module "Audit" {
  store   = "History"
  actions = ["record"]
  initial = ["boot"]
}
`

func counterImpl() *flux.StoreSpec {
	return &flux.StoreSpec{
		Initial: 0,
		Handlers: map[string]flux.Handler{
			"increment": func(s *flux.Store, args ...any) error {
				s.SetState(flux.StateAs[int](s) + 1)
				return nil
			},
			"reset": func(s *flux.Store, args ...any) error {
				s.SetState(0)
				return nil
			},
		},
		Hydrate: flux.DecodeAs[int](),
	}
}

func historyImpl() *flux.StoreSpec {
	return &flux.StoreSpec{
		Initial: []string{},
		Handlers: map[string]flux.Handler{
			"record": func(s *flux.Store, args ...any) error {
				s.SetState(append(flux.StateAs[[]string](s), args[0].(string)))
				return nil
			},
		},
		Hydrate: flux.DecodeAs[[]string](),
	}
}

func TestParseBytes(t *testing.T) {
	f, err := ParseBytes([]byte(sample), "fluxreg.hcl")
	if err != nil {
		t.Fatalf("ParseBytes() error: %v", err)
	}

	if got := f.Names(); !reflect.DeepEqual(got, []string{"Counter", "History", "Audit"}) {
		t.Errorf("Names() = %v", got)
	}

	counter := f.Modules[0]
	if counter.Store != "Counter" {
		t.Errorf("Store default = %q, want Counter", counter.Store)
	}
	if !counter.HasInitial || counter.Initial != float64(10) {
		t.Errorf("Initial = %#v (has=%v)", counter.Initial, counter.HasInitial)
	}
	if counter.Dependencies == nil || !reflect.DeepEqual(counter.Dependencies.Stores, []string{"History"}) {
		t.Errorf("Dependencies = %+v", counter.Dependencies)
	}
	if counter.Range.Start.Line != 2 {
		t.Errorf("Range line = %d, want 2", counter.Range.Start.Line)
	}

	history := f.Modules[1]
	if history.HasInitial || history.Dependencies != nil {
		t.Errorf("History = %+v", history)
	}

	audit := f.Modules[2]
	if audit.Store != "History" {
		t.Errorf("Audit.Store = %q", audit.Store)
	}
	if !reflect.DeepEqual(audit.Initial, []any{"boot"}) {
		t.Errorf("Audit.Initial = %#v", audit.Initial)
	}
}

func TestParseBytes_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"syntax", "module \"A\" {\n  actions = [\n", 0},
		{"unknown attribute", "module \"A\" {\n  color = \"red\"\n}\n", 2},
		{"unknown block", "thing \"A\" {}\n", 1},
		{"wrong type", "module \"A\" {\n  actions = 3\n}\n", 2},
		{"duplicate module", "module \"A\" {}\nmodule \"A\" {}\n", 2},
		{"variable reference", "module \"A\" {\n  initial = var.x\n}\n", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.src), "test.hcl")
			if !errors.HasCode(err, "E108") {
				t.Fatalf("error = %v, want E108", err)
			}
			fe := err.(*errors.FluxError)
			if tt.line > 0 && (fe.Location == nil || fe.Location.Line != tt.line) {
				t.Errorf("Location = %v, want line %d", fe.Location, tt.line)
			}
		})
	}
}

func TestParse_FileContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fluxreg.hcl")
	if err := os.WriteFile(path, []byte("module \"A\" {\n  colour = 1\n}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Parse(path)
	fe, ok := err.(*errors.FluxError)
	if !ok || fe.Code != "E108" {
		t.Fatalf("Parse() error = %v, want E108", err)
	}
	if fe.Location == nil || fe.Location.File != path {
		t.Errorf("Location = %v", fe.Location)
	}
	if len(fe.Context) == 0 {
		t.Error("expected source context lines")
	}

	if _, err := Parse(filepath.Join(t.TempDir(), "missing.hcl")); !errors.HasCode(err, "E108") {
		t.Errorf("Parse() of missing file error = %v, want E108", err)
	}
}

func TestBind(t *testing.T) {
	f, err := ParseBytes([]byte(sample), "fluxreg.hcl")
	if err != nil {
		t.Fatal(err)
	}
	impls := map[string]*flux.StoreSpec{
		"Counter": counterImpl(),
		"History": historyImpl(),
		"Unused":  {},
	}

	defs, err := Bind(f, impls)
	if err != nil {
		t.Fatalf("Bind() error: %v", err)
	}
	if len(defs) != 3 {
		t.Fatalf("len(defs) = %d, want 3", len(defs))
	}
	if defs["Counter"].Store.Initial != 10 {
		t.Errorf("Counter initial = %#v, want int 10", defs["Counter"].Store.Initial)
	}
	if impls["Counter"].Initial != 0 {
		t.Error("Bind modified the implementation spec")
	}
	if defs["Audit"].Store == defs["History"].Store {
		t.Error("modules sharing an implementation share a spec pointer")
	}

	reg, err := registry.New(defs)
	if err != nil {
		t.Fatalf("registry.New() error: %v", err)
	}
	reg.MustAction("increment").Trigger()
	reg.MustAction("record").Trigger("hello")

	if got := reg.MustStore("Counter").State(); got != 11 {
		t.Errorf("Counter = %v, want 11", got)
	}
	if got := flux.StateAs[[]string](reg.MustStore("Audit")); !reflect.DeepEqual(got, []string{"boot", "hello"}) {
		t.Errorf("Audit = %v", got)
	}
	if got := flux.StateAs[[]string](reg.MustStore("History")); !reflect.DeepEqual(got, []string{"hello"}) {
		t.Errorf("History = %v", got)
	}
}

func TestBind_Problems(t *testing.T) {
	src := `
module "Ghost" {}

module "Counter" {
  initial = "ten"
}
`
	f, err := ParseBytes([]byte(src), "fluxreg.hcl")
	if err != nil {
		t.Fatal(err)
	}

	_, err = Bind(f, map[string]*flux.StoreSpec{"Counter": counterImpl()})
	ve, ok := err.(*registry.ValidationError)
	if !ok {
		t.Fatalf("Bind() error = %T %v, want *registry.ValidationError", err, err)
	}
	if got := ve.Codes(); !reflect.DeepEqual(got, []string{"E109", "E141"}) {
		t.Errorf("Codes() = %v", got)
	}
	if ve.Problems[0].Location == nil || ve.Problems[0].Location.Line != 2 {
		t.Errorf("E109 location = %v", ve.Problems[0].Location)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fluxreg.hcl")
	if err := os.WriteFile(path, []byte(sample), 0644); err != nil {
		t.Fatal(err)
	}

	reg, err := Load(path, map[string]*flux.StoreSpec{
		"Counter": counterImpl(),
		"History": historyImpl(),
	})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !reflect.DeepEqual(reg.Names(), []string{"Audit", "Counter", "History"}) {
		t.Errorf("Names() = %v", reg.Names())
	}
}
