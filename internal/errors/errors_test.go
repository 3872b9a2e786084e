package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "definition error",
			code:    "E101",
			wantMsg: "Definition has no store",
			wantCat: CategoryDefinition,
		},
		{
			name:    "hydration error",
			code:    "E140",
			wantMsg: "No matching store",
			wantCat: CategoryHydration,
		},
		{
			name:    "snapshot error",
			code:    "E181",
			wantMsg: "Corrupt snapshot",
			wantCat: CategorySnapshot,
		},
		{
			name:    "unknown error code",
			code:    "E999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryConfig, "file %q not found", "fluxreg.json")
	if err.Message != `file "fluxreg.json" not found` {
		t.Errorf("Message = %q, want %q", err.Message, `file "fluxreg.json" not found`)
	}
	if err.Category != CategoryConfig {
		t.Errorf("Category = %q, want %q", err.Category, CategoryConfig)
	}
}

func TestFluxError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *FluxError
		want string
	}{
		{"code only", New("E101"), "E101: Definition has no store"},
		{"with detail", New("E101").WithDetail(`module "Counter"`), `E101: Definition has no store: module "Counter"`},
		{"wrapped", New("E107").Wrap(fmt.Errorf("boom")), "E107: Store init failed: boom"},
		{"no code", &FluxError{Message: "test error"}, "test error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFluxError_WithLocation(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "modules.hcl")
	content := `module "Counter" {
  actions = ["increment"]
}

module "Todo" {
  actions = ["add"]
}
`
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	err := New("E108").WithLocation(tmpFile, 5, 1)

	if err.Location == nil {
		t.Fatal("Location is nil")
	}
	if err.Location.File != tmpFile {
		t.Errorf("Location.File = %q, want %q", err.Location.File, tmpFile)
	}
	if err.Location.Line != 5 {
		t.Errorf("Location.Line = %d, want %d", err.Location.Line, 5)
	}
	if len(err.Context) == 0 {
		t.Error("Context should not be empty")
	}
}

func TestFluxError_Builders(t *testing.T) {
	err := New("E102").
		WithDetailf("%s depends on %s", "Todo", "Counter").
		WithSuggestion("Define a Counter module")

	if err.Detail != "Todo depends on Counter" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if err.Suggestion != "Define a Counter module" {
		t.Errorf("Suggestion = %q", err.Suggestion)
	}
}

func TestFluxError_Wrap(t *testing.T) {
	inner := New("E180")
	outer := New("E181").Wrap(inner)

	if outer.Wrapped != inner {
		t.Error("Wrapped error mismatch")
	}
	if outer.Unwrap() != inner {
		t.Error("Unwrap() should return wrapped error")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E101") != nil {
		t.Error("FromError(nil, ...) should return nil")
	}

	fe := New("E101")
	if FromError(fe, "E102") != fe {
		t.Error("FromError should return FluxError as-is")
	}

	stdErr := &testError{msg: "test error"}
	result := FromError(stdErr, "E180")
	if result.Wrapped != stdErr {
		t.Error("Standard error should be wrapped")
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("restore: %w", New("E181").Wrap(New("E180")))

	if !HasCode(err, "E181") {
		t.Error("HasCode should find E181 through fmt wrapping")
	}
	if !HasCode(err, "E180") {
		t.Error("HasCode should find nested E180")
	}
	if HasCode(err, "E101") {
		t.Error("HasCode should not find E101")
	}
	if HasCode(nil, "E101") {
		t.Error("HasCode(nil) should be false")
	}
}

type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}

func TestLocation_String(t *testing.T) {
	tests := []struct {
		name string
		loc  *Location
		want string
	}{
		{"nil location", nil, ""},
		{"with column", &Location{File: "modules.hcl", Line: 10, Column: 5}, "modules.hcl:10:5"},
		{"without column", &Location{File: "modules.hcl", Line: 10}, "modules.hcl:10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.loc.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("E102").
		WithDetail(`"Todo" depends on the store "Counter"`).
		WithSuggestion("Define a Counter module")

	formatted := err.Format()

	for _, want := range []string{"E102", "Unknown store dependency", `"Counter"`, "Hint:", "Learn more:"} {
		if !strings.Contains(formatted, want) {
			t.Errorf("Format should contain %q, got:\n%s", want, formatted)
		}
	}
}

func TestFormat_FallsBackToTemplateDetail(t *testing.T) {
	DisableColors()
	defer EnableColors()

	formatted := New("E101").Format()
	if !strings.Contains(formatted, "must contain a store spec") {
		t.Errorf("Format should include registered detail, got:\n%s", formatted)
	}
}

func TestMarshalJSON(t *testing.T) {
	err := New("E108").WithLocation("modules.hcl", 10, 5).Wrap(fmt.Errorf("boom"))

	data, jerr := json.Marshal(err)
	if jerr != nil {
		t.Fatalf("Marshal() error: %v", jerr)
	}
	var got map[string]any
	if jerr := json.Unmarshal(data, &got); jerr != nil {
		t.Fatal(jerr)
	}

	if got["code"] != "E108" || got["category"] != "definition" || got["message"] != "Invalid manifest" {
		t.Errorf("fields = %v", got)
	}
	if got["cause"] != "boom" {
		t.Errorf("cause = %v, want boom", got["cause"])
	}
	loc, _ := got["location"].(map[string]any)
	if loc["file"] != "modules.hcl" || loc["line"] != float64(10) {
		t.Errorf("location = %v", got["location"])
	}
}

func TestFprint(t *testing.T) {
	DisableColors()
	defer EnableColors()

	tests := []struct {
		name string
		err  error
		want []string
	}{
		{"flux error", New("E101"), []string{"E101", "Definition has no store"}},
		{"joined", stderrors.Join(New("E102"), New("E103")), []string{"E102", "E103"}},
		{"plain", fmt.Errorf("disk full"), []string{"ERROR: disk full"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			Fprint(&b, tt.err)
			for _, want := range tt.want {
				if !strings.Contains(b.String(), want) {
					t.Errorf("output missing %q:\n%s", want, b.String())
				}
			}
		})
	}
}

func TestGetAllCodes(t *testing.T) {
	codes := GetAllCodes()
	if len(codes) == 0 {
		t.Fatal("GetAllCodes() should return codes")
	}
	for i := 1; i < len(codes); i++ {
		if codes[i-1] > codes[i] {
			t.Fatalf("codes not sorted: %v", codes)
		}
	}
}

func TestGetTemplate(t *testing.T) {
	template, ok := GetTemplate("E101")
	if !ok {
		t.Error("E101 should exist")
	}
	if template.Message != "Definition has no store" {
		t.Error("Template message mismatch")
	}

	if _, ok = GetTemplate("E999"); ok {
		t.Error("E999 should not exist")
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("short text", 100)
	if len(got) != 1 || got[0] != "short text" {
		t.Errorf("wrapText short text: got %v", got)
	}

	got = wrapText("this is a longer text that should be wrapped", 20)
	if len(got) != 3 {
		t.Errorf("wrapText long text: expected 3 lines, got %d: %v", len(got), got)
	}

	got = wrapText("", 10)
	if len(got) != 0 {
		t.Errorf("wrapText empty: expected empty, got %v", got)
	}
}

func TestColorFunctions(t *testing.T) {
	EnableColors()
	if !strings.Contains(red("test"), "\033[31m") {
		t.Error("red should contain ANSI code when colors enabled")
	}

	DisableColors()
	if strings.Contains(red("test"), "\033[") {
		t.Error("red should not contain ANSI code when colors disabled")
	}
	EnableColors()
}
