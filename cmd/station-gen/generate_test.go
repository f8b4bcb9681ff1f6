package main

import (
	"strings"
	"testing"
)

func sr860Def() *RawInstrumentDef {
	return &RawInstrumentDef{
		Type:         "SR860",
		Description:  "Stanford Research SR860 lock-in amplifier",
		NeedsAddress: true,
		InitKeys:     []string{"seed", "noise"},
		Params: []RawParamDef{
			{Path: "amplitude", Label: "Sine out amplitude", Unit: "V", Kind: "float", Access: "readWrite", Min: fp(1e-9), Max: fp(2)},
			{Path: "X", Label: "In-phase", Unit: "V", Kind: "float", Access: "readOnly"},
			{Path: "mode", Kind: "string", Access: "readWrite", Enum: []string{"idle", "run"}},
		},
	}
}

func mdacDef() *RawInstrumentDef {
	return &RawInstrumentDef{
		Type:     "MDAC",
		InitKeys: []string{"num_channels", "seed"},
		Channels: []RawChannelDef{
			{
				Format: "ch%02d",
				First:  1,
				Last:   8,
				Params: []RawParamDef{
					{Path: "voltage", Label: "Channel voltage", Unit: "V", Kind: "float", Access: "readWrite", Min: fp(-8), Max: fp(8)},
					{Path: "filter", Kind: "int", Access: "readWrite", Min: fp(1), Max: fp(2)},
				},
			},
		},
	}
}

func fp(v float64) *float64 { return &v }

func TestGenerateCatalogHeader(t *testing.T) {
	output, err := GenerateCatalog(sr860Def(), "instruments", false)
	if err != nil {
		t.Fatalf("GenerateCatalog failed: %v", err)
	}

	mustContain(t, output, "// Code generated by station-gen. DO NOT EDIT.")
	mustContain(t, output, "package instruments")
	mustContain(t, output, "func sr860Catalog() driver.Catalog {")
	mustContain(t, output, "// Stanford Research SR860 lock-in amplifier")
}

func TestGenerateCatalogFields(t *testing.T) {
	output, err := GenerateCatalog(sr860Def(), "instruments", false)
	if err != nil {
		t.Fatalf("GenerateCatalog failed: %v", err)
	}

	mustContain(t, output, `Type: "SR860",`)
	mustContain(t, output, "NeedsAddress: true,")
	mustContain(t, output, `InitKeys: []string{ "seed", "noise" },`)
	mustNotContain(t, output, "Dynamic:")
}

func TestGenerateCatalogParams(t *testing.T) {
	output, err := GenerateCatalog(sr860Def(), "instruments", false)
	if err != nil {
		t.Fatalf("GenerateCatalog failed: %v", err)
	}

	mustContain(t, output, `{Path: "amplitude", Label: "Sine out amplitude", Unit: "V", Kind: param.KindFloat, Access: param.AccessReadWrite, Min: 1e-09, Max: 2},`)
	mustContain(t, output, `{Path: "X", Label: "In-phase", Unit: "V", Kind: param.KindFloat, Access: param.AccessRead},`)
	mustContain(t, output, `{Path: "mode", Kind: param.KindString, Access: param.AccessReadWrite, Enum: []string{ "idle", "run" }},`)
}

func TestGenerateCatalogChannels(t *testing.T) {
	output, err := GenerateCatalog(mdacDef(), "instruments", false)
	if err != nil {
		t.Fatalf("GenerateCatalog failed: %v", err)
	}

	mustContain(t, output, "Channels: []driver.ChannelBlock{")
	mustContain(t, output, `Format: "ch%02d",`)
	mustContain(t, output, "First: 1,")
	mustContain(t, output, "Last: 8,")
	mustContain(t, output, `{Path: "voltage", Label: "Channel voltage", Unit: "V", Kind: param.KindFloat, Access: param.AccessReadWrite, Min: -8, Max: 8},`)
	mustContain(t, output, `{Path: "filter", Kind: param.KindInt, Access: param.AccessReadWrite, Min: 1, Max: 2},`)
}

func TestGenerateCatalogHelper(t *testing.T) {
	output, err := GenerateCatalog(sr860Def(), "instruments", true)
	if err != nil {
		t.Fatalf("GenerateCatalog failed: %v", err)
	}

	mustContain(t, output, "func sr860Metadata(spec driver.CatalogParam) *param.Metadata {")
	mustContain(t, output, "meta.Limits = &param.Limits{Min: spec.Min, Max: spec.Max}")
}

func TestGenerateCatalogNoHelper(t *testing.T) {
	output, err := GenerateCatalog(sr860Def(), "instruments", false)
	if err != nil {
		t.Fatalf("GenerateCatalog failed: %v", err)
	}

	mustNotContain(t, output, "sr860Metadata")
}

func TestGenerateCatalogDynamic(t *testing.T) {
	def := &RawInstrumentDef{Type: "MSO44", Dynamic: true, NeedsAddress: true}
	output, err := GenerateCatalog(def, "instruments", false)
	if err != nil {
		t.Fatalf("GenerateCatalog failed: %v", err)
	}

	mustContain(t, output, "Dynamic: true,")
	mustNotContain(t, output, "Params:")
	mustNotContain(t, output, `"github.com/qnlab/station-go/pkg/param"`)
}

func TestGenerateCatalogPackageOverride(t *testing.T) {
	output, err := GenerateCatalog(sr860Def(), "labdrivers", false)
	if err != nil {
		t.Fatalf("GenerateCatalog failed: %v", err)
	}

	mustContain(t, output, "package labdrivers")
}

func TestGenerateCatalogErrors(t *testing.T) {
	tests := []struct {
		name    string
		def     *RawInstrumentDef
		wantErr string
	}{
		{
			name:    "missing kind",
			def:     &RawInstrumentDef{Type: "X", Params: []RawParamDef{{Path: "v"}}},
			wantErr: "missing kind",
		},
		{
			name:    "invalid kind",
			def:     &RawInstrumentDef{Type: "X", Params: []RawParamDef{{Path: "v", Kind: "complex"}}},
			wantErr: "invalid kind",
		},
		{
			name:    "invalid access",
			def:     &RawInstrumentDef{Type: "X", Params: []RawParamDef{{Path: "v", Kind: "float", Access: "rw"}}},
			wantErr: "invalid access",
		},
		{
			name:    "missing path",
			def:     &RawInstrumentDef{Type: "X", Params: []RawParamDef{{Kind: "float"}}},
			wantErr: "missing path",
		},
		{
			name:    "enum on float",
			def:     &RawInstrumentDef{Type: "X", Params: []RawParamDef{{Path: "v", Kind: "float", Enum: []string{"a"}}}},
			wantErr: "enum requires kind string",
		},
		{
			name:    "min above max",
			def:     &RawInstrumentDef{Type: "X", Params: []RawParamDef{{Path: "v", Kind: "float", Min: fp(5), Max: fp(1)}}},
			wantErr: "min 5 above max 1",
		},
		{
			name:    "channel without format",
			def:     &RawInstrumentDef{Type: "X", Channels: []RawChannelDef{{First: 1, Last: 2}}},
			wantErr: "missing format",
		},
		{
			name:    "channel format without verb",
			def:     &RawInstrumentDef{Type: "X", Channels: []RawChannelDef{{Format: "ch", First: 1, Last: 2}}},
			wantErr: "no index verb",
		},
		{
			name:    "channel range inverted",
			def:     &RawInstrumentDef{Type: "X", Channels: []RawChannelDef{{Format: "ch%d", First: 4, Last: 1}}},
			wantErr: "last 1 below first 4",
		},
		{
			name:    "type not an identifier",
			def:     &RawInstrumentDef{Type: "860"},
			wantErr: "valid Go identifier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateCatalog(tt.def, "instruments", false)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestGoFuncPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SR860", "sr860"},
		{"SR-860", "sr860"},
		{"MDAC", "mdac"},
		{"Fridge", "fridge"},
	}
	for _, tt := range tests {
		if got := goFuncPrefix(tt.in); got != tt.want {
			t.Errorf("goFuncPrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func mustContain(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Errorf("output does not contain %q\nOutput (first 3000 chars):\n%s", substr, truncate(output, 3000))
	}
}

func mustNotContain(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Errorf("output should not contain %q", substr)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
