package inspect

import (
	"errors"
	"testing"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		wantInstrument string
		wantParam      string
		wantPartial    bool
		wantErr        error
	}{
		{
			name:           "SimpleParameter",
			input:          "lockin.frequency",
			wantInstrument: "lockin",
			wantParam:      "frequency",
		},
		{
			name:           "ChannelParameter",
			input:          "mdac.ch01.voltage",
			wantInstrument: "mdac",
			wantParam:      "ch01.voltage",
		},
		{
			name:           "PartialPath",
			input:          "mdac",
			wantInstrument: "mdac",
			wantPartial:    true,
		},
		{
			name:           "TrimsWhitespace",
			input:          "  mdac.ch01.voltage  ",
			wantInstrument: "mdac",
			wantParam:      "ch01.voltage",
		},
		{
			name:           "UnderscoreAndDigits",
			input:          "sr860.aux_out1",
			wantInstrument: "sr860",
			wantParam:      "aux_out1",
		},
		{name: "Empty", input: "", wantErr: ErrEmptyPath},
		{name: "OnlySpaces", input: "   ", wantErr: ErrEmptyPath},
		{name: "LeadingDot", input: ".mdac", wantErr: ErrInvalidPath},
		{name: "TrailingDot", input: "mdac.", wantErr: ErrInvalidPath},
		{name: "DoubleDot", input: "mdac..voltage", wantErr: ErrInvalidPath},
		{name: "StartsWithDigit", input: "2dac.voltage", wantErr: ErrInvalidPath},
		{name: "Hyphen", input: "md-ac.voltage", wantErr: ErrInvalidPath},
		{name: "Space", input: "md ac.voltage", wantErr: ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePath(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParsePath(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePath(%q) error: %v", tt.input, err)
			}
			if p.Instrument != tt.wantInstrument {
				t.Errorf("Instrument = %q, want %q", p.Instrument, tt.wantInstrument)
			}
			if p.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", p.Param, tt.wantParam)
			}
			if p.IsPartial != tt.wantPartial {
				t.Errorf("IsPartial = %v, want %v", p.IsPartial, tt.wantPartial)
			}
		})
	}
}

func TestPathString(t *testing.T) {
	for _, input := range []string{"mdac", "mdac.ch01.voltage", "lockin.X"} {
		p, err := ParsePath(input)
		if err != nil {
			t.Fatalf("ParsePath(%q) error: %v", input, err)
		}
		if got := p.String(); got != input {
			t.Errorf("String() = %q, want %q", got, input)
		}
	}
}
