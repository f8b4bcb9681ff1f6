package main

import (
	"fmt"
	"strconv"
	"strings"
)

// catalogData holds pre-computed data for the catalog template. All value
// expressions are resolved here so the templates stay purely structural.
type catalogData struct {
	Package      string
	Type         string
	Description  string
	FuncPrefix   string
	Dynamic      bool
	NeedsAddress bool
	InitKeys     []string
	Params       []paramData
	Channels     []channelData
	Helper       bool

	// NeedsParamImport is true when the output references the param
	// package. Over-inclusion is harmless: goimports trims unused imports.
	NeedsParamImport bool
}

type paramData struct {
	Path       string
	Label      string
	Unit       string
	KindExpr   string
	AccessExpr string
	MinExpr    string
	MaxExpr    string
	Enum       []string
}

type channelData struct {
	Format string
	First  int
	Last   int
	Params []paramData
}

// GenerateCatalog renders the driver catalog source for one definition.
func GenerateCatalog(def *RawInstrumentDef, pkgName string, helper bool) (string, error) {
	data, err := buildCatalogData(def, pkgName, helper)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	renderTemplate(&b, "catalog", data)
	return b.String(), nil
}

func buildCatalogData(def *RawInstrumentDef, pkgName string, helper bool) (*catalogData, error) {
	if pkgName == "" {
		pkgName = "instruments"
	}

	prefix := goFuncPrefix(def.Type)
	if prefix == "" || prefix[0] >= '0' && prefix[0] <= '9' {
		return nil, fmt.Errorf("type %q does not yield a valid Go identifier", def.Type)
	}

	data := &catalogData{
		Package:      pkgName,
		Type:         def.Type,
		Description:  def.Description,
		FuncPrefix:   prefix,
		Dynamic:      def.Dynamic,
		NeedsAddress: def.NeedsAddress,
		InitKeys:     def.InitKeys,
		Helper:       helper,
	}

	for i, raw := range def.Params {
		p, err := buildParamData(raw)
		if err != nil {
			return nil, fmt.Errorf("params[%d]: %w", i, err)
		}
		data.Params = append(data.Params, p)
	}

	for i, ch := range def.Channels {
		if ch.Format == "" {
			return nil, fmt.Errorf("channels[%d]: missing format", i)
		}
		if !strings.Contains(ch.Format, "%") {
			return nil, fmt.Errorf("channels[%d]: format %q has no index verb", i, ch.Format)
		}
		if ch.Last < ch.First {
			return nil, fmt.Errorf("channels[%d]: last %d below first %d", i, ch.Last, ch.First)
		}
		block := channelData{Format: ch.Format, First: ch.First, Last: ch.Last}
		for j, raw := range ch.Params {
			p, err := buildParamData(raw)
			if err != nil {
				return nil, fmt.Errorf("channels[%d].params[%d]: %w", i, j, err)
			}
			block.Params = append(block.Params, p)
		}
		data.Channels = append(data.Channels, block)
	}

	data.NeedsParamImport = helper || len(data.Params) > 0 || len(data.Channels) > 0
	return data, nil
}

func buildParamData(raw RawParamDef) (paramData, error) {
	if raw.Path == "" {
		return paramData{}, fmt.Errorf("missing path")
	}

	kind, err := kindExpr(raw.Kind)
	if err != nil {
		return paramData{}, fmt.Errorf("%s: %w", raw.Path, err)
	}
	access, err := accessExpr(raw.Access)
	if err != nil {
		return paramData{}, fmt.Errorf("%s: %w", raw.Path, err)
	}
	if len(raw.Enum) > 0 && raw.Kind != "string" {
		return paramData{}, fmt.Errorf("%s: enum requires kind string", raw.Path)
	}

	p := paramData{
		Path:       raw.Path,
		Label:      raw.Label,
		Unit:       raw.Unit,
		KindExpr:   kind,
		AccessExpr: access,
		Enum:       raw.Enum,
	}

	// A one-sided bound keeps the missing side at zero, matching the
	// catalog convention that only both-zero means unbounded.
	if raw.Min != nil || raw.Max != nil {
		min, max := 0.0, 0.0
		if raw.Min != nil {
			min = *raw.Min
		}
		if raw.Max != nil {
			max = *raw.Max
		}
		if min > max {
			return paramData{}, fmt.Errorf("%s: min %g above max %g", raw.Path, min, max)
		}
		p.MinExpr = floatExpr(min)
		p.MaxExpr = floatExpr(max)
	}

	return p, nil
}

func kindExpr(kind string) (string, error) {
	switch kind {
	case "float":
		return "param.KindFloat", nil
	case "int":
		return "param.KindInt", nil
	case "bool":
		return "param.KindBool", nil
	case "string":
		return "param.KindString", nil
	case "":
		return "", fmt.Errorf("missing kind")
	default:
		return "", fmt.Errorf("invalid kind %q (must be float, int, bool, or string)", kind)
	}
}

func accessExpr(access string) (string, error) {
	switch access {
	case "readOnly":
		return "param.AccessRead", nil
	case "writeOnly":
		return "param.AccessWrite", nil
	case "readWrite", "":
		return "param.AccessReadWrite", nil
	default:
		return "", fmt.Errorf("invalid access %q (must be readOnly, writeOnly, or readWrite)", access)
	}
}

func floatExpr(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// goFuncPrefix converts "SR-860" to "sr860", "MDAC" to "mdac".
func goFuncPrefix(typeName string) string {
	var b strings.Builder
	for _, r := range typeName {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return strings.ToLower(b.String())
}
