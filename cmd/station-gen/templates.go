package main

import (
	"fmt"
	"strings"
	"text/template"
)

// funcMap provides helper functions available to the templates.
var funcMap = template.FuncMap{
	"quote":     func(s string) string { return fmt.Sprintf("%q", s) },
	"quoteList": quoteList,
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}

// templates holds the parsed code generation templates. Output is written
// unindented; writeFormatted runs it through goimports.
var templates = template.Must(template.New("").Funcs(funcMap).Parse(
	catalogTmpl + catalogParamTmpl + helperTmpl,
))

// renderTemplate executes a named template into the builder.
func renderTemplate(b *strings.Builder, name string, data any) {
	if err := templates.ExecuteTemplate(b, name, data); err != nil {
		panic(fmt.Sprintf("template %s: %v", name, err))
	}
}

const catalogTmpl = `{{define "catalog"}}// Code generated by station-gen. DO NOT EDIT.

package {{.Package}}

import (
"github.com/qnlab/station-go/pkg/driver"
{{- if .NeedsParamImport}}
"github.com/qnlab/station-go/pkg/param"
{{- end}}
)

// {{.FuncPrefix}}Catalog returns the {{.Type}} parameter catalog.
{{- if .Description}}
// {{.Description}}
{{- end}}
func {{.FuncPrefix}}Catalog() driver.Catalog {
return driver.Catalog{
Type: {{quote .Type}},
{{- if .Dynamic}}
Dynamic: true,
{{- end}}
{{- if .NeedsAddress}}
NeedsAddress: true,
{{- end}}
{{- if .InitKeys}}
InitKeys: []string{ {{quoteList .InitKeys}} },
{{- end}}
{{- if .Params}}
Params: []driver.CatalogParam{
{{- range .Params}}
{{template "catalogParam" .}}
{{- end}}
},
{{- end}}
{{- if .Channels}}
Channels: []driver.ChannelBlock{
{{- range .Channels}}
{
Format: {{quote .Format}},
First: {{.First}},
Last: {{.Last}},
Params: []driver.CatalogParam{
{{- range .Params}}
{{template "catalogParam" .}}
{{- end}}
},
},
{{- end}}
},
{{- end}}
}
}
{{- if .Helper}}
{{template "helper" .}}
{{- end}}
{{end}}`

const catalogParamTmpl = `{{define "catalogParam"}}{Path: {{quote .Path}}{{if .Label}}, Label: {{quote .Label}}{{end}}{{if .Unit}}, Unit: {{quote .Unit}}{{end}}, Kind: {{.KindExpr}}, Access: {{.AccessExpr}}{{if .MinExpr}}, Min: {{.MinExpr}}{{end}}{{if .MaxExpr}}, Max: {{.MaxExpr}}{{end}}{{if .Enum}}, Enum: []string{ {{quoteList .Enum}} }{{end}}},{{end}}`

const helperTmpl = `{{define "helper"}}
// {{.FuncPrefix}}Metadata converts a catalog entry into parameter metadata.
// Drivers pass the result to param.New alongside their getter and setter.
func {{.FuncPrefix}}Metadata(spec driver.CatalogParam) *param.Metadata {
meta := &param.Metadata{
Name: spec.Path,
Label: spec.Label,
Unit: spec.Unit,
Kind: spec.Kind,
Access: spec.Access,
Enum: spec.Enum,
}
if spec.Min != 0 || spec.Max != 0 {
meta.Limits = &param.Limits{Min: spec.Min, Max: spec.Max}
}
return meta
}
{{end}}`
