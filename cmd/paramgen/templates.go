package main

import (
	"fmt"
	"strings"
	"text/template"
)

var funcMap = template.FuncMap{
	"quote":      func(s string) string { return fmt.Sprintf("%q", s) },
	"firstLower": firstLower,
}

var templates = template.Must(template.New("").Funcs(funcMap).Parse(
	headerTmpl +
		enumsTmpl +
		structTmpl +
		handlersTmpl +
		buildTmpl,
))

// renderTemplate executes a named template into the builder.
func renderTemplate(b *strings.Builder, name string, data any) {
	if err := templates.ExecuteTemplate(b, name, data); err != nil {
		panic(fmt.Sprintf("template %s: %v", name, err))
	}
}

// --- Template data types ---

type layoutData struct {
	Package     string
	Module      string
	Source      string
	Name        string
	Description string
	Enums       []enumData
	Nodes       []nodeData
	Handlers    []nodeData
	Constraints bool
}

type enumData struct {
	Var         string
	Description string
	Values      []string
}

type nodeData struct {
	Field       string
	Path        string
	Parent      string
	Call        string
	Description string
}

// --- Template definitions ---

const headerTmpl = `{{define "header"}}// Code generated by paramgen from {{.Source}}. DO NOT EDIT.

package {{.Package}}

import (
"fmt"

{{- if .Constraints}}
"{{.Module}}/pkg/constraint"
{{- end}}
"{{.Module}}/pkg/tree"
)

{{end}}`

const enumsTmpl = `{{define "enums"}}
{{- range .Enums}}
{{- if .Description}}
// {{.Var}} {{firstLower .Description}}.
{{- end}}
var {{.Var}} = tree.Enum({{range $i, $v := .Values}}{{if $i}}, {{end}}{{quote $v}}{{end}})

{{end}}
{{- end}}`

const structTmpl = `{{define "struct"}}
// {{.Name}} holds the handles of the generated nodes.
{{- if .Description}}
// {{.Description}}
{{- end}}
type {{.Name}} struct {
{{- range .Nodes}}
{{- if .Description}}
// {{.Field}} is {{.Path}}: {{firstLower .Description}}.
{{- end}}
{{.Field}} tree.Node
{{- end}}
}

{{end}}`

const handlersTmpl = `{{define "handlers"}}
{{- if .Handlers}}
// {{.Name}}Handlers binds the command nodes of {{.Name}}.
type {{.Name}}Handlers struct {
{{- range .Handlers}}
{{.Field}} func() error
{{- end}}
}

{{end}}
{{- end}}`

const buildTmpl = `{{define "build"}}
// Build{{.Name}} creates the nodes below parent.
func Build{{.Name}}(parent tree.Node{{if .Handlers}}, h {{.Name}}Handlers{{end}}) (*{{.Name}}, error) {
{{- range .Handlers}}
if h.{{.Field}} == nil {
return nil, fmt.Errorf("build {{$.Name}}: no handler for {{.Path}}")
}
{{- end}}
n := &{{.Name}}{}
var err error
{{- range .Nodes}}
if n.{{.Field}}, err = {{.Call}}; err != nil {
return nil, fmt.Errorf("build {{$.Name}}: {{.Path}}: %w", err)
}
{{- end}}
return n, nil
}
{{end}}`
