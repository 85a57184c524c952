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

var templates = template.Must(template.New("").Funcs(funcMap).Parse(interfacesTmpl))

type interfacesData struct {
	Package    string
	Version    string
	Interfaces []RawInterfaceDef
}

// GenerateInterfaces renders the interface table as Go source.
func GenerateInterfaces(table *RawInterfaceTable, pkg string) (string, error) {
	var b strings.Builder
	data := interfacesData{Package: pkg, Version: table.Version, Interfaces: table.Interfaces}
	if err := templates.ExecuteTemplate(&b, "interfaces", data); err != nil {
		return "", fmt.Errorf("template interfaces: %w", err)
	}
	return b.String(), nil
}

func firstLower(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

const interfacesTmpl = `{{define "interfaces"}}// Code generated by player-ifgen. DO NOT EDIT.

package {{.Package}}

// InterfaceCode identifies a device interface on the wire.
type InterfaceCode uint16

// Interface codes.
const (
{{- range .Interfaces}}
// {{.ConstName}}: {{firstLower .Description}}.
{{.ConstName}} InterfaceCode = {{.Code}}
{{- end}}
)

// InterfaceVersion is the revision of the interface table.
const InterfaceVersion = {{quote .Version}}

var interfaceNames = map[InterfaceCode]string{
{{- range .Interfaces}}
{{.ConstName}}: {{quote .Name}},
{{- end}}
}

var interfaceCodes = map[string]InterfaceCode{
{{- range .Interfaces}}
{{quote .Name}}: {{.ConstName}},
{{- end}}
}

// Interfaces returns every known interface code in table order.
func Interfaces() []InterfaceCode {
return []InterfaceCode{
{{- range .Interfaces}}
{{.ConstName}},
{{- end}}
}
}
{{end}}`
