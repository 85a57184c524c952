package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RawInterfaceTable is the top-level structure of interfaces.yaml.
type RawInterfaceTable struct {
	Version    string            `yaml:"version"`
	Interfaces []RawInterfaceDef `yaml:"interfaces"`
}

// RawInterfaceDef is one interface entry.
type RawInterfaceDef struct {
	Name        string `yaml:"name"`
	GoName      string `yaml:"goName"` // Optional: overrides the constant suffix
	Code        int    `yaml:"code"`
	Description string `yaml:"description"`
}

// ConstName returns the Go constant name for the interface.
func (d RawInterfaceDef) ConstName() string {
	if d.GoName != "" {
		return "Interface" + d.GoName
	}
	return "Interface" + goTitleCase(d.Name)
}

// ParseInterfaceTable parses an interface table from YAML bytes.
func ParseInterfaceTable(data []byte) (*RawInterfaceTable, error) {
	var table RawInterfaceTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing interface table: %w", err)
	}
	return &table, nil
}

// LoadInterfaceTable loads and parses an interface table from a file.
func LoadInterfaceTable(path string) (*RawInterfaceTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseInterfaceTable(data)
}

// Validate rejects empty tables, out-of-range codes and duplicates.
func (t *RawInterfaceTable) Validate() error {
	if len(t.Interfaces) == 0 {
		return fmt.Errorf("interface table is empty")
	}
	names := make(map[string]bool)
	codes := make(map[int]string)
	consts := make(map[string]bool)
	for _, d := range t.Interfaces {
		if d.Name == "" {
			return fmt.Errorf("interface with code %d has no name", d.Code)
		}
		if d.Code <= 0 || d.Code > 0xFFFF {
			return fmt.Errorf("interface %s: code %d out of range", d.Name, d.Code)
		}
		if names[d.Name] {
			return fmt.Errorf("duplicate interface name %q", d.Name)
		}
		if other, ok := codes[d.Code]; ok {
			return fmt.Errorf("interfaces %s and %s share code %d", other, d.Name, d.Code)
		}
		if consts[d.ConstName()] {
			return fmt.Errorf("duplicate constant %s", d.ConstName())
		}
		names[d.Name] = true
		codes[d.Code] = d.Name
		consts[d.ConstName()] = true
	}
	return nil
}

// goTitleCase converts "speech_recognition" to "SpeechRecognition".
func goTitleCase(s string) string {
	var b strings.Builder
	for _, part := range strings.Split(s, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
