package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/player-project/playerd/pkg/wire"
)

const (
	fieldName     = "name"
	fieldProvides = "provides"
	fieldRequires = "requires"
	fieldAlwaysOn = "alwayson"
)

// Section is one driver block of the configuration file.
type Section struct {
	fields map[string]*yaml.Node
	order  []string
	line   int

	port  uint16
	units Units

	mu       sync.Mutex
	warnings []string
}

// NewSection builds a section from plain values. It is used by tests and by
// code that constructs drivers without a file.
func NewSection(fields map[string]any) (*Section, error) {
	var node yaml.Node
	if err := node.Encode(fields); err != nil {
		return nil, err
	}
	sec := &Section{}
	if err := sec.UnmarshalYAML(&node); err != nil {
		return nil, err
	}
	sec.port = wire.DefaultPort
	sec.units = Units{Length: DefaultLengthUnit, Angle: DefaultAngleUnit}
	return sec, nil
}

// UnmarshalYAML keeps the raw nodes of a driver block.
func (s *Section) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: driver section must be a mapping", value.Line)
	}
	s.fields = make(map[string]*yaml.Node, len(value.Content)/2)
	s.line = value.Line
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := strings.ToLower(value.Content[i].Value)
		if _, dup := s.fields[key]; dup {
			return fmt.Errorf("line %d: duplicate field %q", value.Content[i].Line, key)
		}
		s.fields[key] = value.Content[i+1]
		s.order = append(s.order, key)
	}
	return nil
}

// Name returns the driver name.
func (s *Section) Name() string {
	return s.ReadString(fieldName, "")
}

// Line returns the line the section starts at, or 0.
func (s *Section) Line() int {
	return s.line
}

// Fields returns the field names in file order.
func (s *Section) Fields() []string {
	return append([]string(nil), s.order...)
}

// Has reports whether key is present.
func (s *Section) Has(key string) bool {
	_, ok := s.fields[key]
	return ok
}

// Provides returns the provides entries as written.
func (s *Section) Provides() []string {
	return s.list(fieldProvides)
}

// Requires returns the requires entries as written.
func (s *Section) Requires() []string {
	return s.list(fieldRequires)
}

// AlwaysOn reports whether the driver is subscribed at server start.
func (s *Section) AlwaysOn() bool {
	return s.ReadBool(fieldAlwaysOn, false)
}

// Port returns the server port addresses default to.
func (s *Section) Port() uint16 {
	return s.port
}

// Warnings returns the malformed values met so far.
func (s *Section) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warnings...)
}

func (s *Section) warn(key string, node *yaml.Node, want string) {
	s.mu.Lock()
	s.warnings = append(s.warnings, fmt.Sprintf("line %d: %s: %q is not a valid %s", node.Line, key, node.Value, want))
	s.mu.Unlock()
}

func (s *Section) scalar(key string) (*yaml.Node, bool) {
	node, ok := s.fields[key]
	if !ok || node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		return nil, false
	}
	return node, true
}

func (s *Section) list(key string) []string {
	node, ok := s.fields[key]
	if !ok {
		return nil
	}
	if node.Kind == yaml.ScalarNode {
		if node.Value == "" {
			return nil
		}
		return []string{node.Value}
	}
	if node.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind == yaml.ScalarNode {
			out = append(out, item.Value)
		}
	}
	return out
}

// ReadString returns the string value of key, or def.
func (s *Section) ReadString(key, def string) string {
	node, ok := s.scalar(key)
	if !ok {
		return def
	}
	return node.Value
}

// ReadInt returns the integer value of key, or def.
func (s *Section) ReadInt(key string, def int) int {
	node, ok := s.scalar(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseInt(node.Value, 0, 64)
	if err != nil {
		s.warn(key, node, "integer")
		return def
	}
	return int(v)
}

// ReadFloat returns the floating-point value of key, or def.
func (s *Section) ReadFloat(key string, def float64) float64 {
	node, ok := s.scalar(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseFloat(node.Value, 64)
	if err != nil {
		s.warn(key, node, "number")
		return def
	}
	return v
}

// ReadBool returns the boolean value of key, or def. 0 and 1 are accepted.
func (s *Section) ReadBool(key string, def bool) bool {
	node, ok := s.scalar(key)
	if !ok {
		return def
	}
	v, ok := parseBool(node.Value)
	if !ok {
		s.warn(key, node, "boolean")
		return def
	}
	return v
}

// ReadLength returns the length value of key in meters, or def. Values take
// an optional m, cm or mm suffix; bare values use the file's length unit.
func (s *Section) ReadLength(key string, def float64) float64 {
	node, ok := s.scalar(key)
	if !ok {
		return def
	}
	v, err := s.parseLength(node.Value)
	if err != nil {
		s.warn(key, node, "length")
		return def
	}
	return v
}

// ReadAngle returns the angle value of key in radians, or def. Values take an
// optional deg or rad suffix; bare values use the file's angle unit.
func (s *Section) ReadAngle(key string, def float64) float64 {
	node, ok := s.scalar(key)
	if !ok {
		return def
	}
	v, err := s.parseAngle(node.Value)
	if err != nil {
		s.warn(key, node, "angle")
		return def
	}
	return v
}

// ReadDuration returns the duration value of key, or def. Bare numbers are
// seconds.
func (s *Section) ReadDuration(key string, def time.Duration) time.Duration {
	node, ok := s.scalar(key)
	if !ok {
		return def
	}
	if d, err := time.ParseDuration(node.Value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(node.Value, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	s.warn(key, node, "duration")
	return def
}

// TupleCount returns the number of elements of the list at key. A scalar
// counts as one element; a missing key as zero.
func (s *Section) TupleCount(key string) int {
	node, ok := s.fields[key]
	if !ok {
		return 0
	}
	switch node.Kind {
	case yaml.SequenceNode:
		return len(node.Content)
	case yaml.ScalarNode:
		return 1
	}
	return 0
}

func (s *Section) tupleItem(key string, i int) (*yaml.Node, bool) {
	node, ok := s.fields[key]
	if !ok {
		return nil, false
	}
	if node.Kind == yaml.ScalarNode && i == 0 {
		return node, true
	}
	if node.Kind != yaml.SequenceNode || i < 0 || i >= len(node.Content) {
		return nil, false
	}
	item := node.Content[i]
	if item.Kind != yaml.ScalarNode {
		return nil, false
	}
	return item, true
}

// ReadTupleString returns element i of the list at key, or def.
func (s *Section) ReadTupleString(key string, i int, def string) string {
	item, ok := s.tupleItem(key, i)
	if !ok {
		return def
	}
	return item.Value
}

// ReadTupleFloat returns element i of the list at key as a number, or def.
func (s *Section) ReadTupleFloat(key string, i int, def float64) float64 {
	item, ok := s.tupleItem(key, i)
	if !ok {
		return def
	}
	v, err := strconv.ParseFloat(item.Value, 64)
	if err != nil {
		s.warn(fmt.Sprintf("%s[%d]", key, i), item, "number")
		return def
	}
	return v
}

// ReadTupleLength returns element i of the list at key in meters, or def.
func (s *Section) ReadTupleLength(key string, i int, def float64) float64 {
	item, ok := s.tupleItem(key, i)
	if !ok {
		return def
	}
	v, err := s.parseLength(item.Value)
	if err != nil {
		s.warn(fmt.Sprintf("%s[%d]", key, i), item, "length")
		return def
	}
	return v
}

// ReadTupleAngle returns element i of the list at key in radians, or def.
func (s *Section) ReadTupleAngle(key string, i int, def float64) float64 {
	item, ok := s.tupleItem(key, i)
	if !ok {
		return def
	}
	v, err := s.parseAngle(item.Value)
	if err != nil {
		s.warn(fmt.Sprintf("%s[%d]", key, i), item, "angle")
		return def
	}
	return v
}

// ReadDeviceAddr finds the occurrence-th entry of field ("provides" or
// "requires") whose interface is code and whose key matches. An empty key
// matches only entries without a key; code 0 matches any interface.
func (s *Section) ReadDeviceAddr(field string, code wire.InterfaceCode, occurrence int, key string) (wire.DeviceAddr, error) {
	seen := 0
	for _, entry := range s.list(field) {
		k, addr, err := wire.ParseDeviceAddr(entry, s.port)
		if err != nil {
			return wire.DeviceAddr{}, fmt.Errorf("%s %s %q: %w", s.Name(), field, entry, err)
		}
		if code != 0 && addr.Interface != code {
			continue
		}
		if k != key {
			continue
		}
		if seen == occurrence {
			return addr, nil
		}
		seen++
	}
	return wire.DeviceAddr{}, fmt.Errorf("%w: %s has no %s entry for %s (key %q, occurrence %d)",
		ErrNotFound, s.Name(), field, code, key, occurrence)
}

func (s *Section) parseLength(v string) (float64, error) {
	num, unit := splitUnit(v)
	if unit == "" {
		unit = s.units.Length
	}
	scale, err := lengthScale(unit)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	return f * scale, nil
}

func (s *Section) parseAngle(v string) (float64, error) {
	num, unit := splitUnit(v)
	if unit == "" {
		unit = s.units.Angle
	}
	scale, err := angleScale(unit)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	return f * scale, nil
}

// splitUnit separates a trailing alphabetic unit from a number.
func splitUnit(v string) (num, unit string) {
	v = strings.TrimSpace(v)
	i := len(v)
	for i > 0 {
		c := v[i-1]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			break
		}
		i--
	}
	return strings.TrimSpace(v[:i]), strings.ToLower(v[i:])
}

func lengthScale(unit string) (float64, error) {
	switch strings.ToLower(unit) {
	case "", "m", "meters":
		return 1, nil
	case "cm":
		return 0.01, nil
	case "mm":
		return 0.001, nil
	}
	return 0, fmt.Errorf("unknown length unit %q", unit)
}

func angleScale(unit string) (float64, error) {
	switch strings.ToLower(unit) {
	case "", "deg", "degrees":
		return math.Pi / 180, nil
	case "rad", "radians":
		return 1, nil
	}
	return 0, fmt.Errorf("unknown angle unit %q", unit)
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
