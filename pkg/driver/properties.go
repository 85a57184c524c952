package driver

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/player-project/playerd/pkg/wire"
)

// Property errors.
var (
	ErrNoProperty   = errors.New("no such property")
	ErrPropertyType = errors.New("property has a different type")
	ErrReadOnly     = errors.New("property is read-only")
)

type property struct {
	value    any
	readOnly bool
}

// Properties is a typed key/value bag. Values are bool, int64, float64 or
// string.
type Properties struct {
	mu sync.RWMutex
	m  map[string]*property
}

// NewProperties returns an empty bag.
func NewProperties() *Properties {
	return &Properties{m: make(map[string]*property)}
}

// Register adds key with an initial value. Registering an existing key
// replaces it.
func (p *Properties) Register(key string, value any, readOnly bool) error {
	v, ok := normalize(value)
	if !ok {
		return fmt.Errorf("%w: %s: %T", ErrPropertyType, key, value)
	}
	p.mu.Lock()
	p.m[key] = &property{value: v, readOnly: readOnly}
	p.mu.Unlock()
	return nil
}

// Get returns the value of key.
func (p *Properties) Get(key string) (any, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	prop, ok := p.m[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoProperty, key)
	}
	return prop.value, nil
}

// Set changes the value of key. The new value must have the registered type;
// integers are accepted for double properties.
func (p *Properties) Set(key string, value any) error {
	v, ok := normalize(value)
	if !ok {
		return fmt.Errorf("%w: %s: %T", ErrPropertyType, key, value)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	prop, ok := p.m[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoProperty, key)
	}
	if prop.readOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, key)
	}
	if _, isFloat := prop.value.(float64); isFloat {
		if i, isInt := v.(int64); isInt {
			v = float64(i)
		}
	}
	if !sameKind(v, prop.value) {
		return fmt.Errorf("%w: %s", ErrPropertyType, key)
	}
	prop.value = v
	return nil
}

// Keys returns the registered keys in sorted order.
func (p *Properties) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Sorted(maps.Keys(p.m))
}

func sameKind(a, b any) bool {
	switch a.(type) {
	case bool:
		_, ok := b.(bool)
		return ok
	case int64:
		_, ok := b.(int64)
		return ok
	case float64:
		_, ok := b.(float64)
		return ok
	case string:
		_, ok := b.(string)
		return ok
	}
	return false
}

func normalize(v any) (any, bool) {
	switch x := v.(type) {
	case bool, string, float64, int64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true
	default:
		return nil, false
	}
}

// Properties returns the driver's property bag.
func (b *Base) Properties() *Properties {
	return b.props
}

// RegisterProperty adds a property that clients can read with the property
// requests and, unless readOnly, change.
func (b *Base) RegisterProperty(key string, value any, readOnly bool) error {
	return b.props.Register(key, value, readOnly)
}

// BoolProperty returns a bool property, or def when it is missing.
func (b *Base) BoolProperty(key string, def bool) bool {
	return propertyOr(b.props, key, def)
}

// IntProperty returns an int property, or def when it is missing.
func (b *Base) IntProperty(key string, def int64) int64 {
	return propertyOr(b.props, key, def)
}

// DoubleProperty returns a double property, or def when it is missing.
func (b *Base) DoubleProperty(key string, def float64) float64 {
	return propertyOr(b.props, key, def)
}

// StringProperty returns a string property, or def when it is missing.
func (b *Base) StringProperty(key string, def string) string {
	return propertyOr(b.props, key, def)
}

func propertyOr[T any](p *Properties, key string, def T) T {
	v, err := p.Get(key)
	if err != nil {
		return def
	}
	t, ok := v.(T)
	if !ok {
		return def
	}
	return t
}

// handleProperty serves the property request subtypes from the bag.
func (b *Base) handleProperty(subtype uint8, payload []byte) (Reply, error) {
	req, err := wire.Decode[wire.PropertyReq](payload)
	if err != nil {
		return Reply{}, err
	}

	switch subtype {
	case wire.GetBoolProp, wire.GetIntProp, wire.GetDoubleProp, wire.GetStringProp:
		v, err := b.props.Get(req.Key)
		if err != nil {
			return Reply{}, err
		}
		if !propertyKind(subtype, v) {
			return Reply{}, fmt.Errorf("%w: %s", ErrPropertyType, req.Key)
		}
		out, err := wire.Encode(wire.PropertyReq{Key: req.Key, Value: v}, wire.MaxReqRepSize)
		if err != nil {
			return Reply{}, err
		}
		return Ack(out), nil

	default:
		v, ok := normalize(req.Value)
		if !ok || !propertyKind(subtype, v) {
			if _, isInt := v.(int64); !(isInt && subtype == wire.SetDoubleProp) {
				return Reply{}, fmt.Errorf("%w: %s", ErrPropertyType, req.Key)
			}
		}
		if err := b.props.Set(req.Key, v); err != nil {
			return Reply{}, err
		}
		b.debugLog("property set", "key", req.Key, "value", v)
		return Ack(nil), nil
	}
}

func propertyKind(subtype uint8, v any) bool {
	switch v.(type) {
	case bool:
		return subtype == wire.GetBoolProp || subtype == wire.SetBoolProp
	case int64:
		return subtype == wire.GetIntProp || subtype == wire.SetIntProp
	case float64:
		return subtype == wire.GetDoubleProp || subtype == wire.SetDoubleProp
	case string:
		return subtype == wire.GetStringProp || subtype == wire.SetStringProp
	}
	return false
}
