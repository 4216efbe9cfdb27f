// Package options implements the option resolver (C14): given a plugin's
// declared OptionsSpecification and a user-supplied configuration map, it
// returns a resolved map with defaults applied, or the full list of
// validation errors (never short-circuiting on the first one).
//
// Grounded on a ConfigField/ConfigSchema shape (name/description/required/
// type/default/nested) for the field idiom, extended to a richer
// constraint set and a full option-value type union, and to
// collect-all-errors semantics rather than a first-error Validate.
// Range/length/pattern/choice checks use github.com/go-ozzo/ozzo-validation/v4
// rather than hand-rolling comparisons.
package options

import (
	"fmt"
	"reflect"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/opsquad/supervisor/internal/ident"
)

// Type is one of the field types an option may declare.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
	TypeObject  Type = "object"
	TypePlayer  Type = "player"
	TypeSquad   Type = "squad"
	TypeLayer   Type = "layer"
)

// Field is one entry of an OptionsSpecification.
type Field struct {
	Type        Type
	Required    bool
	Default     interface{}
	Min         *float64
	Max         *float64
	MinLength   *int
	MaxLength   *int
	Pattern     string
	Choices     []interface{}
	Connector   string
	Properties  map[string]Field
	Items       *Field
	Validate    func(value interface{}) error
}

// Spec is a plugin's full OptionsSpecification: option name to Field.
type Spec map[string]Field

// ConnectorLookup resolves a named connector instance, satisfied by the
// connector registry (C15)'s Get method. It is declared here rather than
// imported from internal/plugin/connector to avoid a dependency cycle
// between the two plugin-host packages.
type ConnectorLookup func(name string) (interface{}, error)

// ValidationError is one failure among the full set Resolve returns.
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Resolve validates input against spec, applying declared defaults for
// missing optional fields, and returns every validation failure found
// rather than stopping at the first. A nil connectors lookup is treated as
// "no connectors available" — any field naming a connector fails.
func Resolve(spec Spec, input map[string]interface{}, connectors ConnectorLookup) (map[string]interface{}, []ValidationError) {
	r := &resolver{connectors: connectors}
	out := make(map[string]interface{}, len(spec))
	for name, field := range spec {
		value, present := input[name]
		r.resolveField(name, field, value, present, out)
	}
	return out, r.errors
}

type resolver struct {
	connectors ConnectorLookup
	errors     []ValidationError
}

func (r *resolver) fail(path, format string, args ...interface{}) {
	r.errors = append(r.errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (r *resolver) resolveField(path string, field Field, value interface{}, present bool, out map[string]interface{}) {
	if !present {
		if field.Required {
			r.fail(path, "is required")
			return
		}
		if field.Default == nil {
			return
		}
		value = field.Default
		present = true
	}

	resolved, ok := r.checkType(path, field, value)
	if !ok {
		return
	}

	if field.Connector != "" {
		if r.connectors == nil {
			r.fail(path, "no connector registry available to resolve connector %q", field.Connector)
		} else if _, err := r.connectors(field.Connector); err != nil {
			r.fail(path, "connector %q unavailable: %v", field.Connector, err)
		}
	}

	if field.Validate != nil {
		if err := field.Validate(resolved); err != nil {
			r.fail(path, "%v", err)
		}
	}

	out[path] = resolved
}

func (r *resolver) checkType(path string, field Field, value interface{}) (interface{}, bool) {
	switch field.Type {
	case TypeString, TypePlayer, TypeLayer:
		s, ok := value.(string)
		if !ok {
			r.fail(path, "must be a string, got %T", value)
			return nil, false
		}
		if err := r.validateString(field, s); err != nil {
			r.fail(path, "%v", err)
			return nil, false
		}
		return s, true

	case TypeNumber:
		n, ok := asFloat(value)
		if !ok {
			r.fail(path, "must be a number, got %T", value)
			return nil, false
		}
		if err := r.validateNumber(field, n); err != nil {
			r.fail(path, "%v", err)
			return nil, false
		}
		return n, true

	case TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			r.fail(path, "must be a boolean, got %T", value)
			return nil, false
		}
		return b, true

	case TypeSquad:
		return r.checkSquad(path, value)

	case TypeArray:
		return r.checkArray(path, field, value)

	case TypeObject:
		return r.checkObject(path, field, value)

	default:
		r.fail(path, "unknown option type %q", field.Type)
		return nil, false
	}
}

func (r *resolver) validateString(field Field, s string) error {
	var rules []validation.Rule
	if field.MinLength != nil || field.MaxLength != nil {
		min, max := 0, 0
		if field.MinLength != nil {
			min = *field.MinLength
		}
		if field.MaxLength != nil {
			max = *field.MaxLength
		}
		rules = append(rules, validation.Length(min, max))
	}
	if field.Pattern != "" {
		re, err := regexp.Compile(field.Pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %w", field.Pattern, err)
		}
		rules = append(rules, validation.Match(re))
	}
	if len(field.Choices) > 0 {
		rules = append(rules, validation.In(field.Choices...))
	}
	return validation.Validate(s, rules...)
}

func (r *resolver) validateNumber(field Field, n float64) error {
	var rules []validation.Rule
	if field.Min != nil {
		rules = append(rules, validation.Min(*field.Min))
	}
	if field.Max != nil {
		rules = append(rules, validation.Max(*field.Max))
	}
	if len(field.Choices) > 0 {
		rules = append(rules, validation.In(field.Choices...))
	}
	return validation.Validate(n, rules...)
}

// checkSquad validates a {teamID, squadID} reference, the structural shape
// a plugin option names a squad by; it is never resolved against live state
// here (the option resolver has no access to C11, only to identifier
// validity).
func (r *resolver) checkSquad(path string, value interface{}) (interface{}, bool) {
	m, ok := value.(map[string]interface{})
	if !ok {
		r.fail(path, "must be an object with teamID and squadID, got %T", value)
		return nil, false
	}
	teamRaw, hasTeam := m["teamID"]
	squadRaw, hasSquad := m["squadID"]
	if !hasTeam || !hasSquad {
		r.fail(path, "must declare both teamID and squadID")
		return nil, false
	}
	teamN, ok := asFloat(teamRaw)
	if !ok {
		r.fail(path, "teamID must be a number")
		return nil, false
	}
	squadN, ok := asFloat(squadRaw)
	if !ok {
		r.fail(path, "squadID must be a number")
		return nil, false
	}
	if _, ok := ident.NewTeamID(int(teamN)); !ok {
		r.fail(path, "teamID %v is not a valid team", teamN)
		return nil, false
	}
	if _, ok := ident.NewSquadID(int(squadN)); !ok {
		r.fail(path, "squadID %v is not a valid squad id", squadN)
		return nil, false
	}
	return map[string]interface{}{"teamID": int(teamN), "squadID": int(squadN)}, true
}

func (r *resolver) checkArray(path string, field Field, value interface{}) (interface{}, bool) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		r.fail(path, "must be an array, got %T", value)
		return nil, false
	}
	if field.Items == nil {
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}

	out := make([]interface{}, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elemPath := fmt.Sprintf("%s[%d]", path, i)
		resolved, ok := r.checkType(elemPath, *field.Items, rv.Index(i).Interface())
		if ok {
			out = append(out, resolved)
		}
	}
	return out, true
}

func (r *resolver) checkObject(path string, field Field, value interface{}) (interface{}, bool) {
	m, ok := value.(map[string]interface{})
	if !ok {
		r.fail(path, "must be an object, got %T", value)
		return nil, false
	}
	if field.Properties == nil {
		return m, true
	}

	out := make(map[string]interface{}, len(field.Properties))
	for name, nested := range field.Properties {
		childPath := path + "." + name
		v, present := m[name]
		r.resolveField(childPath, nested, v, present, out)
	}
	// resolveField writes into out keyed by the full childPath; rewrite the
	// nested map keyed by the property name instead, the shape callers expect.
	renamed := make(map[string]interface{}, len(out))
	for name := range field.Properties {
		childPath := path + "." + name
		if v, ok := out[childPath]; ok {
			renamed[name] = v
		}
	}
	return renamed, true
}

func asFloat(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
