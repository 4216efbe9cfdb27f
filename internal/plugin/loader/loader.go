// Package loader implements the plugin loader (C16): it resolves a
// registered name (or a constructor handed to it directly) to a validated
// {Class, Meta, OptionsSpec, Source}, or a LoadError.
//
// Grounded on internal/extension_manager/types.go's ExtensionRegistrar
// (`Define() ExtensionDefinition`, a `CreateInstance func() Extension`
// factory field) — a constructor-registration design, not
// internal/plugin_loader/loader.go's plugin.Open()-based .so loading, which
// is exactly the mechanism the redesign notes say to replace: Go has no
// dynamic-import analogue, so plugins are registered as constructor
// references at boot and the loader keeps a named-registration API in
// place of path-based loading.
package loader

import (
	"fmt"

	"github.com/opsquad/supervisor/internal/plugin"
	"github.com/opsquad/supervisor/internal/plugin/options"
)

// LoadError reports why a named or direct load failed.
type LoadError struct {
	Source string
	Reason string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("plugin loader: %s: %s", e.Source, e.Reason)
}

// Result is a successfully validated load.
type Result struct {
	Class       plugin.Constructor
	Meta        plugin.Meta
	OptionsSpec options.Spec
	Source      string
}

// Registry holds constructor references registered at boot, keyed by name.
type Registry struct {
	constructors map[string]plugin.Constructor
}

// NewRegistry constructs an empty loader Registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]plugin.Constructor)}
}

// Register records ctor under name for later Load calls. Re-registering a
// name replaces the prior constructor.
func (r *Registry) Register(name string, ctor plugin.Constructor) {
	r.constructors[name] = ctor
}

// Load resolves name to its registered constructor, instantiates a scratch
// instance solely to read and validate its Meta/OptionsSpec, and returns
// the constructor alongside the validated metadata. The scratch instance
// itself is discarded; Mount always builds a fresh one.
func (r *Registry) Load(name string) (Result, error) {
	ctor, ok := r.constructors[name]
	if !ok {
		return Result{}, &LoadError{Source: name, Reason: "no constructor registered under this name"}
	}
	return LoadConstructor(name, ctor)
}

// LoadConstructor validates a constructor handed to it directly, without a
// prior Register call — the "class/constructor" half of the loader's
// contract, as opposed to loading by registered name.
func LoadConstructor(source string, ctor plugin.Constructor) (Result, error) {
	if ctor == nil {
		return Result{}, &LoadError{Source: source, Reason: "constructor is nil"}
	}

	instance := ctor()
	if instance == nil {
		return Result{}, &LoadError{Source: source, Reason: "constructor returned a nil plugin"}
	}

	meta := instance.Meta()
	if err := validateMeta(meta); err != nil {
		return Result{}, &LoadError{Source: source, Reason: err.Error()}
	}

	spec := instance.OptionsSpec()
	if spec == nil {
		spec = options.Spec{}
	}

	return Result{Class: ctor, Meta: meta, OptionsSpec: spec, Source: source}, nil
}

func validateMeta(meta plugin.Meta) error {
	if meta.Name == "" {
		return fmt.Errorf("meta.name must be a non-empty string")
	}
	if meta.Version == "" {
		return fmt.Errorf("meta.version must be a non-empty string")
	}
	for _, dep := range meta.Dependencies {
		if dep == "" {
			return fmt.Errorf("meta.dependencies must not contain an empty name")
		}
	}
	return nil
}
