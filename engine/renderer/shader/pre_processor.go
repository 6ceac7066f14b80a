// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader source for
// @oxy: annotations, replaces them with injected struct source or generated declarations, and
// collects a declarations list.
//
// The struct registry is supplied by the caller: each package that owns a GPU type (camera,
// light, material, cluster) exports its WGSL source, and the renderer assembles them into a
// Registry before compiling its shaders.
package shader

import (
	"fmt"
	"maps"
	"strings"
)

// RegistryEntry pairs a WGSL source block with the type name emitted by @oxy:group declarations.
// Type may be empty for include-only blocks such as shared functions.
type RegistryEntry struct {
	Source string
	Type   string
}

// Registry maps annotation keys to their WGSL source.
type Registry map[AnnotationArg]RegistryEntry

// Merge returns a new registry holding the entries of r overlaid with those of other.
func (r Registry) Merge(other Registry) Registry {
	out := make(Registry, len(r)+len(other))
	maps.Copy(out, r)
	maps.Copy(out, other)
	return out
}

const maxIncludeDepth = 8

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	registry Registry

	addressSpaces map[AnnotationArg]string

	// declarations accumulates group annotations during a Process call.
	declarations []Annotation
}

// PreProcessor processes raw WGSL source containing @oxy: annotations.
type PreProcessor interface {
	// Process replaces every annotation with its WGSL output. Includes are expanded once per
	// key; repeated includes of the same key produce no further output.
	//
	// Parameters:
	//   - source: the raw WGSL source
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error if an annotation is malformed or references an unknown key
	Process(source string) (string, error)

	// Declarations returns the group annotations collected during the most recent Process call.
	//
	// Returns:
	//   - []Annotation: the declarations in source order
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor that resolves includes and struct types from registry.
//
// Parameters:
//   - registry: the WGSL sources available to @oxy:include and @oxy:group
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(registry Registry) PreProcessor {
	return &preProcessor{
		registry: registry,
		addressSpaces: map[AnnotationArg]string{
			AnnotationArgUniform:          "var<uniform>",
			AnnotationArgStorageRead:      "var<storage, read>",
			AnnotationArgStorageReadWrite: "var<storage, read_write>",
		},
	}
}

func (p *preProcessor) known(key AnnotationArg) bool {
	_, ok := p.registry[key]
	return ok
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	out, err := p.expand(source, "", make(map[AnnotationArg]bool), 0)
	if err != nil {
		return "", err
	}
	return strings.Join(out, "\n"), nil
}

// expand processes one source block. Included blocks are expanded recursively so shared
// function blocks may include the structs they depend on.
func (p *preProcessor) expand(source, origin string, included map[AnnotationArg]bool, depth int) ([]string, error) {
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("%s: include depth exceeds %d", origin, maxIncludeDepth)
	}

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1, p.known)
		if err != nil {
			if origin != "" {
				return nil, fmt.Errorf("include %s: %w", origin, err)
			}
			return nil, err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case AnnotationTypeInclude:
			key := a.Args[0]
			if included[key] {
				continue
			}
			included[key] = true
			nested, err := p.expand(p.registry[key].Source, string(key), included, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		case AnnotationTypeBindingGroup:
			key, isArray := arrayElement(string(a.Args[2]))
			entry := p.registry[AnnotationArg(key)]
			if entry.Type == "" {
				return nil, fmt.Errorf("line %d: %q has no WGSL type and cannot be bound", i+1, key)
			}
			wgslType := entry.Type
			if isArray {
				wgslType = fmt.Sprintf("array<%s>", entry.Type)
			}
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
				*a.Group, *a.Binding, p.addressSpaces[a.Args[0]], a.Args[1], wgslType))
			p.declarations = append(p.declarations, *a)
		}
	}
	return out, nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
