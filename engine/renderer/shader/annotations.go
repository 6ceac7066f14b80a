// annotations.go defines the annotation types and the parser for the Oxy WGSL shader
// pre-processor. Annotations are single-line WGSL comments prefixed with @oxy: that drive
// struct injection and bind group declaration. The parsed results are stored as Annotation
// values and consumed by the PreProcessor and, through Shader.Declarations, by the renderer
// when it wires bind group providers to pipelines.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude injects the WGSL source of a registered struct or function block
	// at the annotation site. It is consumed entirely during pre-processing.
	//
	// Syntax: //@oxy:include <registry_key>
	//
	// Example: //@oxy:include point_light
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a WGSL @group/@binding variable declaration and
	// is recorded in the declarations list.
	//
	// Syntax: //@oxy:group <group> <binding> <address_space> <var_name> <type>
	//
	// Example: //@oxy:group 2 1 storage_read lights array<point_light>
	AnnotationTypeBindingGroup AnnotationType = "group"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments:
	//   - include: [0] = registry key
	//   - group:   [0] = address space, [1] = var name, [2] = registry key, optionally wrapped in array<>
	Args []AnnotationArg

	// Line is the 1-based line number in the original WGSL source.
	Line int

	// Group and Binding are set for group annotations, nil otherwise.
	Group   *int
	Binding *int
}

// AnnotationArg is a single annotation argument.
type AnnotationArg string

// Address space arguments accepted by @oxy:group.
const (
	AnnotationArgUniform          AnnotationArg = "storage_uniform"
	AnnotationArgStorageRead      AnnotationArg = "storage_read"
	AnnotationArgStorageReadWrite AnnotationArg = "storage_read_write"
)

var validAddressSpaces = []AnnotationArg{
	AnnotationArgUniform,
	AnnotationArgStorageRead,
	AnnotationArgStorageReadWrite,
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Lines without the prefix return nil and no error. Registry keys are checked against known.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//   - known: reports whether a registry key exists
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int, known func(AnnotationArg) bool) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !known(AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown include %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: AnnotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case AnnotationTypeBindingGroup:
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @oxy group annotation requires five arguments (group, binding, address space, name, type)", lineNum)
		}
		group, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid group number %q: %w", lineNum, args[1], err)
		}
		binding, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid binding number %q: %w", lineNum, args[2], err)
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q in @oxy group annotation", lineNum, args[3])
		}
		typeKey, _ := arrayElement(args[5])
		if !known(AnnotationArg(typeKey)) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy group annotation", lineNum, typeKey)
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}

// arrayElement unwraps "array<T>" into ("T", true); any other string is returned unchanged.
func arrayElement(typeArg string) (string, bool) {
	inner, ok := strings.CutPrefix(typeArg, "array<")
	if !ok {
		return typeArg, false
	}
	return strings.TrimSuffix(inner, ">"), true
}
