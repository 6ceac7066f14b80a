package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// BindingKind classifies a resource binding declared in WGSL.
type BindingKind int

const (
	BindingUniform BindingKind = iota
	BindingStorageRead
	BindingStorageReadWrite
	BindingTexture
	BindingUnfilterableTexture
	BindingDepthTexture
	BindingStorageTexture
	BindingSampler
	BindingNonFilteringSampler
)

// IsBuffer reports whether the binding refers to a buffer.
func (k BindingKind) IsBuffer() bool {
	return k == BindingUniform || k == BindingStorageRead || k == BindingStorageReadWrite
}

// IsTexture reports whether the binding refers to a texture.
func (k BindingKind) IsTexture() bool {
	return k == BindingTexture || k == BindingUnfilterableTexture || k == BindingDepthTexture || k == BindingStorageTexture
}

// IsSampler reports whether the binding refers to a sampler.
func (k BindingKind) IsSampler() bool {
	return k == BindingSampler || k == BindingNonFilteringSampler
}

// Binding describes one @group/@binding declaration.
type Binding struct {
	Group   int
	Binding int
	Name    string
	Type    string
	Kind    BindingKind
	// MinSize is the minimum buffer binding size, zero when unknown or not a buffer.
	MinSize uint64
	// StorageFormat is the texel format of a storage texture, e.g. "rgba16float".
	StorageFormat string
}

// VertexFormat is the type of a single vertex attribute.
type VertexFormat int

const (
	VertexFloat32 VertexFormat = iota
	VertexFloat32x2
	VertexFloat32x3
	VertexFloat32x4
	VertexUint32
	VertexUint32x2
	VertexUint32x4
)

var vertexFormats = map[string]struct {
	format VertexFormat
	size   uint64
}{
	"f32":       {VertexFloat32, 4},
	"vec2f":     {VertexFloat32x2, 8},
	"vec2<f32>": {VertexFloat32x2, 8},
	"vec3f":     {VertexFloat32x3, 12},
	"vec3<f32>": {VertexFloat32x3, 12},
	"vec4f":     {VertexFloat32x4, 16},
	"vec4<f32>": {VertexFloat32x4, 16},
	"u32":       {VertexUint32, 4},
	"vec2u":     {VertexUint32x2, 8},
	"vec2<u32>": {VertexUint32x2, 8},
	"vec4u":     {VertexUint32x4, 16},
	"vec4<u32>": {VertexUint32x4, 16},
}

// VertexAttribute is one attribute of a tightly packed vertex.
type VertexAttribute struct {
	Location int
	Format   VertexFormat
	Offset   uint64
}

// VertexLayout describes an interleaved vertex buffer.
type VertexLayout struct {
	Stride     uint64
	Attributes []VertexAttribute
}

type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

type parsedStruct struct {
	name   string
	fields []parsedField
}

var (
	structBlockRegex   = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	locationRegex      = regexp.MustCompile(`@location\((\d+)\)`)
	builtinRegex       = regexp.MustCompile(`@builtin\(\w+\)`)
	fieldRegex         = regexp.MustCompile(`(?:@\w+\([^)]*\)\s*)*(\w+)\s*:\s*(.+)`)
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\w+)\s*(?:,\s*(\w+)\s*(?:,\s*(\w+)\s*)?)?\)`)
	constRegex         = regexp.MustCompile(`const\s+(\w+)\s*(?::\s*\w+\s*)?=\s*(\d+)u?\s*;`)
	bindingDeclRegex   = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)

	entryRegexes = map[ShaderType]*regexp.Regexp{
		ShaderTypeVertex:   regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`),
		ShaderTypeFragment: regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`),
		ShaderTypeCompute:  regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`),
	}
)

// parseEntryPoint returns the first entry point of the given stage, or "".
func parseEntryPoint(source string, shaderType ShaderType) string {
	re, ok := entryRegexes[shaderType]
	if !ok {
		return ""
	}
	if m := re.FindStringSubmatch(stripComments(source)); m != nil {
		return m[1]
	}
	return ""
}

// parseWorkgroupSize extracts @workgroup_size. Dimensions may be literals or module-scope
// integer constants; omitted dimensions default to 1.
func parseWorkgroupSize(source string) [3]uint32 {
	cleaned := stripComments(source)
	result := [3]uint32{1, 1, 1}

	m := workgroupSizeRegex.FindStringSubmatch(cleaned)
	if m == nil {
		return result
	}
	consts := make(map[string]uint32)
	for _, c := range constRegex.FindAllStringSubmatch(cleaned, -1) {
		if v, err := strconv.ParseUint(c[2], 10, 32); err == nil {
			consts[c[1]] = uint32(v)
		}
	}
	for i := range 3 {
		dim := strings.TrimSuffix(m[i+1], "u")
		if dim == "" {
			continue
		}
		if v, err := strconv.ParseUint(dim, 10, 32); err == nil {
			result[i] = uint32(v)
		} else if v, ok := consts[m[i+1]]; ok {
			result[i] = v
		}
	}
	return result
}

// parseBindings extracts every @group/@binding declaration, sorted by group then binding.
func parseBindings(source string) []Binding {
	cleaned := stripComments(source)
	layouts := structLayouts(parseStructBlocks(cleaned))

	var out []Binding
	for _, m := range bindingDeclRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		b := Binding{
			Group:   group,
			Binding: binding,
			Name:    m[4],
			Type:    strings.TrimSpace(m[5]),
		}
		classifyBinding(&b, strings.TrimSpace(m[3]))
		if b.Kind.IsBuffer() {
			if l, ok := resolveLayout(b.Type, layouts); ok {
				b.MinSize = l.size
			}
		}
		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Binding < out[j].Binding
	})
	return out
}

func classifyBinding(b *Binding, addressSpace string) {
	switch {
	case addressSpace == "uniform":
		b.Kind = BindingUniform
	case strings.HasPrefix(addressSpace, "storage") && strings.Contains(addressSpace, "read_write"):
		b.Kind = BindingStorageReadWrite
	case strings.HasPrefix(addressSpace, "storage"):
		b.Kind = BindingStorageRead
	case b.Type == "sampler":
		b.Kind = BindingSampler
	case strings.HasPrefix(b.Type, "texture_storage_"):
		b.Kind = BindingStorageTexture
		if _, params, ok := strings.Cut(b.Type, "<"); ok {
			format, _, _ := strings.Cut(params, ",")
			b.StorageFormat = strings.TrimSpace(format)
		}
	case strings.HasPrefix(b.Type, "texture_depth_"):
		b.Kind = BindingDepthTexture
	case strings.HasPrefix(b.Type, "texture_"):
		b.Kind = BindingTexture
		if strings.Contains(b.Type, "<u32>") || strings.Contains(b.Type, "<i32>") {
			b.Kind = BindingUnfilterableTexture
		}
	}
}

// parseVertexLayout builds the layout of the first vertex input struct (a struct with
// @location fields and no builtins) whose types are all recognized.
func parseVertexLayout(source string) (VertexLayout, bool) {
	for _, ps := range parseStructBlocks(stripComments(source)) {
		if !isVertexInput(ps) {
			continue
		}
		if l, ok := buildVertexLayout(ps); ok {
			return l, true
		}
	}
	return VertexLayout{}, false
}

func isVertexInput(ps parsedStruct) bool {
	hasLocation := false
	for _, f := range ps.fields {
		if f.isBuiltin {
			return false
		}
		if f.location >= 0 {
			hasLocation = true
		}
	}
	return hasLocation
}

func buildVertexLayout(ps parsedStruct) (VertexLayout, bool) {
	attrs := make([]VertexAttribute, 0, len(ps.fields))
	var offset uint64
	for _, f := range ps.fields {
		info, ok := vertexFormats[f.typeName]
		if !ok {
			return VertexLayout{}, false
		}
		attrs = append(attrs, VertexAttribute{Location: f.location, Format: info.format, Offset: offset})
		offset += info.size
	}
	return VertexLayout{Stride: offset, Attributes: attrs}, true
}

func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))
	for _, m := range matches {
		structs = append(structs, parsedStruct{name: m[1], fields: parseStructFields(m[2])})
	}
	return structs
}

func parseStructFields(body string) []parsedField {
	parts := splitTopLevel(body)
	fields := make([]parsedField, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f := parsedField{location: -1, isBuiltin: builtinRegex.MatchString(part)}
		if lm := locationRegex.FindStringSubmatch(part); lm != nil {
			f.location, _ = strconv.Atoi(lm[1])
		}
		fm := fieldRegex.FindStringSubmatch(part)
		if fm == nil {
			continue
		}
		f.name = fm[1]
		f.typeName = strings.TrimSpace(fm[2])
		fields = append(fields, f)
	}
	return fields
}

// splitTopLevel splits a struct body at commas outside angle brackets, so array<T, N> stays whole.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// stripComments removes line comments and (nestable) block comments.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			switch {
			case source[i] == '/' && source[i+1] == '*':
				depth++
				i++
				continue
			case source[i] == '*' && source[i+1] == '/' && depth > 0:
				depth--
				i++
				continue
			case source[i] == '/' && source[i+1] == '/' && depth == 0:
				for i < len(source) && source[i] != '\n' {
					i++
				}
				if i < len(source) {
					sb.WriteByte('\n')
				}
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}
