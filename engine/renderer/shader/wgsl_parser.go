package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgslVertexFormatMap maps WGSL vertex input types to their vertex format and byte size.
var wgslVertexFormatMap = map[string]vertexFormatInfo{
	"f32":       {wgpu.VertexFormatFloat32, 4},
	"vec2f":     {wgpu.VertexFormatFloat32x2, 8},
	"vec2<f32>": {wgpu.VertexFormatFloat32x2, 8},
	"vec3f":     {wgpu.VertexFormatFloat32x3, 12},
	"vec3<f32>": {wgpu.VertexFormatFloat32x3, 12},
	"vec4f":     {wgpu.VertexFormatFloat32x4, 16},
	"vec4<f32>": {wgpu.VertexFormatFloat32x4, 16},
	"i32":       {wgpu.VertexFormatSint32, 4},
	"vec2i":     {wgpu.VertexFormatSint32x2, 8},
	"vec2<i32>": {wgpu.VertexFormatSint32x2, 8},
	"vec3i":     {wgpu.VertexFormatSint32x3, 12},
	"vec3<i32>": {wgpu.VertexFormatSint32x3, 12},
	"vec4i":     {wgpu.VertexFormatSint32x4, 16},
	"vec4<i32>": {wgpu.VertexFormatSint32x4, 16},
	"u32":       {wgpu.VertexFormatUint32, 4},
	"vec2u":     {wgpu.VertexFormatUint32x2, 8},
	"vec2<u32>": {wgpu.VertexFormatUint32x2, 8},
	"vec3u":     {wgpu.VertexFormatUint32x3, 12},
	"vec3<u32>": {wgpu.VertexFormatUint32x3, 12},
	"vec4u":     {wgpu.VertexFormatUint32x4, 16},
	"vec4<u32>": {wgpu.VertexFormatUint32x4, 16},
	"vec2<f16>": {wgpu.VertexFormatFloat16x2, 4},
	"vec2h":     {wgpu.VertexFormatFloat16x2, 4},
	"vec4<f16>": {wgpu.VertexFormatFloat16x4, 8},
	"vec4h":     {wgpu.VertexFormatFloat16x4, 8},
}

var (
	// structBlockRegex captures the name and body of a struct declaration
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex matches @location(N)
	locationRegex = regexp.MustCompile(`@location\(\s*(\d+)\s*\)`)

	// alignRegex and sizeRegex capture member layout overrides
	alignRegex = regexp.MustCompile(`@align\(\s*(\d+)\s*\)`)
	sizeRegex  = regexp.MustCompile(`@size\(\s*(\d+)\s*\)`)

	// builtinRegex matches @builtin(...)
	builtinRegex = regexp.MustCompile(`@builtin\(\s*\w+\s*\)`)

	// fieldRegex captures the name and type of a member or parameter after any attributes
	fieldRegex = regexp.MustCompile(`^(?:@\w+(?:\([^)]*\))?\s*)*(\w+)\s*:\s*(.+)$`)

	// stageAttrRegex matches the stage attribute opening an entry point declaration
	stageAttrRegex = regexp.MustCompile(`@(vertex|fragment|compute)\b`)

	// fnHeaderRegex matches the function header that follows a stage attribute
	fnHeaderRegex = regexp.MustCompile(`\bfn\s+(\w+)\s*\(`)

	// workgroupSizeRegex captures 1-3 integer dimensions of @workgroup_size(x[, y[, z]])
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?,?\s*\)`)

	// bindingDeclRegex captures group, binding, address space, name and type of a resource variable.
	// The group and binding attributes may appear in either order.
	bindingDeclRegex = regexp.MustCompile(`@(group|binding)\(\s*(\d+)\s*\)\s*@(group|binding)\(\s*(\d+)\s*\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

var stageNames = map[string]Stage{
	"vertex":   StageVertex,
	"fragment": StageFragment,
	"compute":  StageCompute,
}

// Reflect parses WGSL source into its entry points, resource bindings, vertex inputs and
// struct layouts. Unrecognized declarations are skipped; Reflect never fails.
//
// Parameters:
//   - code: the raw WGSL source
//
// Returns:
//   - *Reflection: the parsed metadata
func Reflect(code string) *Reflection {
	cleaned := stripComments(code)
	structs := parseStructBlocks(cleaned)
	layouts, known := computeStructLayouts(structs)

	r := &Reflection{
		Bindings: parseBindings(cleaned, layouts, known),
		Structs:  layouts,
	}

	byName := make(map[string]parsedStruct, len(structs))
	for _, ps := range structs {
		byName[ps.name] = ps
	}
	for _, pe := range parseEntryPoints(cleaned) {
		ep := EntryPoint{Name: pe.name, Stage: pe.stage}
		switch pe.stage {
		case StageVertex:
			ep.Inputs = collectVertexInputs(pe.params, byName)
		case StageCompute:
			ep.WorkgroupSize = parseWorkgroupSize(pe.attributes)
		}
		r.EntryPoints = append(r.EntryPoints, ep)
	}
	return r
}

// parseBindings extracts every @group/@binding variable, ordered by (group, binding).
func parseBindings(cleaned string, layouts map[string]*StructLayout, known map[string]typeLayout) []Binding {
	matches := bindingDeclRegex.FindAllStringSubmatch(cleaned, -1)
	bindings := make([]Binding, 0, len(matches))

	for _, m := range matches {
		if m[1] == m[3] {
			continue
		}
		first, _ := strconv.ParseUint(m[2], 10, 32)
		second, _ := strconv.ParseUint(m[4], 10, 32)
		group, binding := first, second
		if m[1] == "binding" {
			group, binding = second, first
		}
		addressSpace := strings.TrimSpace(m[5])
		typeName := strings.TrimSpace(m[7])

		entry, kind := classifyResource(uint32(binding), addressSpace, typeName)
		b := Binding{
			Name:    m[6],
			Group:   uint32(group),
			Binding: uint32(binding),
			Kind:    kind,
			Type:    typeName,
			Entry:   entry,
		}
		if kind.IsBuffer() {
			if tl, ok := resolveTypeLayout(typeName, known); ok {
				b.Size = tl.size
				b.Entry.Buffer.MinBindingSize = tl.size
			}
			b.Struct = layouts[typeName]
		}
		bindings = append(bindings, b)
	}

	sort.SliceStable(bindings, func(i, j int) bool {
		if bindings[i].Group != bindings[j].Group {
			return bindings[i].Group < bindings[j].Group
		}
		return bindings[i].Binding < bindings[j].Binding
	})
	return bindings
}

// parseEntryPoints finds every stage-attributed function and its parameter list.
func parseEntryPoints(cleaned string) []parsedEntry {
	var entries []parsedEntry
	for _, loc := range stageAttrRegex.FindAllStringSubmatchIndex(cleaned, -1) {
		stage := stageNames[cleaned[loc[2]:loc[3]]]
		rest := cleaned[loc[1]:]
		hdr := fnHeaderRegex.FindStringSubmatchIndex(rest)
		if hdr == nil {
			continue
		}
		pe := parsedEntry{
			name:       rest[hdr[2]:hdr[3]],
			stage:      stage,
			attributes: cleaned[loc[0] : loc[1]+hdr[0]],
		}
		if body, ok := enclosed(rest[hdr[1]-1:], '(', ')'); ok {
			pe.params = parseFields(body)
		}
		entries = append(entries, pe)
	}
	return entries
}

// collectVertexInputs flattens entry point parameters, expanding struct-typed parameters into
// their members, and orders the result by location with builtins last.
func collectVertexInputs(params []parsedField, structs map[string]parsedStruct) []VertexInput {
	var inputs []VertexInput
	add := func(f parsedField) {
		in := VertexInput{Name: f.name, Type: f.typeName, Builtin: f.isBuiltin}
		if f.location >= 0 {
			in.Location = uint32(f.location)
		}
		if info, ok := wgslVertexFormatMap[f.typeName]; ok && !f.isBuiltin {
			in.Format = info.format
			in.Size = info.size
		}
		inputs = append(inputs, in)
	}

	for _, p := range params {
		if p.location >= 0 || p.isBuiltin {
			add(p)
			continue
		}
		if ps, ok := structs[p.typeName]; ok {
			for _, f := range ps.fields {
				if f.location >= 0 || f.isBuiltin {
					add(f)
				}
			}
		}
	}

	sort.SliceStable(inputs, func(i, j int) bool {
		if inputs[i].Builtin != inputs[j].Builtin {
			return !inputs[i].Builtin
		}
		return inputs[i].Location < inputs[j].Location
	})
	return inputs
}

// parseWorkgroupSize reads @workgroup_size from an entry point's attribute text.
// Omitted dimensions default to 1.
func parseWorkgroupSize(attributes string) [3]uint32 {
	result := [3]uint32{1, 1, 1}
	m := workgroupSizeRegex.FindStringSubmatch(attributes)
	if m == nil {
		return result
	}
	for i := 0; i < 3; i++ {
		if m[i+1] == "" {
			continue
		}
		if v, err := strconv.ParseUint(m[i+1], 10, 32); err == nil {
			result[i] = uint32(v)
		}
	}
	return result
}

// parseStructBlocks finds every struct block in comment-free source.
func parseStructBlocks(cleaned string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(cleaned, -1)
	structs := make([]parsedStruct, 0, len(matches))
	for _, m := range matches {
		structs = append(structs, parsedStruct{name: m[1], fields: parseFields(m[2])})
	}
	return structs
}

// parseFields parses a comma separated member or parameter list.
func parseFields(body string) []parsedField {
	parts := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(parts))

	for _, part := range parts {
		part = strings.Join(strings.Fields(part), " ")
		if part == "" {
			continue
		}
		fm := fieldRegex.FindStringSubmatch(part)
		if fm == nil {
			continue
		}
		f := parsedField{
			name:      fm[1],
			typeName:  strings.TrimSpace(fm[2]),
			location:  -1,
			isBuiltin: builtinRegex.MatchString(part),
		}
		if lm := locationRegex.FindStringSubmatch(part); lm != nil {
			if loc, err := strconv.Atoi(lm[1]); err == nil {
				f.location = loc
			}
		}
		if am := alignRegex.FindStringSubmatch(part); am != nil {
			f.align, _ = strconv.ParseUint(am[1], 10, 64)
		}
		if sm := sizeRegex.FindStringSubmatch(part); sm != nil {
			f.size, _ = strconv.ParseUint(sm[1], 10, 64)
		}
		fields = append(fields, f)
	}
	return fields
}

// enclosed returns the text between the opening delimiter at s[0] and its matching close.
func enclosed(s string, open, close byte) (string, bool) {
	if len(s) == 0 || s[0] != open {
		return "", false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[1:i], true
			}
		}
	}
	return "", false
}

// splitAtTopLevelCommas splits s at commas not nested inside angle brackets or parentheses,
// so array<T, N> and @interpolate(flat, either) stay intact.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
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

// stripComments removes line comments and nested block comments.
func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

func stripLineComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	for line := range strings.SplitSeq(source, "\n") {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func stripBlockComments(source string) string {
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
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}
