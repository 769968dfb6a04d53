package shader

import (
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgslPrimitiveLayoutMap maps WGSL scalar, vector, matrix and atomic types to their size and
// alignment. Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var wgslPrimitiveLayoutMap = map[string]typeLayout{
	"f32":  {4, 4},
	"i32":  {4, 4},
	"u32":  {4, 4},
	"f16":  {2, 2},
	"bool": {4, 4},

	"vec2<f32>": {8, 8},
	"vec2f":     {8, 8},
	"vec3<f32>": {12, 16},
	"vec3f":     {12, 16},
	"vec4<f32>": {16, 16},
	"vec4f":     {16, 16},
	"vec2<i32>": {8, 8},
	"vec2i":     {8, 8},
	"vec3<i32>": {12, 16},
	"vec3i":     {12, 16},
	"vec4<i32>": {16, 16},
	"vec4i":     {16, 16},
	"vec2<u32>": {8, 8},
	"vec2u":     {8, 8},
	"vec3<u32>": {12, 16},
	"vec3u":     {12, 16},
	"vec4<u32>": {16, 16},
	"vec4u":     {16, 16},
	"vec2<f16>": {4, 4},
	"vec2h":     {4, 4},
	"vec4<f16>": {8, 8},
	"vec4h":     {8, 8},

	// matCxR<f32>: C columns of vecR<f32>
	"mat2x2<f32>": {16, 8},
	"mat2x2f":     {16, 8},
	"mat2x3<f32>": {32, 16},
	"mat2x4<f32>": {32, 16},
	"mat3x2<f32>": {24, 8},
	"mat3x3<f32>": {48, 16},
	"mat3x3f":     {48, 16},
	"mat3x4<f32>": {48, 16},
	"mat4x2<f32>": {32, 8},
	"mat4x3<f32>": {64, 16},
	"mat4x4<f32>": {64, 16},
	"mat4x4f":     {64, 16},

	"atomic<u32>": {4, 4},
	"atomic<i32>": {4, 4},
}

var wgslSampledTextureMap = map[string]sampledTextureInfo{
	"texture_1d":                    {wgpu.TextureViewDimension1D, false},
	"texture_2d":                    {wgpu.TextureViewDimension2D, false},
	"texture_2d_array":              {wgpu.TextureViewDimension2DArray, false},
	"texture_3d":                    {wgpu.TextureViewDimension3D, false},
	"texture_cube":                  {wgpu.TextureViewDimensionCube, false},
	"texture_cube_array":            {wgpu.TextureViewDimensionCubeArray, false},
	"texture_multisampled_2d":       {wgpu.TextureViewDimension2D, true},
	"texture_depth_2d":              {wgpu.TextureViewDimension2D, false},
	"texture_depth_2d_array":        {wgpu.TextureViewDimension2DArray, false},
	"texture_depth_cube":            {wgpu.TextureViewDimensionCube, false},
	"texture_depth_cube_array":      {wgpu.TextureViewDimensionCubeArray, false},
	"texture_depth_multisampled_2d": {wgpu.TextureViewDimension2D, true},
}

var wgslStorageTextureDimMap = map[string]wgpu.TextureViewDimension{
	"texture_storage_1d":       wgpu.TextureViewDimension1D,
	"texture_storage_2d":       wgpu.TextureViewDimension2D,
	"texture_storage_2d_array": wgpu.TextureViewDimension2DArray,
	"texture_storage_3d":       wgpu.TextureViewDimension3D,
}

var wgslSampleTypeMap = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

var wgslStorageAccessMap = map[string]wgpu.StorageTextureAccess{
	"write":      wgpu.StorageTextureAccessWriteOnly,
	"read":       wgpu.StorageTextureAccessReadOnly,
	"read_write": wgpu.StorageTextureAccessReadWrite,
}

// wgslTexelFormatMap lists the texel formats WGSL allows for storage textures.
var wgslTexelFormatMap = map[string]wgpu.TextureFormat{
	"rgba8unorm":  wgpu.TextureFormatRGBA8Unorm,
	"rgba8snorm":  wgpu.TextureFormatRGBA8Snorm,
	"rgba8uint":   wgpu.TextureFormatRGBA8Uint,
	"rgba8sint":   wgpu.TextureFormatRGBA8Sint,
	"rgba16uint":  wgpu.TextureFormatRGBA16Uint,
	"rgba16sint":  wgpu.TextureFormatRGBA16Sint,
	"rgba16float": wgpu.TextureFormatRGBA16Float,
	"r32uint":     wgpu.TextureFormatR32Uint,
	"r32sint":     wgpu.TextureFormatR32Sint,
	"r32float":    wgpu.TextureFormatR32Float,
	"rg32uint":    wgpu.TextureFormatRG32Uint,
	"rg32sint":    wgpu.TextureFormatRG32Sint,
	"rg32float":   wgpu.TextureFormatRG32Float,
	"rgba32uint":  wgpu.TextureFormatRGBA32Uint,
	"rgba32sint":  wgpu.TextureFormatRGBA32Sint,
	"rgba32float": wgpu.TextureFormatRGBA32Float,
	"bgra8unorm":  wgpu.TextureFormatBGRA8Unorm,
}

// resolveTypeLayout resolves a WGSL type to its size and alignment from primitives and already
// computed structs. A runtime-sized array resolves to one element stride.
//
// Parameters:
//   - typeName: the WGSL type, e.g. "f32", "Camera", "array<Plane, 6>"
//   - known: layouts of structs resolved so far
//
// Returns:
//   - typeLayout: the resolved layout
//   - bool: false for unknown types
func resolveTypeLayout(typeName string, known map[string]typeLayout) (typeLayout, bool) {
	typeName = strings.ReplaceAll(typeName, " ", "")
	if tl, ok := wgslPrimitiveLayoutMap[typeName]; ok {
		return tl, true
	}
	if tl, ok := known[typeName]; ok {
		return tl, true
	}

	if !strings.HasPrefix(typeName, "array<") || !strings.HasSuffix(typeName, ">") {
		return typeLayout{}, false
	}
	elemType, count, sized := splitArrayType(typeName)
	elem, ok := resolveTypeLayout(elemType, known)
	if !ok {
		return typeLayout{}, false
	}
	stride := common.AlignUp(elem.align, elem.size)
	if !sized {
		return typeLayout{stride, elem.align}, true
	}
	n, err := strconv.ParseUint(count, 10, 64)
	if err != nil {
		return typeLayout{}, false
	}
	return typeLayout{n * stride, elem.align}, true
}

// splitArrayType splits array<T, N> into T and N. sized is false for runtime-sized arrays.
func splitArrayType(typeName string) (elem, count string, sized bool) {
	inner := typeName[len("array<") : len(typeName)-1]
	parts := splitAtTopLevelCommas(inner)
	elem = strings.TrimSpace(parts[0])
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return elem, "", false
	}
	return elem, strings.TrimSpace(parts[1]), true
}

// computeStructLayout lays out a struct with WGSL rules: each member at the next offset aligned to
// the member, total size rounded to the largest member alignment. A trailing runtime-sized array
// contributes one element stride. Builtin members are not part of the memory layout.
func computeStructLayout(ps parsedStruct, known map[string]typeLayout) (*StructLayout, bool) {
	sl := &StructLayout{Name: ps.name, Align: 1}
	offset := uint64(0)

	for _, f := range ps.fields {
		if f.isBuiltin {
			continue
		}
		tl, ok := resolveTypeLayout(f.typeName, known)
		if !ok {
			return nil, false
		}
		// @size may only grow a member
		align, size := common.Coalesce(f.align, tl.align), max(f.size, tl.size)
		offset = common.AlignUp(align, offset)
		sl.Fields = append(sl.Fields, Field{
			Name:   f.name,
			Type:   f.typeName,
			Offset: offset,
			Size:   size,
			Align:  align,
		})
		offset += size
		sl.Align = max(sl.Align, align)
	}

	sl.Size = common.AlignUp(sl.Align, offset)
	return sl, true
}

// computeStructLayouts resolves every struct, iterating until nested struct members settle.
func computeStructLayouts(structs []parsedStruct) (map[string]*StructLayout, map[string]typeLayout) {
	layouts := make(map[string]*StructLayout, len(structs))
	known := make(map[string]typeLayout, len(structs))
	remaining := append([]parsedStruct(nil), structs...)

	for len(remaining) > 0 {
		progress := false
		next := remaining[:0]
		for _, ps := range remaining {
			if sl, ok := computeStructLayout(ps, known); ok {
				layouts[ps.name] = sl
				known[ps.name] = typeLayout{sl.Size, sl.Align}
				progress = true
			} else {
				next = append(next, ps)
			}
		}
		remaining = next
		if !progress {
			break
		}
	}
	return layouts, known
}

// classifyResource maps a resource declaration to its layout entry and kind. Visibility is left
// unset; the layout deriver assigns it from the declaring stage.
//
// Parameters:
//   - binding: the @binding index
//   - addressSpace: the var<> qualifier, e.g. "uniform" or "storage, read_write"; empty for handle types
//   - typeName: the declared type, e.g. "Camera", "texture_2d<f32>", "sampler"
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: the populated layout entry
//   - ResourceKind: the resource kind discriminant
func classifyResource(binding uint32, addressSpace, typeName string) (wgpu.BindGroupLayoutEntry, ResourceKind) {
	entry := wgpu.BindGroupLayoutEntry{Binding: binding}

	if addressSpace != "" {
		switch {
		case addressSpace == "uniform":
			entry.Buffer.Type = wgpu.BufferBindingTypeUniform
			return entry, ResourceUniform
		case strings.HasPrefix(addressSpace, "storage") && strings.Contains(addressSpace, "read_write"):
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
			return entry, ResourceStorage
		case strings.HasPrefix(addressSpace, "storage"):
			entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
			return entry, ResourceReadOnlyStorage
		}
		return entry, ResourceUnknown
	}

	switch {
	case typeName == "sampler":
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		return entry, ResourceSampler
	case typeName == "sampler_comparison":
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
		return entry, ResourceComparisonSampler
	case typeName == "texture_external":
		entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		return entry, ResourceExternalTexture
	case strings.HasPrefix(typeName, "texture_storage_"):
		classifyStorageTexture(typeName, &entry)
		return entry, ResourceStorageTexture
	case strings.HasPrefix(typeName, "texture_depth_"):
		entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		if info, ok := wgslSampledTextureMap[typeName]; ok {
			entry.Texture.ViewDimension = info.viewDimension
			entry.Texture.Multisampled = info.multisampled
		}
		return entry, ResourceTexture
	case strings.HasPrefix(typeName, "texture_"):
		base, param := splitTypeParams(typeName)
		if info, ok := wgslSampledTextureMap[base]; ok {
			entry.Texture.ViewDimension = info.viewDimension
			entry.Texture.Multisampled = info.multisampled
		}
		if st, ok := wgslSampleTypeMap[param]; ok {
			entry.Texture.SampleType = st
			// multisampled float textures cannot be filtered
			if st == wgpu.TextureSampleTypeFloat && entry.Texture.Multisampled {
				entry.Texture.SampleType = wgpu.TextureSampleTypeUnfilterableFloat
			}
		}
		return entry, ResourceTexture
	}
	return entry, ResourceUnknown
}

// classifyStorageTexture fills the storage texture fields from e.g. "texture_storage_2d<rgba8unorm, write>".
func classifyStorageTexture(typeName string, entry *wgpu.BindGroupLayoutEntry) {
	base, params := splitTypeParams(typeName)
	if dim, ok := wgslStorageTextureDimMap[base]; ok {
		entry.StorageTexture.ViewDimension = dim
	}
	parts := strings.SplitN(params, ",", 2)
	if format, ok := wgslTexelFormatMap[strings.TrimSpace(parts[0])]; ok {
		entry.StorageTexture.Format = format
	}
	entry.StorageTexture.Access = wgpu.StorageTextureAccessWriteOnly
	if len(parts) == 2 {
		if access, ok := wgslStorageAccessMap[strings.TrimSpace(parts[1])]; ok {
			entry.StorageTexture.Access = access
		}
	}
}

// splitTypeParams splits "texture_2d<f32>" into ("texture_2d", "f32").
func splitTypeParams(typeName string) (base string, params string) {
	before, after, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return before, strings.TrimSpace(strings.TrimSuffix(after, ">"))
}
