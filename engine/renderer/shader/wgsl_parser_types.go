package shader

import "github.com/cogentcore/webgpu/wgpu"

// vertexFormatInfo pairs a vertex format with its byte size.
type vertexFormatInfo struct {
	format wgpu.VertexFormat
	size   uint64
}

// sampledTextureInfo holds the view dimension and multisampled flag of a sampled texture type.
type sampledTextureInfo struct {
	viewDimension wgpu.TextureViewDimension
	multisampled  bool
}

// typeLayout is the byte size and alignment of a WGSL type.
type typeLayout struct {
	size  uint64
	align uint64
}

// parsedField is a struct member or function parameter with its IO and layout attributes.
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
	// align and size are the @align/@size overrides, 0 when absent
	align uint64
	size  uint64
}

// parsedStruct is a WGSL struct block.
type parsedStruct struct {
	name   string
	fields []parsedField
}

// parsedEntry is an entry point function header.
type parsedEntry struct {
	name       string
	stage      Stage
	attributes string
	params     []parsedField
}
