package pipeline

import (
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// vertexFormatInfo is the byte size and the element kinds a vertex format reads.
type vertexFormatInfo struct {
	size     uint64
	elements []resource.ElementKind
}

func (i vertexFormatInfo) accepts(kind resource.ElementKind) bool {
	for _, k := range i.elements {
		if k == kind {
			return true
		}
	}
	return false
}

var (
	float32Elements = []resource.ElementKind{resource.ElementFloat32}
	uint32Elements  = []resource.ElementKind{resource.ElementUint32}
	int32Elements   = []resource.ElementKind{resource.ElementInt32}
	uint16Elements  = []resource.ElementKind{resource.ElementUint16}
	int16Elements   = []resource.ElementKind{resource.ElementInt16}
	uint8Elements   = []resource.ElementKind{resource.ElementUint8}
	int8Elements    = []resource.ElementKind{resource.ElementInt8}
)

// vertexFormats maps each supported vertex format to its size and element kinds. Half floats are
// stored as uint16 bit patterns.
var vertexFormats = map[wgpu.VertexFormat]vertexFormatInfo{
	wgpu.VertexFormatUint8x2:   {2, uint8Elements},
	wgpu.VertexFormatUint8x4:   {4, uint8Elements},
	wgpu.VertexFormatSint8x2:   {2, int8Elements},
	wgpu.VertexFormatSint8x4:   {4, int8Elements},
	wgpu.VertexFormatUnorm8x2:  {2, uint8Elements},
	wgpu.VertexFormatUnorm8x4:  {4, uint8Elements},
	wgpu.VertexFormatSnorm8x2:  {2, int8Elements},
	wgpu.VertexFormatSnorm8x4:  {4, int8Elements},
	wgpu.VertexFormatUint16x2:  {4, uint16Elements},
	wgpu.VertexFormatUint16x4:  {8, uint16Elements},
	wgpu.VertexFormatSint16x2:  {4, int16Elements},
	wgpu.VertexFormatSint16x4:  {8, int16Elements},
	wgpu.VertexFormatUnorm16x2: {4, uint16Elements},
	wgpu.VertexFormatUnorm16x4: {8, uint16Elements},
	wgpu.VertexFormatSnorm16x2: {4, int16Elements},
	wgpu.VertexFormatSnorm16x4: {8, int16Elements},
	wgpu.VertexFormatFloat16x2: {4, uint16Elements},
	wgpu.VertexFormatFloat16x4: {8, uint16Elements},
	wgpu.VertexFormatFloat32:   {4, float32Elements},
	wgpu.VertexFormatFloat32x2: {8, float32Elements},
	wgpu.VertexFormatFloat32x3: {12, float32Elements},
	wgpu.VertexFormatFloat32x4: {16, float32Elements},
	wgpu.VertexFormatUint32:    {4, uint32Elements},
	wgpu.VertexFormatUint32x2:  {8, uint32Elements},
	wgpu.VertexFormatUint32x3:  {12, uint32Elements},
	wgpu.VertexFormatUint32x4:  {16, uint32Elements},
	wgpu.VertexFormatSint32:    {4, int32Elements},
	wgpu.VertexFormatSint32x2:  {8, int32Elements},
	wgpu.VertexFormatSint32x3:  {12, int32Elements},
	wgpu.VertexFormatSint32x4:  {16, int32Elements},
}
