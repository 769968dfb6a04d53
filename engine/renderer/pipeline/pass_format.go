package pipeline

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// PassFormat describes the attachments a pipeline or bundle is compiled against.
type PassFormat struct {
	// ColorFormats are the formats of the color attachments in order. TextureFormatUndefined marks
	// an unused attachment slot.
	ColorFormats []wgpu.TextureFormat
	// DepthStencilFormat is the depth/stencil attachment format, TextureFormatUndefined for none.
	DepthStencilFormat wgpu.TextureFormat
	// SampleCount is the attachment sample count, 0 meaning 1.
	SampleCount uint32
	// Width and Height are the attachment size.
	Width, Height uint32
}

// Samples returns the sample count with the default applied.
func (f PassFormat) Samples() uint32 {
	if f.SampleCount == 0 {
		return 1
	}
	return f.SampleCount
}

// HasDepthStencil reports whether the pass has a depth/stencil attachment.
func (f PassFormat) HasDepthStencil() bool {
	return f.DepthStencilFormat != wgpu.TextureFormatUndefined
}

// Fingerprint is a string identifying the format. Two structurally identical formats share a
// fingerprint, so pipelines and bundles keyed by it are reused across pass instances.
func (f PassFormat) Fingerprint() string {
	var sb strings.Builder
	for i, c := range f.ColorFormats {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", uint32(c))
	}
	fmt.Fprintf(&sb, "|%d|%d|%dx%d", uint32(f.DepthStencilFormat), f.Samples(), f.Width, f.Height)
	return sb.String()
}
