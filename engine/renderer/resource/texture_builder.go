package resource

import "github.com/cogentcore/webgpu/wgpu"

// TextureBuilderOption is a functional option for configuring a Texture.
type TextureBuilderOption func(*Texture)

// WithTextureLabel sets the debug label of the texture.
func WithTextureLabel(label string) TextureBuilderOption {
	return func(t *Texture) {
		t.label = label
	}
}

// WithTextureSize sets the width and height in texels.
//
// Parameters:
//   - width: the width in texels
//   - height: the height in texels
//
// Returns:
//   - TextureBuilderOption: the option to apply
func WithTextureSize(width, height uint32) TextureBuilderOption {
	return func(t *Texture) {
		t.width = width
		t.height = height
	}
}

// WithTextureLayers sets the depth or array layer count.
func WithTextureLayers(layers uint32) TextureBuilderOption {
	return func(t *Texture) {
		t.layers = layers
	}
}

// WithTextureFormat sets the texel format. Defaults to RGBA8Unorm.
func WithTextureFormat(format wgpu.TextureFormat) TextureBuilderOption {
	return func(t *Texture) {
		t.format = format
	}
}

// WithTextureUsage sets the usage flags. Defaults to texture binding, copy destination and render attachment.
func WithTextureUsage(usage wgpu.TextureUsage) TextureBuilderOption {
	return func(t *Texture) {
		t.usage = usage
	}
}

// WithTextureDimension sets the texture dimension. Defaults to 2D.
func WithTextureDimension(dimension wgpu.TextureDimension) TextureBuilderOption {
	return func(t *Texture) {
		t.dimension = dimension
	}
}

// WithSampleCount sets the multisample count. Defaults to 1.
func WithSampleCount(count uint32) TextureBuilderOption {
	return func(t *Texture) {
		t.sampleCount = count
	}
}

// WithMipLevels sets the mip level count. Defaults to 1.
func WithMipLevels(levels uint32) TextureBuilderOption {
	return func(t *Texture) {
		t.mipLevels = levels
	}
}
