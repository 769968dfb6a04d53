package resource

import "github.com/cogentcore/webgpu/wgpu"

// SamplerBuilderOption is a functional option for configuring a Sampler.
type SamplerBuilderOption func(*Sampler)

// WithSamplerLabel sets the debug label of the sampler.
func WithSamplerLabel(label string) SamplerBuilderOption {
	return func(s *Sampler) {
		s.label = label
	}
}

// WithFilter sets the magnification, minification and mipmap filters.
func WithFilter(mag, min wgpu.FilterMode, mipmap wgpu.MipmapFilterMode) SamplerBuilderOption {
	return func(s *Sampler) {
		s.desc.MagFilter, s.desc.MinFilter, s.desc.MipmapFilter = mag, min, mipmap
	}
}

// WithAddressMode sets the addressing of the u, v and w coordinates.
func WithAddressMode(u, v, w wgpu.AddressMode) SamplerBuilderOption {
	return func(s *Sampler) {
		s.desc.AddressModeU, s.desc.AddressModeV, s.desc.AddressModeW = u, v, w
	}
}

// WithCompare makes the sampler a comparison sampler.
func WithCompare(fn wgpu.CompareFunction) SamplerBuilderOption {
	return func(s *Sampler) {
		s.desc.Compare = fn
	}
}

// WithAnisotropy sets the maximum anisotropy clamp.
func WithAnisotropy(n uint16) SamplerBuilderOption {
	return func(s *Sampler) {
		s.desc.MaxAnisotropy = n
	}
}

// WithLodClamp sets the level of detail range.
func WithLodClamp(min, max float32) SamplerBuilderOption {
	return func(s *Sampler) {
		s.desc.LodMinClamp, s.desc.LodMaxClamp = min, max
	}
}
