package resource

import (
	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// Sampler describes sampling parameters. Every setter bumps the version, so the next resolution
// evicts the stale native sampler, and publishes EventChanged.
type Sampler struct {
	label     string
	desc      wgpu.SamplerDescriptor
	version   uint64
	destroyed bool
	events    common.Subject[Event]
}

var _ Descriptor = &Sampler{}

// NewSampler creates a Sampler descriptor with all specified options applied. Unset fields default
// to linear filtering, repeat addressing and a lod range of [0, 32].
//
// Parameters:
//   - options: functional options such as WithFilter and WithCompare
//
// Returns:
//   - *Sampler: the sampler descriptor
func NewSampler(options ...SamplerBuilderOption) *Sampler {
	s := &Sampler{}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Sampler) Label() string {
	return s.label
}

func (s *Sampler) Version() uint64 {
	return s.version
}

func (s *Sampler) Destroyed() bool {
	return s.destroyed
}

func (s *Sampler) Subscribe(fn func(Event)) common.Unsubscribe {
	return s.events.Subscribe(fn)
}

// Descriptor returns the native sampler descriptor with defaults applied.
func (s *Sampler) Descriptor() wgpu.SamplerDescriptor {
	d := s.desc
	return wgpu.SamplerDescriptor{
		Label:         s.label,
		AddressModeU:  common.Coalesce(d.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(d.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(d.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     common.Coalesce(d.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(d.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(d.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   d.LodMinClamp,
		LodMaxClamp:   common.Coalesce(d.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(d.MaxAnisotropy, 1),
		Compare:       d.Compare,
	}
}

func (s *Sampler) mutate(fn func(d *wgpu.SamplerDescriptor)) {
	fn(&s.desc)
	s.version++
	s.events.Notify(EventChanged)
}

// SetFilter changes the magnification, minification and mipmap filters.
func (s *Sampler) SetFilter(mag, min wgpu.FilterMode, mipmap wgpu.MipmapFilterMode) {
	s.mutate(func(d *wgpu.SamplerDescriptor) {
		d.MagFilter, d.MinFilter, d.MipmapFilter = mag, min, mipmap
	})
}

// SetAddressMode changes the addressing of the u, v and w coordinates.
func (s *Sampler) SetAddressMode(u, v, w wgpu.AddressMode) {
	s.mutate(func(d *wgpu.SamplerDescriptor) {
		d.AddressModeU, d.AddressModeV, d.AddressModeW = u, v, w
	})
}

// SetCompare changes the comparison function. wgpu.CompareFunctionUndefined disables comparison.
func (s *Sampler) SetCompare(fn wgpu.CompareFunction) {
	s.mutate(func(d *wgpu.SamplerDescriptor) {
		d.Compare = fn
	})
}

// SetAnisotropy changes the maximum anisotropy clamp.
func (s *Sampler) SetAnisotropy(n uint16) {
	s.mutate(func(d *wgpu.SamplerDescriptor) {
		d.MaxAnisotropy = n
	})
}

// SetLodClamp changes the level of detail range.
func (s *Sampler) SetLodClamp(min, max float32) {
	s.mutate(func(d *wgpu.SamplerDescriptor) {
		d.LodMinClamp, d.LodMaxClamp = min, max
	})
}
