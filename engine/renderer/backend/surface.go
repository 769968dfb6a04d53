package backend

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// Surface is the presentation surface of a WGPUDevice. It is the source of surface textures, see
// resource.NewSurfaceTexture.
type Surface struct {
	mu sync.Mutex

	surface     *wgpu.Surface
	adapter     *wgpu.Adapter
	device      *wgpu.Device
	presentMode wgpu.PresentMode
	format      wgpu.TextureFormat
	width       uint32
	height      uint32
	acquired    bool
}

var _ resource.SurfaceSource = &Surface{}

// Configure sizes the swapchain. It must be called before the first frame and after every resize.
// The format is the first one the adapter prefers for the surface.
//
// Parameters:
//   - width: the framebuffer width in pixels
//   - height: the framebuffer height in pixels
func (s *Surface) Configure(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	capabilities := s.surface.GetCapabilities(s.adapter)
	s.format = capabilities.Formats[0]
	s.width, s.height = uint32(width), uint32(height)
	s.surface.Configure(s.adapter, s.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      s.format,
		Width:       s.width,
		Height:      s.height,
		PresentMode: s.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	common.Logger().Debug("[backend] surface configured", "width", width, "height", height, "format", s.format)
}

// Format returns the texture format chosen by the last Configure.
func (s *Surface) Format() wgpu.TextureFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// Size returns the configured size in pixels.
func (s *Surface) Size() (width, height uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Texture returns a surface texture descriptor matching the current configuration.
//
// Parameters:
//   - options: extra texture options such as resource.WithTextureLabel
//
// Returns:
//   - *resource.Texture: the surface texture descriptor
func (s *Surface) Texture(options ...resource.TextureBuilderOption) *resource.Texture {
	width, height := s.Size()
	opts := append([]resource.TextureBuilderOption{
		resource.WithTextureLabel("surface"),
		resource.WithTextureFormat(s.Format()),
		resource.WithTextureSize(width, height),
		resource.WithTextureUsage(wgpu.TextureUsageRenderAttachment),
	}, options...)
	return resource.NewSurfaceTexture(s, opts...)
}

func (s *Surface) AcquireTexture() (gpu.Texture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.acquired {
		return nil, fmt.Errorf("backend: previous surface texture not yet presented")
	}
	t, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("backend: failed to acquire surface texture: %w", err)
	}
	s.acquired = true
	return &texture{tex: t}, nil
}

func (s *Surface) Present() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.acquired {
		return
	}
	s.surface.Present()
	s.acquired = false
}

func (s *Surface) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface.Release()
}
