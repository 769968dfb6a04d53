package shader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/cache"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// ModuleCache memoizes native shader modules of one device by source text.
type ModuleCache struct {
	device   gpu.Device
	validate bool
	modules  *cache.Cache[string, gpu.ShaderModule]
}

// NewModuleCache creates a module cache bound to device.
//
// Parameters:
//   - device: the device modules are created on
//   - validate: when true, sources are checked by the naga WGSL front end before module creation
//
// Returns:
//   - *ModuleCache: the created cache
func NewModuleCache(device gpu.Device, validate bool) *ModuleCache {
	return &ModuleCache{
		device:   device,
		validate: validate,
		modules:  cache.New[string, gpu.ShaderModule](),
	}
}

// Module returns the native module compiled from src, creating it on first use.
//
// Parameters:
//   - src: the shader source
//
// Returns:
//   - gpu.ShaderModule: the cached native module
//   - error: an error if validation or module creation failed
func (c *ModuleCache) Module(src *Source) (gpu.ShaderModule, error) {
	return c.modules.GetOrCreate(src.Code(), func() (gpu.ShaderModule, cache.Cleanup, error) {
		if c.validate {
			if err := Validate(src.Code()); err != nil {
				return nil, nil, fmt.Errorf("shader: %s: %w", src.Label(), err)
			}
		}
		m, err := c.device.CreateShaderModule(src.Label(), src.Code())
		if err != nil {
			return nil, nil, fmt.Errorf("shader: failed to create module %q: %w", src.Label(), err)
		}
		common.Logger().Debug("[shader] created module", "label", src.Label())
		return m, m.Release, nil
	})
}

func (c *ModuleCache) Len() int {
	return c.modules.Len()
}

// Purge releases every cached module.
func (c *ModuleCache) Purge() {
	c.modules.Purge()
}

// Validate parses and lowers code with the naga WGSL front end and checks that every entry point
// the reflection parser discovers is present in the lowered module with the same stage.
//
// Parameters:
//   - code: the WGSL source
//
// Returns:
//   - error: the first parse, lowering or entry point mismatch error
func Validate(code string) error {
	ast, err := naga.Parse(code)
	if err != nil {
		return fmt.Errorf("wgsl parse: %w", err)
	}
	module, err := naga.Lower(ast)
	if err != nil {
		return fmt.Errorf("wgsl lower: %w", err)
	}

	lowered := make(map[string]Stage, len(module.EntryPoints))
	for _, ep := range module.EntryPoints {
		switch ep.Stage {
		case ir.StageVertex:
			lowered[ep.Name] = StageVertex
		case ir.StageFragment:
			lowered[ep.Name] = StageFragment
		case ir.StageCompute:
			lowered[ep.Name] = StageCompute
		}
	}
	for _, ep := range Reflect(code).EntryPoints {
		st, ok := lowered[ep.Name]
		if !ok || st != ep.Stage {
			return fmt.Errorf("%w: %s entry point %q not present in lowered module", ErrEntryPointNotFound, ep.Stage, ep.Name)
		}
	}
	return nil
}
