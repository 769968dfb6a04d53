package shader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cogentcore/webgpu/wgpu"
)

// Stage identifies the pipeline stage an entry point runs in.
type Stage int

const (
	// StageVertex is the vertex processing stage of a render pipeline.
	StageVertex Stage = iota

	// StageFragment is the fragment processing stage of a render pipeline.
	StageFragment

	// StageCompute is the single stage of a compute pipeline.
	StageCompute
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Visibility returns the bind group layout visibility flag of the stage.
//
// Returns:
//   - wgpu.ShaderStage: the visibility flag for this stage
func (s Stage) Visibility() wgpu.ShaderStage {
	switch s {
	case StageVertex:
		return wgpu.ShaderStageVertex
	case StageFragment:
		return wgpu.ShaderStageFragment
	case StageCompute:
		return wgpu.ShaderStageCompute
	default:
		return wgpu.ShaderStageNone
	}
}

// Source is an immutable WGSL program text plus an optional explicit entry point.
// Reflection and module caches key on Code, so two Sources with the same text share
// one reflection and one native module.
type Source struct {
	code       string
	entryPoint string
	label      string
}

// NewSource creates a Source from WGSL text with all specified options applied.
//
// Parameters:
//   - code: the WGSL source text
//   - options: functional options such as WithEntryPoint and WithLabel
//
// Returns:
//   - *Source: the immutable shader source
func NewSource(code string, options ...SourceBuilderOption) *Source {
	s := &Source{code: code}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// LoadSource reads WGSL text from a file. The label defaults to the file's base name.
//
// Parameters:
//   - path: the path of the .wgsl file
//   - options: functional options such as WithEntryPoint and WithLabel
//
// Returns:
//   - *Source: the loaded shader source
//   - error: an error if the file could not be read
func LoadSource(path string, options ...SourceBuilderOption) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to read source file %q: %w", path, err)
	}
	opts := append([]SourceBuilderOption{WithLabel(filepath.Base(path))}, options...)
	return NewSource(string(data), opts...), nil
}

func (s *Source) Code() string {
	return s.code
}

// EntryPoint returns the explicitly requested entry point name, or "" to select the first one of the stage.
func (s *Source) EntryPoint() string {
	return s.entryPoint
}

func (s *Source) Label() string {
	return s.label
}

// Key returns the cache key of the source, or "" for a nil source.
func (s *Source) Key() string {
	if s == nil {
		return ""
	}
	return s.code
}
