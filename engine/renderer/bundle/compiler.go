package bundle

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/cache"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/command"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/pipeline"
)

type bundleKey struct {
	desc        *RenderBundle
	fingerprint string
}

// recording is one sealed bundle and what it was recorded from.
type recording struct {
	bundle   gpu.RenderBundle
	versions []uint64
	deps     []command.Dependency
}

// Compiler records render bundles and caches them by descriptor and pass format fingerprint. It
// is not safe for concurrent use.
type Compiler struct {
	device   gpu.Device
	emitter  *command.Emitter
	reporter common.Reporter

	bundles *cache.Cache[bundleKey, *recording]
	watched map[*RenderBundle]common.Unsubscribe
	frame   []gpu.RenderBundle
}

// NewCompiler creates a bundle compiler with all specified options applied.
//
// Parameters:
//   - device: the device bundle encoders are created on
//   - emitter: the emitter replaying render objects into bundle encoders
//   - options: functional options such as WithReporter
//
// Returns:
//   - *Compiler: the created compiler
func NewCompiler(device gpu.Device, emitter *command.Emitter, options ...CompilerBuilderOption) *Compiler {
	c := &Compiler{
		device:   device,
		emitter:  emitter,
		reporter: common.LogReporter{},
		bundles:  cache.New[bundleKey, *recording](),
		watched:  make(map[*RenderBundle]common.Unsubscribe),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Resolve returns the native bundle of desc recorded for pf. A cached recording is reused unless
// one of its objects was mutated or a pipeline, bind group or buffer it captured was rebuilt, in
// which case it is re-recorded. Checking the captured objects also flushes their pending uploads.
//
// Objects that fail to resolve are left out of the recording. Such a recording is only valid for
// the current frame and is released by EndFrame.
//
// Parameters:
//   - desc: the bundle descriptor
//   - pf: the format of the pass the bundle executes in
//
// Returns:
//   - gpu.RenderBundle: the sealed native bundle
//   - error: an error if the bundle encoder could not be created or sealed
func (c *Compiler) Resolve(desc *RenderBundle, pf pipeline.PassFormat) (gpu.RenderBundle, error) {
	key := bundleKey{desc: desc, fingerprint: pf.Fingerprint()}
	if rec, ok := c.bundles.Get(key); ok {
		if !c.stale(desc, rec) {
			return rec.bundle, nil
		}
		common.Logger().Debug("[bundle] re-recording stale bundle", "label", desc.label, "format", key.fingerprint)
		c.bundles.Evict(key)
	}

	rec, complete, err := c.record(desc, pf)
	if err != nil {
		return nil, err
	}
	if !complete {
		c.frame = append(c.frame, rec.bundle)
		return rec.bundle, nil
	}
	c.watch(desc)
	c.bundles.Put(key, rec, rec.bundle.Release)
	common.Logger().Debug("[bundle] recorded bundle", "label", desc.label, "format", key.fingerprint, "objects", len(desc.objects))
	return rec.bundle, nil
}

func (c *Compiler) record(desc *RenderBundle, pf pipeline.PassFormat) (*recording, bool, error) {
	enc, err := c.device.CreateRenderBundleEncoder(&gpu.RenderBundleEncoderDescriptor{
		Label:              desc.label,
		ColorFormats:       pf.ColorFormats,
		DepthStencilFormat: pf.DepthStencilFormat,
		SampleCount:        pf.Samples(),
		DepthReadOnly:      desc.depthReadOnly,
		StencilReadOnly:    desc.stencilReadOnly,
	})
	if err != nil {
		return nil, false, c.deviceError(desc, fmt.Errorf("bundle: failed to create encoder for %q: %w", desc.label, err))
	}

	s := command.NewBundleState(enc)
	rec := &recording{versions: make([]uint64, len(desc.objects))}
	complete := true
	for i, obj := range desc.objects {
		rec.versions[i] = obj.Version()
		if err := c.emitter.EmitRender(s, obj, pf); err != nil {
			common.Logger().Debug("[bundle] skipped object", "bundle", desc.label, "object", obj.Label(), "error", err)
			complete = false
		}
	}

	native, err := enc.Finish(desc.label)
	if err != nil {
		return nil, false, c.deviceError(desc, fmt.Errorf("bundle: failed to seal %q: %w", desc.label, err))
	}
	rec.bundle = native
	rec.deps = s.Dependencies()
	return rec, complete, nil
}

func (c *Compiler) deviceError(desc *RenderBundle, err error) error {
	c.reporter.Report(common.Diagnostic{Kind: common.DiagnosticDevice, Subject: desc.label, Message: err.Error(), Err: err})
	return err
}

func (c *Compiler) stale(desc *RenderBundle, rec *recording) bool {
	if len(rec.versions) != len(desc.objects) {
		return true
	}
	for i, obj := range desc.objects {
		if obj.Version() != rec.versions[i] {
			return true
		}
	}
	stale := false
	for _, d := range rec.deps {
		if d.Stale() {
			stale = true
		}
	}
	return stale
}

// watch discards every recording of desc when its content list changes.
func (c *Compiler) watch(desc *RenderBundle) {
	if _, ok := c.watched[desc]; ok {
		return
	}
	c.watched[desc] = desc.Subscribe(func(*RenderBundle) {
		n := c.Evict(desc)
		common.Logger().Debug("[bundle] content changed", "label", desc.label, "evicted", n)
	})
}

// EndFrame releases the incomplete recordings made during the frame.
func (c *Compiler) EndFrame() {
	for _, b := range c.frame {
		b.Release()
	}
	c.frame = nil
}

// Evict releases every recording of desc.
//
// Parameters:
//   - desc: the bundle descriptor
//
// Returns:
//   - int: the number of released recordings
func (c *Compiler) Evict(desc *RenderBundle) int {
	return c.bundles.EvictFunc(func(k bundleKey, _ *recording) bool { return k.desc == desc })
}

// EvictFormat releases every recording made for the pass format with the given fingerprint.
func (c *Compiler) EvictFormat(fingerprint string) int {
	return c.bundles.EvictFunc(func(k bundleKey, _ *recording) bool { return k.fingerprint == fingerprint })
}

// Len returns the number of cached recordings.
func (c *Compiler) Len() int {
	return c.bundles.Len()
}

// Purge releases every recording and drops the content subscriptions.
func (c *Compiler) Purge() {
	c.EndFrame()
	c.bundles.Purge()
	for desc, unsubscribe := range c.watched {
		unsubscribe()
		delete(c.watched, desc)
	}
}
