// Package renderer compiles submit graphs into native command buffers. A Context owns every cache
// of one device: reflection, layouts, shader modules, resources, bind groups, pipelines and render
// bundles.
package renderer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bundle"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/command"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrDeviceLost is returned by every Submit after the device was lost.
	ErrDeviceLost = errors.New("renderer: device lost")
	// ErrSubmitAborted is stored in the results of readbacks recorded by an aborted submit.
	ErrSubmitAborted = errors.New("renderer: submit aborted")
)

// renderContext is the implementation of the Context interface.
type renderContext struct {
	device   gpu.Device
	reporter common.Reporter

	reflections *shader.ReflectionCache
	modules     *shader.ModuleCache
	layouts     *layout.Deriver
	resources   *resource.Cache
	groups      *bind_group.Compiler
	pipelines   *pipeline.Compiler
	emitter     *command.Emitter
	bundles     *bundle.Compiler

	pool    worker.DynamicWorkerPool
	pending sync.WaitGroup

	mu        sync.Mutex
	readbacks map[*Readback]*readbackState
	queries   map[*OcclusionQuery]*queryState
	lost      bool

	frame   uint64
	formats map[string]uint64

	// Pre-creation config collected from builder options
	strictBindings  bool
	validateShaders bool
	reflectionSize  int
	readbackWorkers int
	defaultUsage    wgpu.BufferUsage
	formatRetention uint64
	onDeviceLost    func(reason string)
}

// Context compiles and submits frames for one device.
//
// Descriptors passed to a Context are cache keys by reference: resolving an unchanged descriptor
// reuses its native object. A Context is not safe for concurrent use, except that readback
// completions run on worker goroutines and only touch Readback and OcclusionQuery result fields.
type Context interface {
	// Submit compiles every encoder of s in order, submits the command buffers to the queue,
	// presents acquired surfaces and ends the frame.
	//
	// Render and compute objects that fail to resolve are reported and skipped. Device failures
	// abort the submit.
	//
	// Parameters:
	//   - s: the submit graph
	//
	// Returns:
	//   - error: ErrDeviceLost, or a device or attachment error that aborted the submit
	Submit(s *Submit) error

	// Poll drives pending readback completions and waits until their results are populated.
	//
	// Parameters:
	//   - wait: true to block until the device finished all submitted work
	Poll(wait bool)

	// Destroy destroys the native object of a buffer, texture or sampler descriptor. Cached bind
	// groups and bundles referencing it are rebuilt on next use.
	//
	// Parameters:
	//   - d: the descriptor to destroy
	Destroy(d resource.Descriptor)

	// DeviceLost marks the device lost. Every cache is released, a Device diagnostic is reported
	// and further submits fail with ErrDeviceLost. Caches are not rebuilt; a new Context must be
	// created on a new device.
	//
	// Parameters:
	//   - reason: the loss reason reported by the device
	DeviceLost(reason string)

	// Lost reports whether DeviceLost was called.
	Lost() bool

	// Release releases every cached native object and stops the readback workers.
	Release()

	Device() gpu.Device
	Resources() *resource.Cache
	Pipelines() *pipeline.Compiler
	BindGroups() *bind_group.Compiler
	Bundles() *bundle.Compiler
}

var _ Context = &renderContext{}

// NewContext creates a Context for device with all specified options applied.
//
// Parameters:
//   - device: the native device
//   - options: functional options such as WithReporter and WithStrictBindings
//
// Returns:
//   - Context: the created context
//   - error: an error if a cache could not be created
func NewContext(device gpu.Device, options ...ContextBuilderOption) (Context, error) {
	c := &renderContext{
		device:          device,
		reporter:        common.LogReporter{},
		readbackWorkers: 2,
		formatRetention: 60,
		formats:         make(map[string]uint64),
		defaultUsage:    gpu.DefaultBufferUsage,
		readbacks:       make(map[*Readback]*readbackState),
		queries:         make(map[*OcclusionQuery]*queryState),
	}
	for _, opt := range options {
		opt(c)
	}

	reflections, err := shader.NewReflectionCache(c.reflectionSize)
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to create reflection cache: %w", err)
	}
	c.reflections = reflections
	c.modules = shader.NewModuleCache(device, c.validateShaders)
	c.layouts = layout.NewDeriver(device, reflections,
		layout.WithReporter(c.reporter),
		layout.WithStrictBindings(c.strictBindings),
	)
	c.resources = resource.NewCache(device,
		resource.WithReporter(c.reporter),
		resource.WithDefaultBufferUsage(c.defaultUsage),
	)
	c.groups = bind_group.NewCompiler(device, c.resources, c.layouts, bind_group.WithReporter(c.reporter))
	c.pipelines = pipeline.NewCompiler(device, reflections, c.modules, c.layouts, pipeline.WithReporter(c.reporter))
	c.emitter = command.NewEmitter(c.pipelines, c.groups, c.resources, command.WithReporter(c.reporter))
	c.bundles = bundle.NewCompiler(device, c.emitter, bundle.WithReporter(c.reporter))

	// Queue size of 256 covers the readbacks and query sets of a frame with headroom.
	c.pool = worker.NewDynamicWorkerPool(c.readbackWorkers, 256, 1*time.Second)

	common.Logger().Info("[renderer] context created", "strictBindings", c.strictBindings, "validateShaders", c.validateShaders)
	return c, nil
}

func (c *renderContext) Device() gpu.Device {
	return c.device
}

func (c *renderContext) Resources() *resource.Cache {
	return c.resources
}

func (c *renderContext) Pipelines() *pipeline.Compiler {
	return c.pipelines
}

func (c *renderContext) BindGroups() *bind_group.Compiler {
	return c.groups
}

func (c *renderContext) Bundles() *bundle.Compiler {
	return c.bundles
}

func (c *renderContext) Lost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lost
}

func (c *renderContext) Submit(s *Submit) error {
	if c.Lost() {
		return ErrDeviceLost
	}
	defer c.endFrame()

	var buffers []gpu.CommandBuffer
	release := func() {
		for _, b := range buffers {
			b.Release()
		}
	}
	var maps []*pendingMap
	for _, e := range s.encoders {
		cb, m, err := c.encode(e)
		maps = append(maps, m...)
		if err != nil {
			release()
			for _, pm := range maps {
				pm.done(nil, ErrSubmitAborted)
			}
			return err
		}
		buffers = append(buffers, cb)
	}

	c.device.Queue().Submit(buffers...)
	release()
	c.resources.Present()
	for i, m := range maps {
		c.mapStaging(i, m)
	}
	common.Logger().Debug("[renderer] submitted", "label", s.label, "encoders", len(buffers), "readbacks", len(maps))
	return nil
}

// encode records one command encoder and finishes it. The staging maps recorded before a failure
// are returned along with the error.
func (c *renderContext) encode(e *CommandEncoder) (gpu.CommandBuffer, []*pendingMap, error) {
	enc, err := c.device.CreateCommandEncoder(e.label)
	if err != nil {
		return nil, nil, c.deviceError(e.label, fmt.Errorf("renderer: failed to create command encoder %q: %w", e.label, err))
	}
	defer enc.Release()

	var maps []*pendingMap
	for _, p := range e.passes {
		switch pass := p.(type) {
		case *RenderPass:
			m, err := c.encodeRender(enc, pass)
			if err != nil {
				return nil, maps, err
			}
			if m != nil {
				maps = append(maps, m)
			}
		case *ComputePass:
			c.encodeCompute(enc, pass)
		}
	}
	for _, rb := range e.readbacks {
		m, err := c.encodeReadback(enc, rb)
		if err != nil {
			rb.Data, rb.Err = nil, err
			continue
		}
		if m != nil {
			maps = append(maps, m)
		}
	}

	cb, err := enc.Finish()
	if err != nil {
		return nil, maps, c.deviceError(e.label, fmt.Errorf("renderer: failed to finish command encoder %q: %w", e.label, err))
	}
	return cb, maps, nil
}

func (c *renderContext) encodeRender(enc gpu.CommandEncoder, p *RenderPass) (*pendingMap, error) {
	pf := p.Format()
	c.formats[pf.Fingerprint()] = c.frame
	desc, err := c.passDescriptor(p)
	if err != nil {
		return nil, err
	}
	var queries *queryState
	if p.occlusionQuery != nil {
		if queries, err = c.querySet(p.occlusionQuery); err == nil {
			desc.OcclusionQuerySet = queries.set
		}
	}

	pass := enc.BeginRenderPass(desc)
	state := command.NewPassState(pass)
	var run []gpu.RenderBundle
	flush := func() {
		if len(run) == 0 {
			return
		}
		pass.ExecuteBundles(run...)
		state.Forget()
		run = nil
	}
	for _, item := range p.items {
		if item.bundle != nil {
			b, err := c.bundles.Resolve(item.bundle, pf)
			if err != nil {
				pass.End()
				return nil, err
			}
			run = append(run, b)
			continue
		}
		flush()
		if err := c.emitter.EmitRender(state, item.object, pf); err != nil {
			common.Logger().Debug("[renderer] skipped render object", "pass", p.label, "object", item.object.Label(), "error", err)
		}
	}
	flush()
	pass.End()
	common.Logger().Debug("[renderer] encoded render pass", "label", p.label, "format", pf.Fingerprint(),
		"issued", state.Issued(), "skipped", state.Skipped())

	if queries == nil {
		return nil, nil
	}
	return c.resolveQueries(enc, p.occlusionQuery, queries)
}

// passDescriptor resolves the attachment views of p.
func (c *renderContext) passDescriptor(p *RenderPass) (*gpu.RenderPassDescriptor, error) {
	desc := &gpu.RenderPassDescriptor{Label: p.label}
	for _, a := range p.colors {
		if a.Texture == nil {
			desc.ColorAttachments = append(desc.ColorAttachments, nil)
			continue
		}
		view, err := c.resources.TextureView(a.Texture)
		if err != nil {
			return nil, c.attachmentError(p, a.Texture, err)
		}
		ca := &gpu.ColorAttachment{
			View:       view,
			LoadOp:     common.Coalesce(a.LoadOp, wgpu.LoadOpClear),
			StoreOp:    common.Coalesce(a.StoreOp, wgpu.StoreOpStore),
			ClearValue: a.ClearValue,
		}
		if a.ResolveTarget != nil {
			if ca.ResolveTarget, err = c.resources.TextureView(a.ResolveTarget); err != nil {
				return nil, c.attachmentError(p, a.ResolveTarget, err)
			}
		}
		desc.ColorAttachments = append(desc.ColorAttachments, ca)
	}

	if ds := p.depthStencil; ds != nil && ds.Texture != nil {
		view, err := c.resources.TextureView(ds.Texture)
		if err != nil {
			return nil, c.attachmentError(p, ds.Texture, err)
		}
		att := &gpu.DepthStencilAttachment{
			View:            view,
			DepthClearValue: ds.DepthClearValue,
			DepthReadOnly:   ds.DepthReadOnly,
		}
		if !ds.DepthReadOnly {
			att.DepthLoadOp = common.Coalesce(ds.DepthLoadOp, wgpu.LoadOpClear)
			att.DepthStoreOp = common.Coalesce(ds.DepthStoreOp, wgpu.StoreOpStore)
		}
		if hasStencil(ds.Texture.Format()) {
			att.StencilClearValue = ds.StencilClearValue
			att.StencilReadOnly = ds.StencilReadOnly
			if !ds.StencilReadOnly {
				att.StencilLoadOp = common.Coalesce(ds.StencilLoadOp, wgpu.LoadOpClear)
				att.StencilStoreOp = common.Coalesce(ds.StencilStoreOp, wgpu.StoreOpStore)
			}
		}
		desc.DepthStencilAttachment = att
	}
	return desc, nil
}

func (c *renderContext) attachmentError(p *RenderPass, t *resource.Texture, err error) error {
	err = fmt.Errorf("renderer: pass %q attachment %q: %w", p.label, t.Label(), err)
	c.report(common.DiagnosticDevice, p.label, err)
	return err
}

func (c *renderContext) encodeCompute(enc gpu.CommandEncoder, p *ComputePass) {
	pass := enc.BeginComputePass(p.label)
	state := command.NewComputeState(pass)
	for _, obj := range p.objects {
		if err := c.emitter.EmitCompute(state, obj); err != nil {
			common.Logger().Debug("[renderer] skipped compute object", "pass", p.label, "object", obj.Label(), "error", err)
		}
	}
	pass.End()
}

// endFrame releases every per-frame object: incomplete bundles, volatile bind groups and acquired
// textures, in that order. Pipelines and bundles of pass formats unused for formatRetention frames
// are released too.
func (c *renderContext) endFrame() {
	c.bundles.EndFrame()
	c.groups.EndFrame()
	c.resources.EndFrame()

	for fp, last := range c.formats {
		if c.frame-last < c.formatRetention {
			continue
		}
		bundles, pipelines := c.bundles.EvictFormat(fp), c.pipelines.EvictFormat(fp)
		delete(c.formats, fp)
		common.Logger().Debug("[renderer] evicted stale pass format", "format", fp,
			"bundles", bundles, "pipelines", pipelines)
	}
	c.frame++
}

func (c *renderContext) Poll(wait bool) {
	c.device.Poll(wait)
	c.pending.Wait()
}

func (c *renderContext) Destroy(d resource.Descriptor) {
	c.resources.Destroy(d)
}

func (c *renderContext) DeviceLost(reason string) {
	c.mu.Lock()
	if c.lost {
		c.mu.Unlock()
		return
	}
	c.lost = true
	c.mu.Unlock()

	err := fmt.Errorf("%w: %s", ErrDeviceLost, reason)
	common.Logger().Error("[renderer] device lost", "reason", reason)
	c.report(common.DiagnosticDevice, "", err)
	c.purge()
	if c.onDeviceLost != nil {
		c.onDeviceLost(reason)
	}
}

func (c *renderContext) Release() {
	c.purge()
	c.pool.Stop()
	common.Logger().Info("[renderer] context released")
}

// purge releases every cached native object, dependents before their dependencies.
func (c *renderContext) purge() {
	c.bundles.Purge()
	c.pipelines.Purge()
	c.groups.Purge()
	c.layouts.Purge()
	c.modules.Purge()
	c.resources.Purge()
	clear(c.formats)

	c.mu.Lock()
	defer c.mu.Unlock()
	for q, st := range c.queries {
		if st.set != nil {
			st.set.Release()
		}
		delete(c.queries, q)
	}
	clear(c.readbacks)
}

func (c *renderContext) deviceError(subject string, err error) error {
	c.report(common.DiagnosticDevice, subject, err)
	return err
}

func (c *renderContext) report(kind common.DiagnosticKind, subject string, err error) {
	c.reporter.Report(common.Diagnostic{Kind: kind, Subject: subject, Message: err.Error(), Err: err})
}
