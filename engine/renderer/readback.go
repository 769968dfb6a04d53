package renderer

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrReadbackRange is reported when a readback range is unaligned or exceeds its source buffer.
	ErrReadbackRange = errors.New("renderer: readback range out of bounds")
	// ErrQueryCount is reported when an occlusion query set has no slots.
	ErrQueryCount = errors.New("renderer: occlusion query count must be positive")
)

// Readback copies a range of a buffer back to the host after the owning submit completes. Data and
// Err are populated from a worker goroutine once Context.Poll observes the completion; OnComplete,
// if set, runs on that goroutine afterwards.
type Readback struct {
	Label  string
	Source *resource.Buffer
	// Offset must be a multiple of 4.
	Offset uint64
	// Size is the number of bytes to read, 0 meaning up to the end of Source.
	Size       uint64
	OnComplete func(*Readback)

	Data []byte
	Err  error
}

// OcclusionQuery is a set of occlusion query slots attached to a RenderPass. After the owning
// submit completes Results holds one sample count per slot.
type OcclusionQuery struct {
	Label      string
	Count      uint32
	OnComplete func(*OcclusionQuery)

	Results []uint64
	Err     error
}

type readbackState struct {
	staging  *resource.Buffer
	inFlight bool
}

type queryState struct {
	set      gpu.QuerySet
	count    uint32
	resolve  *resource.Buffer
	staging  *resource.Buffer
	inFlight bool
}

// pendingMap is a staging buffer mapped once the queue submission is issued.
type pendingMap struct {
	label  string
	buffer gpu.Buffer
	size   uint64
	done   func(data []byte, err error)
}

// encodeReadback records the copy of rb into its staging buffer. A readback whose previous copy
// has not completed yet is skipped for this submit.
func (c *renderContext) encodeReadback(enc gpu.CommandEncoder, rb *Readback) (*pendingMap, error) {
	src, err := c.resources.Buffer(rb.Source)
	if err != nil {
		return nil, fmt.Errorf("renderer: readback %q: %w", rb.Label, err)
	}
	size := rb.Size
	if size == 0 && rb.Offset < rb.Source.Size() {
		size = rb.Source.Size() - rb.Offset
	}
	copySize := common.AlignUp(gpu.CopyAlignment, size)
	if size == 0 || rb.Offset%gpu.CopyAlignment != 0 || rb.Offset+copySize > src.Size() {
		err := fmt.Errorf("%w: %q reads [%d, %d) of %d bytes", ErrReadbackRange, rb.Label, rb.Offset, rb.Offset+size, src.Size())
		c.report(common.DiagnosticData, rb.Label, err)
		return nil, err
	}

	c.mu.Lock()
	st, ok := c.readbacks[rb]
	if !ok {
		st = &readbackState{staging: resource.NewBuffer(
			resource.WithBufferLabel(rb.Label+".staging"),
			resource.WithBufferSize(copySize),
			resource.WithBufferUsage(wgpu.BufferUsageMapRead|wgpu.BufferUsageCopyDst),
		)}
		c.readbacks[rb] = st
	}
	inFlight := st.inFlight
	c.mu.Unlock()
	if inFlight {
		common.Logger().Debug("[renderer] readback still in flight, skipping", "label", rb.Label)
		return nil, nil
	}

	if st.staging.Size() != copySize {
		st.staging.Resize(copySize)
	}
	staging, err := c.resources.Buffer(st.staging)
	if err != nil {
		return nil, fmt.Errorf("renderer: readback %q staging: %w", rb.Label, err)
	}
	enc.CopyBufferToBuffer(src, rb.Offset, staging, 0, copySize)

	c.setInFlight(&st.inFlight, true)
	return &pendingMap{
		label:  rb.Label,
		buffer: staging,
		size:   copySize,
		done: func(data []byte, err error) {
			c.setInFlight(&st.inFlight, false)
			if err != nil {
				rb.Data, rb.Err = nil, fmt.Errorf("renderer: readback %q failed: %w", rb.Label, err)
			} else {
				rb.Data, rb.Err = data[:size], nil
			}
			if rb.OnComplete != nil {
				rb.OnComplete(rb)
			}
		},
	}, nil
}

// querySet returns the native query set of q, recreating it when the slot count changed.
func (c *renderContext) querySet(q *OcclusionQuery) (*queryState, error) {
	if q.Count == 0 {
		err := fmt.Errorf("%w: %q", ErrQueryCount, q.Label)
		c.report(common.DiagnosticConfiguration, q.Label, err)
		return nil, err
	}

	c.mu.Lock()
	st, ok := c.queries[q]
	if !ok {
		st = &queryState{
			resolve: resource.NewBuffer(
				resource.WithBufferLabel(q.Label+".resolve"),
				resource.WithBufferSize(8*uint64(q.Count)),
				resource.WithBufferUsage(wgpu.BufferUsageQueryResolve|wgpu.BufferUsageCopySrc),
			),
			staging: resource.NewBuffer(
				resource.WithBufferLabel(q.Label+".staging"),
				resource.WithBufferSize(8*uint64(q.Count)),
				resource.WithBufferUsage(wgpu.BufferUsageMapRead|wgpu.BufferUsageCopyDst),
			),
		}
		c.queries[q] = st
	}
	c.mu.Unlock()

	if st.set != nil && st.count == q.Count {
		return st, nil
	}
	if st.set != nil {
		st.set.Release()
		st.set = nil
		st.resolve.Resize(8 * uint64(q.Count))
		st.staging.Resize(8 * uint64(q.Count))
	}
	set, err := c.device.CreateQuerySet(&gpu.QuerySetDescriptor{Label: q.Label, Count: q.Count})
	if err != nil {
		err = fmt.Errorf("renderer: failed to create query set %q: %w", q.Label, err)
		c.report(common.DiagnosticDevice, q.Label, err)
		return nil, err
	}
	st.set, st.count = set, q.Count
	common.Logger().Debug("[renderer] created occlusion query set", "label", q.Label, "count", q.Count)
	return st, nil
}

// resolveQueries records the resolve and staging copy of q after its pass ended.
func (c *renderContext) resolveQueries(enc gpu.CommandEncoder, q *OcclusionQuery, st *queryState) (*pendingMap, error) {
	c.mu.Lock()
	inFlight := st.inFlight
	c.mu.Unlock()
	if inFlight {
		common.Logger().Debug("[renderer] occlusion results still in flight, skipping resolve", "label", q.Label)
		return nil, nil
	}

	resolve, err := c.resources.Buffer(st.resolve)
	if err != nil {
		return nil, fmt.Errorf("renderer: query resolve buffer %q: %w", q.Label, err)
	}
	staging, err := c.resources.Buffer(st.staging)
	if err != nil {
		return nil, fmt.Errorf("renderer: query staging buffer %q: %w", q.Label, err)
	}
	size := 8 * uint64(st.count)
	enc.ResolveQuerySet(st.set, 0, st.count, resolve, 0)
	enc.CopyBufferToBuffer(resolve, 0, staging, 0, size)

	c.setInFlight(&st.inFlight, true)
	count := st.count
	return &pendingMap{
		label:  q.Label,
		buffer: staging,
		size:   size,
		done: func(data []byte, err error) {
			c.setInFlight(&st.inFlight, false)
			if err != nil {
				q.Results, q.Err = nil, fmt.Errorf("renderer: occlusion query %q failed: %w", q.Label, err)
			} else {
				results := make([]uint64, count)
				for i := range results {
					results[i] = binary.LittleEndian.Uint64(data[i*8:])
				}
				q.Results, q.Err = results, nil
			}
			if q.OnComplete != nil {
				q.OnComplete(q)
			}
		},
	}, nil
}

// mapStaging requests the map of m. The copy-out runs on the worker pool once the device reports
// the submission complete.
func (c *renderContext) mapStaging(id int, m *pendingMap) {
	err := m.buffer.MapRead(0, m.size, func(data []byte, err error) {
		c.pending.Add(1)
		c.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer c.pending.Done()
				m.done(data, err)
				return nil, err
			},
		})
	})
	if err != nil {
		m.done(nil, err)
	}
}

func (c *renderContext) setInFlight(flag *bool, v bool) {
	c.mu.Lock()
	*flag = v
	c.mu.Unlock()
}
