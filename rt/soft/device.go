// Package soft runs the device command stream on the CPU. It is used for headless
// rendering and by the tests; ray tracing and compute are executed for real.
package soft

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/gekko3d/wavert/rt/device"
)

type Options struct {
	RayTracing bool
	Compute    bool
	// Workers sizes the pool used to spread one dispatch across cores.
	Workers int
	// MemoryLimit caps live buffer and image bytes; 0 means unlimited.
	MemoryLimit int
	// Record keeps the command kinds of every submit in Stats.History.
	Record bool
}

func DefaultOptions() Options {
	return Options{
		RayTracing: true,
		Compute:    true,
		Workers:    max(runtime.NumCPU()-1, 1),
	}
}

type Stats struct {
	BuffersCreated  int
	BuffersReleased int
	ImagesCreated   int
	ImagesReleased  int
	StructsCreated  int
	StructsReleased int
	Submits         int
	Commands        map[device.CommandKind]int
	History         [][]device.CommandKind
	LiveBytes       int
}

type Device struct {
	mu    sync.Mutex
	opts  Options
	stats Stats
	// One single-worker pool per lane, reused across submits; a WaitGroup is the
	// per-command barrier. A pool's Stop only reliably reaches its own worker when
	// it has exactly one.
	pools  []worker.DynamicWorkerPool
	closed bool
}

func New(opts Options) *Device {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	d := &Device{
		opts:  opts,
		stats: Stats{Commands: make(map[device.CommandKind]int)},
	}
	// A single lane runs inline and needs no goroutines.
	if opts.Workers > 1 {
		d.pools = make([]worker.DynamicWorkerPool, opts.Workers)
		for i := range d.pools {
			d.pools[i] = worker.NewDynamicWorkerPool(1, 1024, 1*time.Second)
		}
	}
	return d
}

// Close stops the worker goroutines. Later submits fail with ErrReleased.
func (d *Device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	pools := d.pools
	d.pools = nil
	d.mu.Unlock()

	for _, p := range pools {
		p.Stop()
	}
}

func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Device) Name() string { return "soft" }

func (d *Device) Capabilities() device.Capabilities {
	return device.Capabilities{RayTracing: d.opts.RayTracing, Compute: d.opts.Compute}
}

// Stats returns a snapshot of the allocation and command counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.Commands = make(map[device.CommandKind]int, len(d.stats.Commands))
	for k, v := range d.stats.Commands {
		s.Commands[k] = v
	}
	s.History = append([][]device.CommandKind(nil), d.stats.History...)
	return s
}

func (d *Device) allocate(size int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opts.MemoryLimit > 0 && d.stats.LiveBytes+size > d.opts.MemoryLimit {
		return fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			device.ErrAllocation, size, d.stats.LiveBytes, d.opts.MemoryLimit)
	}
	d.stats.LiveBytes += size
	return nil
}

func (d *Device) free(size int, counter *int) {
	d.mu.Lock()
	d.stats.LiveBytes -= size
	*counter++
	d.mu.Unlock()
}

func (d *Device) CreateBuffer(desc device.BufferDescriptor) (device.Buffer, error) {
	if desc.Count <= 0 || desc.Stride <= 0 {
		return nil, fmt.Errorf("%w: buffer %q with %d x %d bytes", device.ErrAllocation, desc.Label, desc.Count, desc.Stride)
	}
	if err := d.allocate(desc.Size()); err != nil {
		return nil, fmt.Errorf("buffer %q: %w", desc.Label, err)
	}
	d.mu.Lock()
	d.stats.BuffersCreated++
	d.mu.Unlock()
	return &Buffer{dev: d, desc: desc, data: make([]byte, desc.Size())}, nil
}

func (d *Device) CreateImage(desc device.ImageDescriptor) (device.Image, error) {
	img, err := d.NewImage(desc)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// NewImage is CreateImage with the concrete type, for callers that read pixels back.
func (d *Device) NewImage(desc device.ImageDescriptor) (*Image, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("%w: image %q is %dx%d", device.ErrAllocation, desc.Label, desc.Width, desc.Height)
	}
	size := desc.Width * desc.Height * 4 * 4
	if err := d.allocate(size); err != nil {
		return nil, fmt.Errorf("image %q: %w", desc.Label, err)
	}
	d.mu.Lock()
	d.stats.ImagesCreated++
	d.mu.Unlock()
	return newImage(d, desc), nil
}

func (d *Device) CreateAccelerationStructure() (device.AccelerationStructure, error) {
	d.mu.Lock()
	d.stats.StructsCreated++
	d.mu.Unlock()
	return &AccelerationStructure{dev: d}, nil
}

// Submit validates the whole buffer first, then runs each command to completion in order.
func (d *Device) Submit(cb *device.CommandBuffer) error {
	if err := cb.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("%s: device: %w", cb.Name, device.ErrReleased)
	}
	d.stats.Submits++
	if d.opts.Record {
		d.stats.History = append(d.stats.History, cb.Kinds())
	}
	d.mu.Unlock()

	for i, c := range cb.Commands {
		var err error
		switch c.Kind {
		case device.CommandDispatchCompute:
			err = d.dispatchCompute(c.Compute)
		case device.CommandBuildAccelerationStructure:
			err = d.build(c.Structure)
		case device.CommandDispatchRays:
			err = d.dispatchRays(c.Rays)
		case device.CommandBlit:
			err = d.blit(c.Blit)
		}
		if err != nil {
			return fmt.Errorf("%s command %d (%s): %w", cb.Name, i, c.Kind, err)
		}
		d.mu.Lock()
		d.stats.Commands[c.Kind]++
		d.mu.Unlock()
	}
	return nil
}

func (d *Device) dispatchCompute(c *device.ComputeDispatch) error {
	if !d.opts.Compute {
		return fmt.Errorf("compute: %w", device.ErrCapabilityUnavailable)
	}
	k, ok := c.Kernel.(*Kernel)
	if !ok {
		return fmt.Errorf("%w: kernel %s does not belong to the soft device", device.ErrInvalidCommand, c.Kernel.Name())
	}
	for name, b := range c.Buffers {
		if _, ok := b.(*Buffer); !ok {
			return fmt.Errorf("%w: buffer %q does not belong to the soft device", device.ErrInvalidCommand, name)
		}
	}

	groups := int(c.Groups[0] * c.Groups[1] * c.Groups[2])
	return d.parallel(groups, func(g int) error {
		gx := uint32(g) % c.Groups[0]
		gy := (uint32(g) / c.Groups[0]) % c.Groups[1]
		gz := uint32(g) / (c.Groups[0] * c.Groups[1])
		return k.runGroup([3]uint32{gx, gy, gz}, c)
	})
}

func (d *Device) build(as device.AccelerationStructure) error {
	s, ok := as.(*AccelerationStructure)
	if !ok {
		return fmt.Errorf("%w: acceleration structure does not belong to the soft device", device.ErrInvalidCommand)
	}
	return s.build()
}

// parallel runs fn(0..n-1) on the worker pool and waits for all of them.
func (d *Device) parallel(n int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	d.mu.Lock()
	pools := d.pools
	d.mu.Unlock()
	if n == 1 || len(pools) == 0 {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		idx := i
		pools[idx%len(pools)].SubmitTask(worker.Task{
			ID: idx,
			Do: func() (any, error) {
				defer wg.Done()
				if err := fn(idx); err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
					return nil, err
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	return firstErr
}
