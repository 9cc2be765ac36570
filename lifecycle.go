package wavert

import (
	"fmt"

	"github.com/gekko3d/wavert/rt/accel"
	"github.com/gekko3d/wavert/rt/core"
	"github.com/gekko3d/wavert/rt/device"
	"github.com/gekko3d/wavert/rt/geometry"
	"github.com/gekko3d/wavert/rt/mesh"
)

// Resources owns everything allocated for one activation cycle: the shared
// index data, both meshes, the acceleration structure and the output image.
type Resources struct {
	dev device.Device
	cfg Config
	log Logger

	indices    []uint32
	hostMesh   *mesh.HostMesh
	deviceMesh *mesh.DeviceMesh
	manager    *accel.Manager

	output device.Image
	width  int
	height int
}

func NewResources(dev device.Device, cfg Config, log Logger) *Resources {
	return &Resources{dev: dev, cfg: cfg, log: orNop(log)}
}

// Active reports whether the acceleration structure exists.
func (r *Resources) Active() bool { return r.manager != nil }

// Activate allocates the meshes and the structure and registers both instances.
// It does nothing when already active. On failure everything allocated so far is
// released and the error is returned.
func (r *Resources) Activate(kernel device.Kernel) (err error) {
	if r.manager != nil {
		return nil
	}
	defer func() {
		if err != nil {
			r.Deactivate()
		}
	}()

	res := r.cfg.Resolution
	if res == 0 {
		return mesh.ErrInvalidResolution
	}
	r.indices = geometry.Indices(res)

	if r.hostMesh, err = mesh.NewHostMesh(r.dev, res, r.indices); err != nil {
		return fmt.Errorf("host mesh: %w", err)
	}
	if r.deviceMesh, err = mesh.NewDeviceMesh(r.dev, kernel, res, r.indices, r.cfg.StrictStride); err != nil {
		return fmt.Errorf("device mesh: %w", err)
	}
	if r.deviceMesh.StrideWarning != nil {
		r.log.Warnf("%v; kernel addressing may be wrong", r.deviceMesh.StrideWarning)
	}

	manager, err := accel.NewManager(r.dev)
	if err != nil {
		return err
	}
	r.manager = manager

	material := core.Material{Name: "wave", Albedo: r.cfg.Albedo}
	if _, err = manager.Register(r.hostMesh, core.Placement(r.cfg.hostPlacement(), r.cfg.InstanceScale), material); err != nil {
		return err
	}
	if _, err = manager.Register(r.deviceMesh, core.Placement(r.cfg.devicePlacement(), r.cfg.InstanceScale), material); err != nil {
		return err
	}
	r.log.Debugf("activated: resolution %d, %d vertices and %d indices per mesh",
		res, geometry.VertexCount(res), len(r.indices))
	return nil
}

// Deactivate releases everything in reverse order and resets the cached output
// size. Repeated calls are no-ops.
func (r *Resources) Deactivate() {
	r.releaseOutput()
	if r.manager != nil {
		r.manager.Release()
		r.manager = nil
	}
	if r.deviceMesh != nil {
		r.deviceMesh.Release()
		r.deviceMesh = nil
	}
	if r.hostMesh != nil {
		r.hostMesh.Release()
		r.hostMesh = nil
	}
	r.indices = nil
}

// EnsureOutput makes the output image match width x height, recreating it when
// the size changed. It reports whether a new image was created.
func (r *Resources) EnsureOutput(width, height int) (bool, error) {
	if r.output != nil && r.width == width && r.height == height {
		return false, nil
	}
	r.releaseOutput()

	img, err := r.dev.CreateImage(device.ImageDescriptor{
		Label:       "Output Image",
		Width:       width,
		Height:      height,
		Format:      device.FormatRGBA16Float,
		RandomWrite: true,
	})
	if err != nil {
		return false, fmt.Errorf("output image %dx%d: %w", width, height, err)
	}
	r.output = img
	r.width, r.height = width, height
	return true, nil
}

func (r *Resources) releaseOutput() {
	if r.output != nil {
		r.output.Release()
		r.output = nil
	}
	r.width, r.height = 0, 0
}

func (r *Resources) Output() device.Image         { return r.output }
func (r *Resources) OutputSize() (int, int)       { return r.width, r.height }
func (r *Resources) Indices() []uint32            { return r.indices }
func (r *Resources) HostMesh() *mesh.HostMesh     { return r.hostMesh }
func (r *Resources) DeviceMesh() *mesh.DeviceMesh { return r.deviceMesh }
func (r *Resources) Manager() *accel.Manager      { return r.manager }
