// Package accel keeps one acceleration structure in step with the animated meshes
// registered into it.
package accel

import (
	"fmt"

	"github.com/gekko3d/wavert/rt/core"
	"github.com/gekko3d/wavert/rt/device"
	"github.com/gekko3d/wavert/rt/mesh"
	"github.com/google/uuid"
)

// Instance is a registered mesh with the placement it was registered at.
type Instance struct {
	ID        uuid.UUID
	Mesh      mesh.Mesh
	Transform core.Transform
	Material  core.Material
}

// WorldBounds is the mesh's object volume under the instance transform.
func (i Instance) WorldBounds() core.Bounds {
	return i.Mesh.Bounds().Transform(i.Transform.ObjectToWorld())
}

type Manager struct {
	structure device.AccelerationStructure
	instances []Instance
}

func NewManager(dev device.Device) (*Manager, error) {
	as, err := dev.CreateAccelerationStructure()
	if err != nil {
		return nil, fmt.Errorf("acceleration structure: %w", err)
	}
	return &Manager{structure: as}, nil
}

// Register adds m as an instance. Transforms are fixed from here on.
func (m *Manager) Register(msh mesh.Mesh, transform core.Transform, material core.Material) (Instance, error) {
	if m.structure == nil {
		return Instance{}, device.ErrReleased
	}
	var flags device.InstanceFlags
	if msh.Dynamic() {
		flags |= device.InstanceDynamicGeometry
	}
	id, err := m.structure.AddInstance(device.InstanceConfig{
		Vertices:  msh.VertexBuffer(),
		Indices:   msh.IndexBuffer(),
		Transform: transform.ObjectToWorld(),
		Bounds:    msh.Bounds(),
		Material:  material,
		Flags:     flags,
	})
	if err != nil {
		return Instance{}, fmt.Errorf("register instance: %w", err)
	}
	inst := Instance{ID: id, Mesh: msh, Transform: transform, Material: material}
	m.instances = append(m.instances, inst)
	return inst, nil
}

// Rebuild records the build on cb. Every dynamic instance must already have been
// animated for this frame, either directly or by a command recorded earlier on cb.
func (m *Manager) Rebuild(cb *device.CommandBuffer) error {
	if m.structure == nil {
		return device.ErrReleased
	}
	cb.BuildAccelerationStructure(m.structure)
	return nil
}

func (m *Manager) Structure() device.AccelerationStructure { return m.structure }

func (m *Manager) Instances() []Instance { return m.instances }

// WorldBounds returns the union of all registered instance boxes.
func (m *Manager) WorldBounds() core.Bounds {
	b := core.EmptyBounds()
	for _, inst := range m.instances {
		b = b.Union(inst.WorldBounds())
	}
	return b
}

func (m *Manager) Released() bool { return m.structure == nil }

// Release drops the structure and forgets the instances. Safe to call again.
func (m *Manager) Release() {
	if m.structure == nil {
		return
	}
	m.structure.Release()
	m.structure = nil
	m.instances = nil
}
