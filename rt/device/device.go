// Package device is the capability surface the pipeline needs from a rendering device:
// buffers, images, kernels, ray programs, acceleration structures and an ordered
// command stream. Backends live in rt/soft (CPU) and rt/gpu (WebGPU).
package device

import (
	"github.com/gekko3d/wavert/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type Capabilities struct {
	RayTracing bool
	Compute    bool
}

type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	// BufferUsageRaw exposes the buffer to kernels as untyped 32-bit words.
	BufferUsageRaw
	// BufferUsageHostWrite marks a buffer the host rewrites every frame.
	BufferUsageHostWrite
)

func (u BufferUsage) Has(flag BufferUsage) bool { return u&flag != 0 }

type BufferDescriptor struct {
	Label  string
	Count  int // elements
	Stride int // bytes per element
	Usage  BufferUsage
}

func (d BufferDescriptor) Size() int { return d.Count * d.Stride }

type Buffer interface {
	Label() string
	Count() int
	Stride() int
	Size() int
	Usage() BufferUsage
	// Write copies data into the buffer at a byte offset.
	Write(offset int, data []byte) error
	Release()
	Released() bool
}

type ImageFormat int

const (
	FormatRGBA8Unorm ImageFormat = iota
	FormatRGBA16Float
)

func (f ImageFormat) String() string {
	switch f {
	case FormatRGBA8Unorm:
		return "RGBA8Unorm"
	case FormatRGBA16Float:
		return "RGBA16Float"
	}
	return "Unknown"
}

type ImageDescriptor struct {
	Label       string
	Width       int
	Height      int
	Format      ImageFormat
	RandomWrite bool
}

type Image interface {
	Label() string
	Width() int
	Height() int
	Format() ImageFormat
	RandomWrite() bool
	Release()
	Released() bool
}

// Kernel is a compute program. GroupSize is fixed by the kernel source.
type Kernel interface {
	Name() string
	GroupSize() [3]uint32
}

// RayProgram is an opaque ray generation + hit group program set.
type RayProgram interface {
	Name() string
	HasPass(pass string) bool
	HasEntry(entry string) bool
}

type InstanceFlags uint32

const (
	// InstanceDynamicGeometry makes every build re-read the instance's vertex buffer.
	InstanceDynamicGeometry InstanceFlags = 1 << iota
)

type InstanceConfig struct {
	Vertices  Buffer
	Indices   Buffer
	Transform mgl32.Mat4
	Bounds    core.Bounds // object space
	Material  core.Material
	Flags     InstanceFlags
}

type AccelerationStructure interface {
	AddInstance(cfg InstanceConfig) (uuid.UUID, error)
	InstanceCount() int
	Release()
	Released() bool
}

type Device interface {
	Name() string
	Capabilities() Capabilities
	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	CreateImage(desc ImageDescriptor) (Image, error)
	CreateAccelerationStructure() (AccelerationStructure, error)
	// Submit executes the recorded commands in order.
	Submit(cb *CommandBuffer) error
}

// GroupCount is ceil(n / groupSize).
func GroupCount(n int, groupSize uint32) uint32 {
	if n <= 0 || groupSize == 0 {
		return 0
	}
	return (uint32(n) + groupSize - 1) / groupSize
}
