package device

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeImage struct {
	w, h        int
	randomWrite bool
	released    bool
}

func (f *fakeImage) Label() string       { return "fake" }
func (f *fakeImage) Width() int          { return f.w }
func (f *fakeImage) Height() int         { return f.h }
func (f *fakeImage) Format() ImageFormat { return FormatRGBA16Float }
func (f *fakeImage) RandomWrite() bool   { return f.randomWrite }
func (f *fakeImage) Release()            { f.released = true }
func (f *fakeImage) Released() bool      { return f.released }

type fakeProgram struct{}

func (fakeProgram) Name() string           { return "fake" }
func (fakeProgram) HasPass(p string) bool  { return p == "Pass" }
func (fakeProgram) HasEntry(e string) bool { return e == "Entry" }

type fakeStructure struct {
	count    int
	released bool
}

func (f *fakeStructure) AddInstance(cfg InstanceConfig) (uuid.UUID, error) {
	f.count++
	return uuid.New(), nil
}

func (f *fakeStructure) InstanceCount() int { return f.count }
func (f *fakeStructure) Release()           { f.released = true }
func (f *fakeStructure) Released() bool     { return f.released }

type fakeKernel struct{}

func (fakeKernel) Name() string         { return "k" }
func (fakeKernel) GroupSize() [3]uint32 { return [3]uint32{64, 1, 1} }

func TestGroupCount(t *testing.T) {
	assert.Equal(t, uint32(0), GroupCount(0, 64))
	assert.Equal(t, uint32(1), GroupCount(1, 64))
	assert.Equal(t, uint32(1), GroupCount(64, 64))
	assert.Equal(t, uint32(2), GroupCount(65, 64))
	assert.Equal(t, uint32(18), GroupCount(1089, 64))
	assert.Equal(t, uint32(0), GroupCount(10, 0))
}

func TestCommandBufferKinds(t *testing.T) {
	cb := NewCommandBuffer("frame")
	img := &fakeImage{w: 4, h: 4, randomWrite: true}
	cb.DispatchCompute(ComputeDispatch{Kernel: fakeKernel{}, Groups: [3]uint32{1, 1, 1}})
	cb.Blit(img, img)
	assert.Equal(t, []CommandKind{CommandDispatchCompute, CommandBlit}, cb.Kinds())
	assert.NoError(t, cb.Validate())
	assert.Equal(t, "BuildAccelerationStructure", CommandBuildAccelerationStructure.String())
	assert.Equal(t, "CommandKind(9)", CommandKind(9).String())
}

func TestValidateRayDispatch(t *testing.T) {
	out := &fakeImage{w: 8, h: 8, randomWrite: true}
	ray := func(mod func(*RayDispatch)) *CommandBuffer {
		d := RayDispatch{
			Program: fakeProgram{}, Pass: "Pass", Entry: "Entry",
			Structure: &fakeStructure{}, Output: out, Width: 8, Height: 8, Depth: 1,
		}
		mod(&d)
		cb := NewCommandBuffer("rays")
		cb.DispatchRays(d)
		return cb
	}

	assert.NoError(t, ray(func(*RayDispatch) {}).Validate())
	assert.ErrorIs(t, ray(func(d *RayDispatch) { d.Pass = "Other" }).Validate(), ErrInvalidCommand)
	assert.ErrorIs(t, ray(func(d *RayDispatch) { d.Entry = "Other" }).Validate(), ErrInvalidCommand)
	assert.ErrorIs(t, ray(func(d *RayDispatch) { d.Width = 9 }).Validate(), ErrInvalidCommand)
	assert.ErrorIs(t, ray(func(d *RayDispatch) { d.Output = &fakeImage{w: 8, h: 8} }).Validate(), ErrInvalidCommand)
	assert.ErrorIs(t, ray(func(d *RayDispatch) { d.Structure = &fakeStructure{released: true} }).Validate(), ErrReleased)
	assert.ErrorIs(t, ray(func(d *RayDispatch) { d.Program = nil }).Validate(), ErrInvalidCommand)
}

func TestValidateBlit(t *testing.T) {
	cb := NewCommandBuffer("blit")
	cb.Blit(nil, &fakeImage{})
	assert.ErrorIs(t, cb.Validate(), ErrInvalidCommand)

	cb = NewCommandBuffer("blit")
	cb.Blit(&fakeImage{released: true}, &fakeImage{})
	assert.ErrorIs(t, cb.Validate(), ErrReleased)
}
