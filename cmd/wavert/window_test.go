package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/wavert"
	"github.com/stretchr/testify/assert"
)

type fakeSurfaceTexture struct {
	viewErr  error
	releases int
}

func (f *fakeSurfaceTexture) CreateView(*wgpu.TextureViewDescriptor) (*wgpu.TextureView, error) {
	return nil, f.viewErr
}

func (f *fakeSurfaceTexture) Release() { f.releases++ }

func TestPresentFrameReleasesTextureWhenViewFails(t *testing.T) {
	var errOut bytes.Buffer
	log := wavert.NewWriterLogger("test", false, &bytes.Buffer{}, &errOut)
	next := &fakeSurfaceTexture{viewErr: errors.New("surface lost")}

	drawn, presented := false, false
	presentFrame(next, func(*wgpu.TextureView) { drawn = true }, func() { presented = true }, log)

	assert.Equal(t, 1, next.releases)
	assert.False(t, drawn)
	assert.False(t, presented)
	assert.Contains(t, errOut.String(), "surface lost")
}
