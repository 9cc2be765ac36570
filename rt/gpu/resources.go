package gpu

import (
	"fmt"
	"image"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/wavert/rt/device"
	"golang.org/x/image/draw"
)

type Buffer struct {
	dev  *Device
	desc device.BufferDescriptor
	buf  *wgpu.Buffer
}

func bufferUsage(u device.BufferUsage) wgpu.BufferUsage {
	// Builds read every buffer as storage when packing instance geometry.
	usage := wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc | wgpu.BufferUsageStorage
	if u.Has(device.BufferUsageVertex) {
		usage |= wgpu.BufferUsageVertex
	}
	if u.Has(device.BufferUsageIndex) {
		usage |= wgpu.BufferUsageIndex
	}
	return usage
}

func alignedSize(n int) uint64 {
	size := uint64(n)
	if size%4 != 0 {
		size += 4 - size%4
	}
	return size
}

func (d *Device) CreateBuffer(desc device.BufferDescriptor) (device.Buffer, error) {
	if desc.Size() <= 0 {
		return nil, fmt.Errorf("%w: buffer %q is empty", device.ErrAllocation, desc.Label)
	}
	buf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  alignedSize(desc.Size()),
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("buffer %q: %w: %v", desc.Label, device.ErrAllocation, err)
	}
	return &Buffer{dev: d, desc: desc, buf: buf}, nil
}

func (b *Buffer) Label() string             { return b.desc.Label }
func (b *Buffer) Count() int                { return b.desc.Count }
func (b *Buffer) Stride() int               { return b.desc.Stride }
func (b *Buffer) Size() int                 { return b.desc.Size() }
func (b *Buffer) Usage() device.BufferUsage { return b.desc.Usage }
func (b *Buffer) Released() bool            { return b.buf == nil }

// Write queues the upload; it lands before any later submit.
func (b *Buffer) Write(offset int, data []byte) error {
	if b.buf == nil {
		return fmt.Errorf("buffer %q: %w", b.desc.Label, device.ErrReleased)
	}
	if offset < 0 || offset+len(data) > b.desc.Size() || offset%4 != 0 || len(data)%4 != 0 {
		return fmt.Errorf("%w: write of %d bytes at %d into buffer %q (%d bytes)",
			device.ErrInvalidCommand, len(data), offset, b.desc.Label, b.desc.Size())
	}
	return b.dev.Queue.WriteBuffer(b.buf, uint64(offset), data)
}

func (b *Buffer) Release() {
	if b.buf == nil {
		return
	}
	b.buf.Release()
	b.buf = nil
}

type Image struct {
	dev     *Device
	desc    device.ImageDescriptor
	format  wgpu.TextureFormat
	texture *wgpu.Texture
	view    *wgpu.TextureView
	// Wrapped images borrow their view and never release it.
	wrapped  bool
	released bool
}

func textureFormat(f device.ImageFormat) wgpu.TextureFormat {
	if f == device.FormatRGBA16Float {
		return wgpu.TextureFormatRGBA16Float
	}
	return wgpu.TextureFormatRGBA8Unorm
}

func (d *Device) CreateImage(desc device.ImageDescriptor) (device.Image, error) {
	img, err := d.newImage(desc, 0)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (d *Device) newImage(desc device.ImageDescriptor, extra wgpu.TextureUsage) (*Image, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("%w: image %q is %dx%d", device.ErrAllocation, desc.Label, desc.Width, desc.Height)
	}
	usage := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst | wgpu.TextureUsageRenderAttachment | extra
	if desc.RandomWrite {
		usage |= wgpu.TextureUsageStorageBinding
	}
	format := textureFormat(desc.Format)
	tex, err := d.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Size:          wgpu.Extent3D{Width: uint32(desc.Width), Height: uint32(desc.Height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("image %q: %w: %v", desc.Label, device.ErrAllocation, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("image %q view: %w: %v", desc.Label, device.ErrAllocation, err)
	}
	return &Image{dev: d, desc: desc, format: format, texture: tex, view: view}, nil
}

// WrapView adapts a view owned elsewhere, such as the current surface texture,
// so it can be a blit destination.
func (d *Device) WrapView(label string, view *wgpu.TextureView, width, height int, format wgpu.TextureFormat) *Image {
	return &Image{
		dev:     d,
		desc:    device.ImageDescriptor{Label: label, Width: width, Height: height, Format: device.FormatRGBA8Unorm},
		format:  format,
		view:    view,
		wrapped: true,
	}
}

// UploadImage copies a Go image into a sampled RGBA8 texture, e.g. an environment map.
func (d *Device) UploadImage(label string, src image.Image) (*Image, error) {
	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)

	img, err := d.newImage(device.ImageDescriptor{
		Label: label, Width: b.Dx(), Height: b.Dy(), Format: device.FormatRGBA8Unorm,
	}, 0)
	if err != nil {
		return nil, err
	}
	d.Queue.WriteTexture(img.texture.AsImageCopy(), rgba.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(rgba.Stride),
		RowsPerImage: uint32(b.Dy()),
	}, &wgpu.Extent3D{Width: uint32(b.Dx()), Height: uint32(b.Dy()), DepthOrArrayLayers: 1})
	return img, nil
}

func (m *Image) Label() string              { return m.desc.Label }
func (m *Image) Width() int                 { return m.desc.Width }
func (m *Image) Height() int                { return m.desc.Height }
func (m *Image) Format() device.ImageFormat { return m.desc.Format }
func (m *Image) RandomWrite() bool          { return m.desc.RandomWrite }
func (m *Image) Released() bool             { return m.released }

func (m *Image) Release() {
	if m.released {
		return
	}
	m.released = true
	if m.wrapped {
		m.view = nil
		return
	}
	if m.view != nil {
		m.view.Release()
		m.view = nil
	}
	if m.texture != nil {
		m.texture.Release()
		m.texture = nil
	}
}
