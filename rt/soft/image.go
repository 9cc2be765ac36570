package soft

import (
	"image"
	"image/color"
	"sync"

	"github.com/chewxy/math32"
	"github.com/gekko3d/wavert/rt/device"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
)

// Image stores RGBA as float32 regardless of format. RGBA8Unorm images clamp
// and quantize on write so they read back what the GPU format would hold.
type Image struct {
	dev      *Device
	desc     device.ImageDescriptor
	mu       sync.Mutex
	pix      []float32
	released bool
	releases int
}

var _ draw.Image = (*Image)(nil)

func newImage(dev *Device, desc device.ImageDescriptor) *Image {
	return &Image{dev: dev, desc: desc, pix: make([]float32, desc.Width*desc.Height*4)}
}

func (m *Image) Label() string              { return m.desc.Label }
func (m *Image) Width() int                 { return m.desc.Width }
func (m *Image) Height() int                { return m.desc.Height }
func (m *Image) Format() device.ImageFormat { return m.desc.Format }
func (m *Image) RandomWrite() bool          { return m.desc.RandomWrite }

func (m *Image) Release() {
	m.mu.Lock()
	m.releases++
	if m.released {
		m.mu.Unlock()
		return
	}
	m.released = true
	m.pix = nil
	m.mu.Unlock()
	if m.dev != nil {
		m.dev.free(m.desc.Width*m.desc.Height*16, &m.dev.stats.ImagesReleased)
	}
}

func (m *Image) Released() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

// ReleaseCalls counts Release invocations, including redundant ones.
func (m *Image) ReleaseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releases
}

func (m *Image) Texel(x, y int) [4]float32 {
	if x < 0 || y < 0 || x >= m.desc.Width || y >= m.desc.Height || m.pix == nil {
		return [4]float32{}
	}
	i := (y*m.desc.Width + x) * 4
	return [4]float32{m.pix[i], m.pix[i+1], m.pix[i+2], m.pix[i+3]}
}

func (m *Image) SetTexel(x, y int, c [4]float32) {
	if x < 0 || y < 0 || x >= m.desc.Width || y >= m.desc.Height || m.pix == nil {
		return
	}
	if m.desc.Format == device.FormatRGBA8Unorm {
		for k := range c {
			c[k] = math32.Round(mgl32.Clamp(c[k], 0, 1)*255) / 255
		}
	}
	i := (y*m.desc.Width + x) * 4
	copy(m.pix[i:i+4], c[:])
}

// Sample does a nearest lookup with wrapped u and clamped v.
func (m *Image) Sample(u, v float32) [4]float32 {
	u -= math32.Floor(u)
	v = mgl32.Clamp(v, 0, 1)
	x := min(int(u*float32(m.desc.Width)), m.desc.Width-1)
	y := min(int(v*float32(m.desc.Height)), m.desc.Height-1)
	return m.Texel(x, y)
}

func (m *Image) ColorModel() color.Model { return color.RGBA64Model }

func (m *Image) Bounds() image.Rectangle { return image.Rect(0, 0, m.desc.Width, m.desc.Height) }

func (m *Image) At(x, y int) color.Color {
	c := m.Texel(x, y)
	return color.RGBA64{R: unorm16(c[0]), G: unorm16(c[1]), B: unorm16(c[2]), A: unorm16(c[3])}
}

func (m *Image) Set(x, y int, c color.Color) {
	r, g, b, a := c.RGBA()
	m.SetTexel(x, y, [4]float32{float32(r) / 0xffff, float32(g) / 0xffff, float32(b) / 0xffff, float32(a) / 0xffff})
}

func unorm16(v float32) uint16 {
	return uint16(math32.Round(mgl32.Clamp(v, 0, 1) * 0xffff))
}

// SkyImage fills a width x height equirectangular gradient, used as the
// environment when no texture is supplied.
func SkyImage(width, height int) *Image {
	m := newImage(nil, device.ImageDescriptor{Label: "sky", Width: width, Height: height, Format: device.FormatRGBA16Float})
	horizon := mgl32.Vec3{0.85, 0.9, 1.0}
	zenith := mgl32.Vec3{0.2, 0.4, 0.85}
	ground := mgl32.Vec3{0.25, 0.22, 0.2}
	for y := 0; y < height; y++ {
		// v = 0 is straight up.
		elevation := 1 - 2*(float32(y)+0.5)/float32(height)
		var c mgl32.Vec3
		if elevation >= 0 {
			c = lerp(horizon, zenith, math32.Sqrt(elevation))
		} else {
			c = lerp(horizon, ground, math32.Sqrt(-elevation))
		}
		for x := 0; x < width; x++ {
			m.SetTexel(x, y, [4]float32{c[0], c[1], c[2], 1})
		}
	}
	return m
}

func lerp(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Mul(1 - t).Add(b.Mul(t))
}
