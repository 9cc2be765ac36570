package soft

import (
	"fmt"

	"github.com/gekko3d/wavert/rt/device"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
)

const traceMax = 1e30

func (d *Device) dispatchRays(r *device.RayDispatch) error {
	if !d.opts.RayTracing {
		return fmt.Errorf("ray dispatch: %w", device.ErrCapabilityUnavailable)
	}
	prog, ok := r.Program.(*RayProgram)
	if !ok {
		return fmt.Errorf("%w: program %s does not belong to the soft device", device.ErrInvalidCommand, r.Program.Name())
	}
	as, ok := r.Structure.(*AccelerationStructure)
	if !ok {
		return fmt.Errorf("%w: acceleration structure does not belong to the soft device", device.ErrInvalidCommand)
	}
	out, ok := r.Output.(*Image)
	if !ok {
		return fmt.Errorf("%w: output %s does not belong to the soft device", device.ErrInvalidCommand, r.Output.Label())
	}
	var env *Image
	if r.Environment != nil {
		if env, ok = r.Environment.(*Image); !ok {
			return fmt.Errorf("%w: environment %s does not belong to the soft device", device.ErrInvalidCommand, r.Environment.Label())
		}
	}
	shade := prog.passes[r.Pass]

	w, h := int(r.Width), int(r.Height)
	if w == 0 || h == 0 {
		return nil
	}
	aspect := float32(w) / float32(h)
	origin := r.InvView.Col(3).Vec3()

	// One task per row.
	return d.parallel(h, func(y int) error {
		py := (1 - 2*(float32(y)+0.5)/float32(h)) * r.Zoom
		for x := 0; x < w; x++ {
			px := (2*(float32(x)+0.5)/float32(w) - 1) * r.Zoom * aspect
			dir := r.InvView.Mul4x1(mgl32.Vec4{px, py, -1, 0}).Vec3().Normalize()
			hit := as.Trace(origin, dir, traceMax)
			out.SetTexel(x, y, shade(hit, dir, env))
		}
		return nil
	})
}

func (d *Device) blit(b *device.BlitCommand) error {
	src, ok := b.Src.(*Image)
	if !ok {
		return fmt.Errorf("%w: blit source %s does not belong to the soft device", device.ErrInvalidCommand, b.Src.Label())
	}
	dst, ok := b.Dst.(*Image)
	if !ok {
		return fmt.Errorf("%w: blit destination %s does not belong to the soft device", device.ErrInvalidCommand, b.Dst.Label())
	}
	if src.Bounds() == dst.Bounds() {
		for y := 0; y < src.Height(); y++ {
			for x := 0; x < src.Width(); x++ {
				dst.SetTexel(x, y, src.Texel(x, y))
			}
		}
		return nil
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return nil
}
