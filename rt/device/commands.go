package device

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

type CommandKind int

const (
	CommandDispatchCompute CommandKind = iota
	CommandBuildAccelerationStructure
	CommandDispatchRays
	CommandBlit
)

func (k CommandKind) String() string {
	switch k {
	case CommandDispatchCompute:
		return "DispatchCompute"
	case CommandBuildAccelerationStructure:
		return "BuildAccelerationStructure"
	case CommandDispatchRays:
		return "DispatchRays"
	case CommandBlit:
		return "Blit"
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

type ComputeDispatch struct {
	Kernel  Kernel
	Buffers map[string]Buffer
	Floats  map[string]float32
	Ints    map[string]int32
	Groups  [3]uint32
}

type RayDispatch struct {
	Program     RayProgram
	Pass        string
	Entry       string
	Structure   AccelerationStructure
	InvView     mgl32.Mat4 // camera to world
	Zoom        float32
	Environment Image
	Output      Image
	Width       uint32
	Height      uint32
	Depth       uint32
}

type BlitCommand struct {
	Src Image
	Dst Image
}

type Command struct {
	Kind      CommandKind
	Compute   *ComputeDispatch
	Structure AccelerationStructure
	Rays      *RayDispatch
	Blit      *BlitCommand
}

// CommandBuffer records commands; the device runs them in recording order.
type CommandBuffer struct {
	Name     string
	Commands []Command
}

func NewCommandBuffer(name string) *CommandBuffer {
	return &CommandBuffer{Name: name}
}

func (cb *CommandBuffer) DispatchCompute(d ComputeDispatch) {
	cb.Commands = append(cb.Commands, Command{Kind: CommandDispatchCompute, Compute: &d})
}

func (cb *CommandBuffer) BuildAccelerationStructure(as AccelerationStructure) {
	cb.Commands = append(cb.Commands, Command{Kind: CommandBuildAccelerationStructure, Structure: as})
}

func (cb *CommandBuffer) DispatchRays(d RayDispatch) {
	cb.Commands = append(cb.Commands, Command{Kind: CommandDispatchRays, Rays: &d})
}

func (cb *CommandBuffer) Blit(src, dst Image) {
	cb.Commands = append(cb.Commands, Command{Kind: CommandBlit, Blit: &BlitCommand{Src: src, Dst: dst}})
}

func (cb *CommandBuffer) Kinds() []CommandKind {
	kinds := make([]CommandKind, len(cb.Commands))
	for i, c := range cb.Commands {
		kinds[i] = c.Kind
	}
	return kinds
}

// Validate rejects commands that reference missing or released resources.
func (cb *CommandBuffer) Validate() error {
	for i, c := range cb.Commands {
		if err := c.validate(); err != nil {
			return fmt.Errorf("%s command %d (%s): %w", cb.Name, i, c.Kind, err)
		}
	}
	return nil
}

func (c Command) validate() error {
	switch c.Kind {
	case CommandDispatchCompute:
		d := c.Compute
		if d == nil || d.Kernel == nil {
			return fmt.Errorf("%w: no kernel", ErrInvalidCommand)
		}
		for name, b := range d.Buffers {
			if b == nil {
				return fmt.Errorf("%w: buffer %q unset", ErrInvalidCommand, name)
			}
			if b.Released() {
				return fmt.Errorf("buffer %q: %w", name, ErrReleased)
			}
		}
	case CommandBuildAccelerationStructure:
		if c.Structure == nil {
			return fmt.Errorf("%w: no acceleration structure", ErrInvalidCommand)
		}
		if c.Structure.Released() {
			return ErrReleased
		}
	case CommandDispatchRays:
		d := c.Rays
		if d == nil || d.Program == nil || d.Structure == nil || d.Output == nil {
			return fmt.Errorf("%w: incomplete ray dispatch", ErrInvalidCommand)
		}
		if !d.Program.HasPass(d.Pass) {
			return fmt.Errorf("%w: program %s has no pass %q", ErrInvalidCommand, d.Program.Name(), d.Pass)
		}
		if !d.Program.HasEntry(d.Entry) {
			return fmt.Errorf("%w: program %s has no entry %q", ErrInvalidCommand, d.Program.Name(), d.Entry)
		}
		if d.Structure.Released() || d.Output.Released() {
			return ErrReleased
		}
		if !d.Output.RandomWrite() {
			return fmt.Errorf("%w: output image %s is not random-write", ErrInvalidCommand, d.Output.Label())
		}
		if int(d.Width) > d.Output.Width() || int(d.Height) > d.Output.Height() {
			return fmt.Errorf("%w: dispatch %dx%d exceeds output %dx%d", ErrInvalidCommand,
				d.Width, d.Height, d.Output.Width(), d.Output.Height())
		}
	case CommandBlit:
		b := c.Blit
		if b == nil || b.Src == nil || b.Dst == nil {
			return fmt.Errorf("%w: blit needs source and destination", ErrInvalidCommand)
		}
		if b.Src.Released() || b.Dst.Released() {
			return ErrReleased
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidCommand, int(c.Kind))
	}
	return nil
}
