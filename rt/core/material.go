package core

// Material is the shading reference attached to a registered instance.
// Hit programs read Albedo; Name selects nothing on the host side.
type Material struct {
	Name   string
	Albedo [3]float32
}

func DefaultMaterial() Material {
	return Material{Name: "wave", Albedo: [3]float32{0.8, 0.8, 0.85}}
}
