package gpuparticle

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform places an emitter in the world.
type Transform struct {
	Position mgl32.Vec3 `json:"position"`
	Rotation mgl32.Quat `json:"rotation"`
	Scale    mgl32.Vec3 `json:"scale"`
}

func NewTransform() Transform {
	return Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// EmitDirection is the emitter's local +Y axis in world space.
func (t Transform) EmitDirection() mgl32.Vec3 {
	return t.Rotation.Normalize().Rotate(mgl32.Vec3{0, 1, 0})
}
