package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Particle is one slot of the particle pool. Model is kept in sync with
// Position, Quaternion and Scale by the update kernel; ComposeModel rebuilds
// it on the host.
type Particle struct {
	Lifespan   float32 // remaining seconds
	Position   mgl32.Vec3
	Velocity   mgl32.Vec3
	Model      mgl32.Mat4 // column-major
	Scale      mgl32.Vec3
	Quaternion mgl32.Quat // stored x,y,z,w
}

var particleSchema = Schema{
	Name: "Particle",
	Fields: []FieldShape{
		Scalar("lifespan", ScalarFloat),
		Vector("position", ScalarFloat, 3),
		Vector("velocity", ScalarFloat, 3),
		Matrix4("model"),
		Vector("scale", ScalarFloat, 3),
		Vector("quaternion", ScalarFloat, 4),
	},
}

func (Particle) Schema() Schema { return particleSchema }

func (Particle) Size(p Packing) uint32 { return Layout(particleSchema, p).Size }

// Alive reports whether the slot still has life left.
func (pt *Particle) Alive() bool { return pt.Lifespan > 0 }

// ComposeModel sets Model = T * R * S.
func (pt *Particle) ComposeModel() mgl32.Mat4 {
	translate := mgl32.Translate3D(pt.Position.X(), pt.Position.Y(), pt.Position.Z())
	rotate := pt.Quaternion.Normalize().Mat4()
	scale := mgl32.Scale3D(pt.Scale.X(), pt.Scale.Y(), pt.Scale.Z())
	pt.Model = translate.Mul4(rotate).Mul4(scale)
	return pt.Model
}

func (pt *Particle) words() []uint32 {
	ww := &wordWriter{w: make([]uint32, 0, particleSchema.Words())}
	ww.f(pt.Lifespan)
	ww.f(pt.Position[:]...)
	ww.f(pt.Velocity[:]...)
	ww.f(pt.Model[:]...)
	ww.f(pt.Scale[:]...)
	ww.f(quatXYZW(pt.Quaternion)...)
	return ww.w
}

func (pt *Particle) fromWords(w []uint32) {
	r := &wordReader{w: w}
	pt.Lifespan = r.f()
	pt.Position = readVec3(r)
	pt.Velocity = readVec3(r)
	for i := range pt.Model {
		pt.Model[i] = r.f()
	}
	pt.Scale = readVec3(r)
	pt.Quaternion = readQuat(r)
}

func (pt *Particle) Marshal(p Packing) []byte {
	return marshal(particleSchema, p, pt.words())
}

func (pt *Particle) Unmarshal(p Packing, b []byte) error {
	w, err := unmarshal(particleSchema, p, b)
	if err != nil {
		return err
	}
	pt.fromWords(w)
	return nil
}

// MarshalParticles packs a pool, one element every Size(p) bytes.
func MarshalParticles(p Packing, particles []Particle) []byte {
	l := Layout(particleSchema, p)
	buf := make([]byte, int(l.Size)*len(particles))
	for i := range particles {
		encodeWords(l, particles[i].words(), buf[uint32(i)*l.Size:])
	}
	return buf
}

// UnmarshalParticles decodes a pool. b must hold a whole number of
// elements; a partial trailing element is ErrShortBuffer.
func UnmarshalParticles(p Packing, b []byte) ([]Particle, error) {
	l := Layout(particleSchema, p)
	if uint32(len(b))%l.Size != 0 {
		return nil, fmt.Errorf("%w: particle pool of %d bytes is not a multiple of %d (%s)", ErrShortBuffer, len(b), l.Size, p)
	}
	n := uint32(len(b)) / l.Size
	out := make([]Particle, n)
	for i := uint32(0); i < n; i++ {
		out[i].fromWords(decodeWords(l, b[i*l.Size:]))
	}
	return out, nil
}
