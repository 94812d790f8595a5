package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// EmitKind selects the emission shape read by the emission kernel.
type EmitKind int32

const (
	EmitSphere EmitKind = 1
	EmitCone   EmitKind = 2
	EmitBox    EmitKind = 3
)

func (k EmitKind) Valid() bool {
	return k >= EmitSphere && k <= EmitBox
}

func (k EmitKind) String() string {
	switch k {
	case EmitSphere:
		return "sphere"
	case EmitCone:
		return "cone"
	case EmitBox:
		return "box"
	}
	return fmt.Sprintf("EmitKind(%d)", int32(k))
}

func (k EmitKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid emit kind %d", int32(k))
	}
	return []byte(k.String()), nil
}

func (k *EmitKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "sphere":
		*k = EmitSphere
	case "cone":
		*k = EmitCone
	case "box":
		*k = EmitBox
	default:
		return fmt.Errorf("unknown emit kind %q", string(b))
	}
	return nil
}

// EmitParticleInfo is the per-step emission request consumed by the EmitCount
// and EmitParticle kernels. RealEmitCount is written back by the kernels.
type EmitParticleInfo struct {
	EmitCount     uint32
	RealEmitCount uint32
	Lifespan      float32
	Dt            float32
	Scale         mgl32.Vec3
	StartVelocity float32
	OriginPos     mgl32.Vec3
	Radius        float32
	ForwardDir    mgl32.Vec3
	ScaleRandom   float32
	Acceleration  mgl32.Vec3
	ConeEmitAngle float32 // radians
	PrevPosition  mgl32.Vec3
	EmitKind      EmitKind
	Rotation      mgl32.Quat // stored x,y,z,w
	BoxEmitSize   mgl32.Vec3 // half extents
}

var emitParticleInfoSchema = Schema{
	Name: "EmitParticleInfo",
	Fields: []FieldShape{
		Scalar("emitCount", ScalarUint),
		Scalar("realEmitCount", ScalarUint),
		Scalar("lifespan", ScalarFloat),
		Scalar("_dt", ScalarFloat),
		Vector("scale", ScalarFloat, 3),
		Scalar("startVelocity", ScalarFloat),
		Vector("originPos", ScalarFloat, 3),
		Scalar("radius", ScalarFloat),
		Vector("forwardDir", ScalarFloat, 3),
		Scalar("scaleRandom", ScalarFloat),
		Vector("acceleration", ScalarFloat, 3),
		Scalar("coneEmitAngle", ScalarFloat),
		Vector("prevPosition", ScalarFloat, 3),
		Scalar("emitKind", ScalarSint),
		Vector("rotation", ScalarFloat, 4),
		Vector("boxEmitSize", ScalarFloat, 3),
	},
}

func (EmitParticleInfo) Schema() Schema { return emitParticleInfoSchema }

func (EmitParticleInfo) Size(p Packing) uint32 { return Layout(emitParticleInfoSchema, p).Size }

func (e *EmitParticleInfo) words() []uint32 {
	ww := &wordWriter{w: make([]uint32, 0, emitParticleInfoSchema.Words())}
	ww.u(e.EmitCount)
	ww.u(e.RealEmitCount)
	ww.f(e.Lifespan, e.Dt)
	ww.f(e.Scale[:]...)
	ww.f(e.StartVelocity)
	ww.f(e.OriginPos[:]...)
	ww.f(e.Radius)
	ww.f(e.ForwardDir[:]...)
	ww.f(e.ScaleRandom)
	ww.f(e.Acceleration[:]...)
	ww.f(e.ConeEmitAngle)
	ww.f(e.PrevPosition[:]...)
	ww.i(int32(e.EmitKind))
	ww.f(quatXYZW(e.Rotation)...)
	ww.f(e.BoxEmitSize[:]...)
	return ww.w
}

func (e *EmitParticleInfo) Marshal(p Packing) []byte {
	return marshal(emitParticleInfoSchema, p, e.words())
}

func (e *EmitParticleInfo) Unmarshal(p Packing, b []byte) error {
	w, err := unmarshal(emitParticleInfoSchema, p, b)
	if err != nil {
		return err
	}
	r := &wordReader{w: w}
	e.EmitCount = r.u()
	e.RealEmitCount = r.u()
	e.Lifespan = r.f()
	e.Dt = r.f()
	e.Scale = readVec3(r)
	e.StartVelocity = r.f()
	e.OriginPos = readVec3(r)
	e.Radius = r.f()
	e.ForwardDir = readVec3(r)
	e.ScaleRandom = r.f()
	e.Acceleration = readVec3(r)
	e.ConeEmitAngle = r.f()
	e.PrevPosition = readVec3(r)
	e.EmitKind = EmitKind(r.i())
	e.Rotation = readQuat(r)
	e.BoxEmitSize = readVec3(r)
	return nil
}

func quatXYZW(q mgl32.Quat) []float32 {
	return []float32{q.V[0], q.V[1], q.V[2], q.W}
}

func readVec3(r *wordReader) mgl32.Vec3 {
	return mgl32.Vec3{r.f(), r.f(), r.f()}
}

func readQuat(r *wordReader) mgl32.Quat {
	x, y, z, w := r.f(), r.f(), r.f(), r.f()
	return mgl32.Quat{W: w, V: mgl32.Vec3{x, y, z}}
}
