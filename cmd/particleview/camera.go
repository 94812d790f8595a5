package main

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera orbits a target point, Y up.
type Camera struct {
	Target      mgl32.Vec3
	Yaw         float32
	Pitch       float32
	Distance    float32
	Speed       float32 // radians per second
	Sensitivity float32
	FovY        float32 // radians
}

func NewCamera() *Camera {
	return &Camera{
		Target:      mgl32.Vec3{0, 2, 0},
		Distance:    12,
		Pitch:       0.3,
		Speed:       1.5,
		Sensitivity: 0.005,
		FovY:        mgl32.DegToRad(60),
	}
}

func (c *Camera) Eye() mgl32.Vec3 {
	cp := float32(math.Cos(float64(c.Pitch)))
	return c.Target.Add(mgl32.Vec3{
		c.Distance * cp * float32(math.Sin(float64(c.Yaw))),
		c.Distance * float32(math.Sin(float64(c.Pitch))),
		c.Distance * cp * float32(math.Cos(float64(c.Yaw))),
	})
}

// Orbit rotates the camera, keeping the pitch short of the poles.
func (c *Camera) Orbit(dYaw, dPitch float32) {
	c.Yaw += dYaw
	c.Pitch = mgl32.Clamp(c.Pitch+dPitch, -1.5, 1.5)
}

func (c *Camera) Zoom(factor float32) {
	c.Distance = mgl32.Clamp(c.Distance*factor, 0.5, 500)
}

func (c *Camera) GetViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye(), c.Target, mgl32.Vec3{0, 1, 0})
}

func (c *Camera) ViewProj(aspect float32) mgl32.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	proj := mgl32.Perspective(c.FovY, aspect, 0.1, 1000)
	return proj.Mul4(c.GetViewMatrix())
}

// matrixBytes packs a column-major matrix for a uniform buffer.
func matrixBytes(m mgl32.Mat4) []byte {
	out := make([]byte, 0, 64)
	for _, f := range m {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
	}
	return out
}
