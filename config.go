package gpuparticle

import (
	"fmt"
	"math"
	"strings"

	"github.com/gekko3d/gpuparticle/particlert/core"

	"github.com/go-gl/mathgl/mgl32"
)

// EmitterConfig holds the authoring parameters of an emitter.
type EmitterConfig struct {
	MaxParticles    uint32        `json:"max_particles"`
	EmitRate        float32       `json:"emit_rate"` // particles per second
	Lifespan        float32       `json:"lifespan"`  // seconds
	StartVelocity   float32       `json:"start_velocity"`
	Acceleration    mgl32.Vec3    `json:"acceleration"`
	ScaleRandomness float32       `json:"scale_randomness"`
	EmitKind        core.EmitKind `json:"emit_kind"`
	Radius          float32       `json:"radius"`
	ConeEmitDegree  float32       `json:"cone_emit_degree"`
	BoxEmitSize     mgl32.Vec3    `json:"box_emit_size"` // full extents
	IndexCount      uint32        `json:"index_count"`   // indices of the instanced mesh
}

func DefaultEmitterConfig() EmitterConfig {
	return EmitterConfig{
		MaxParticles:   10000,
		EmitRate:       100,
		Lifespan:       2,
		StartVelocity:  1,
		EmitKind:       core.EmitCone,
		Radius:         0.5,
		ConeEmitDegree: 30,
		BoxEmitSize:    mgl32.Vec3{1, 1, 1},
		IndexCount:     6,
	}
}

func finite(v ...float32) bool {
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}

// Validate reports every out-of-range field in one error wrapping ErrInvalidConfig.
func (c EmitterConfig) Validate() error {
	var problems []string
	if c.MaxParticles == 0 {
		problems = append(problems, "max_particles must be positive")
	}
	if !finite(c.EmitRate) || c.EmitRate < 0 {
		problems = append(problems, fmt.Sprintf("emit_rate %v must be >= 0", c.EmitRate))
	}
	if !finite(c.Lifespan) || c.Lifespan < 0 {
		problems = append(problems, fmt.Sprintf("lifespan %v must be >= 0", c.Lifespan))
	}
	if !finite(c.StartVelocity) || !finite(c.Acceleration[:]...) {
		problems = append(problems, "velocity and acceleration must be finite")
	}
	if !finite(c.ScaleRandomness) || c.ScaleRandomness < 0 || c.ScaleRandomness > 1 {
		problems = append(problems, fmt.Sprintf("scale_randomness %v outside [0,1]", c.ScaleRandomness))
	}
	if !c.EmitKind.Valid() {
		problems = append(problems, fmt.Sprintf("emit_kind %d unknown", int32(c.EmitKind)))
	}
	if !finite(c.Radius) || c.Radius < 0 {
		problems = append(problems, fmt.Sprintf("radius %v must be >= 0", c.Radius))
	}
	if !finite(c.ConeEmitDegree) || c.ConeEmitDegree < 0 || c.ConeEmitDegree > 360 {
		problems = append(problems, fmt.Sprintf("cone_emit_degree %v outside [0,360]", c.ConeEmitDegree))
	}
	if !finite(c.BoxEmitSize[:]...) || c.BoxEmitSize.X() < 0 || c.BoxEmitSize.Y() < 0 || c.BoxEmitSize.Z() < 0 {
		problems = append(problems, fmt.Sprintf("box_emit_size %v must be non-negative", c.BoxEmitSize))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
