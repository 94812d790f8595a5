package core

// KernelParams is the uniform block bound next to the particle buffers.
// It carries per-step values every kernel reads, such as time.
type KernelParams struct {
	Time         float32 // seconds since the emitter started
	MaxParticles uint32
}

var kernelParamsSchema = Schema{
	Name: "KernelParams",
	Fields: []FieldShape{
		Scalar("time", ScalarFloat),
		Scalar("maxParticles", ScalarUint),
		Vector("_pad", ScalarUint, 2),
	},
}

func (KernelParams) Schema() Schema { return kernelParamsSchema }

func (KernelParams) Size(p Packing) uint32 { return Layout(kernelParamsSchema, p).Size }

func (k *KernelParams) Marshal(p Packing) []byte {
	return marshal(kernelParamsSchema, p, []uint32{f32(k.Time), k.MaxParticles, 0, 0})
}

func (k *KernelParams) Unmarshal(p Packing, b []byte) error {
	w, err := unmarshal(kernelParamsSchema, p, b)
	if err != nil {
		return err
	}
	k.Time = fromF32(w[0])
	k.MaxParticles = w[1]
	return nil
}

// Schemas lists every struct shared with the kernels, in declaration order.
func Schemas() []Schema {
	return []Schema{
		emitParticleInfoSchema,
		particleCounterSchema,
		particleSchema,
		indirectArgumentSchema,
		indirectDispatchSchema,
		kernelParamsSchema,
	}
}
