package core

// ParticleCounter partitions the pool: slots on the alive list, slots on the
// dead (free) list, and the number of particles the update kernel processes
// this step.
type ParticleCounter struct {
	AliveListCount      uint32
	DeadListCount       uint32
	UpdateParticleCount uint32
}

var particleCounterSchema = Schema{
	Name: "ParticleCounter",
	Fields: []FieldShape{
		{Name: "alivelistCount", Kind: ScalarUint, Rows: 1, Cols: 1, Atomic: true},
		{Name: "deadlistCount", Kind: ScalarUint, Rows: 1, Cols: 1, Atomic: true},
		{Name: "updateParticleCount", Kind: ScalarUint, Rows: 1, Cols: 1, Atomic: true},
	},
}

func (ParticleCounter) Schema() Schema { return particleCounterSchema }

func (ParticleCounter) Size(p Packing) uint32 { return Layout(particleCounterSchema, p).Size }

// Total is alive plus dead; equals the pool capacity once the dead list is seeded.
func (c ParticleCounter) Total() uint32 { return c.AliveListCount + c.DeadListCount }

func (c *ParticleCounter) Marshal(p Packing) []byte {
	return marshal(particleCounterSchema, p, []uint32{c.AliveListCount, c.DeadListCount, c.UpdateParticleCount})
}

func (c *ParticleCounter) Unmarshal(p Packing, b []byte) error {
	w, err := unmarshal(particleCounterSchema, p, b)
	if err != nil {
		return err
	}
	c.AliveListCount, c.DeadListCount, c.UpdateParticleCount = w[0], w[1], w[2]
	return nil
}
