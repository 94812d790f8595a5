package core

// IndirectArgumentBuffer holds indexed indirect-draw arguments:
// index count, instance count, first index, base vertex, first instance.
type IndirectArgumentBuffer struct {
	Arg [5]uint32
}

// IndirectDispatchBuffer holds indirect-dispatch workgroup counts x, y, z.
type IndirectDispatchBuffer struct {
	Arg [3]int32
}

var indirectArgumentSchema = Schema{
	Name:   "IndirectArgumentBuffer",
	Fields: []FieldShape{Array("arg", ScalarUint, 5)},
}

var indirectDispatchSchema = Schema{
	Name:   "IndirectDispatchBuffer",
	Fields: []FieldShape{Array("arg", ScalarSint, 3)},
}

// DrawArgs is the host-side reset of the draw arguments before each update:
// the mesh index count with a zero instance count the kernels fill in.
func DrawArgs(indexCount uint32) IndirectArgumentBuffer {
	return IndirectArgumentBuffer{Arg: [5]uint32{indexCount, 0, 0, 0, 0}}
}

// UnitDispatch is the initial update-dispatch argument. The z count must be
// set on the host since the kernels only write x.
func UnitDispatch() IndirectDispatchBuffer {
	return IndirectDispatchBuffer{Arg: [3]int32{1, 1, 1}}
}

func (IndirectArgumentBuffer) Schema() Schema { return indirectArgumentSchema }

func (IndirectArgumentBuffer) Size(p Packing) uint32 { return Layout(indirectArgumentSchema, p).Size }

func (a IndirectArgumentBuffer) IndexCount() uint32    { return a.Arg[0] }
func (a IndirectArgumentBuffer) InstanceCount() uint32 { return a.Arg[1] }

func (a *IndirectArgumentBuffer) Marshal(p Packing) []byte {
	return marshal(indirectArgumentSchema, p, a.Arg[:])
}

func (a *IndirectArgumentBuffer) Unmarshal(p Packing, b []byte) error {
	w, err := unmarshal(indirectArgumentSchema, p, b)
	if err != nil {
		return err
	}
	copy(a.Arg[:], w)
	return nil
}

func (IndirectDispatchBuffer) Schema() Schema { return indirectDispatchSchema }

func (IndirectDispatchBuffer) Size(p Packing) uint32 { return Layout(indirectDispatchSchema, p).Size }

// Groups returns the workgroup counts as the unsigned values the GPU reads.
func (d IndirectDispatchBuffer) Groups() [3]uint32 {
	return [3]uint32{uint32(d.Arg[0]), uint32(d.Arg[1]), uint32(d.Arg[2])}
}

func (d *IndirectDispatchBuffer) Marshal(p Packing) []byte {
	return marshal(indirectDispatchSchema, p, []uint32{uint32(d.Arg[0]), uint32(d.Arg[1]), uint32(d.Arg[2])})
}

func (d *IndirectDispatchBuffer) Unmarshal(p Packing, b []byte) error {
	w, err := unmarshal(indirectDispatchSchema, p, b)
	if err != nil {
		return err
	}
	for i := range d.Arg {
		d.Arg[i] = int32(w[i])
	}
	return nil
}
