// Package regfile provides the per-core general-purpose register file.
package regfile

// Size is the fixed number of architectural registers.
const Size = 32

// RegisterFile is a fixed-size sequence of 32 signed 32-bit registers.
// Register 0 always reads 0 and silently discards writes; register 31
// always reads the core's own core id and likewise discards writes.
type RegisterFile struct {
	x      [Size]int32
	coreID int32
}

// New constructs a RegisterFile for the given core id, which is
// immutably reflected at register index 31.
func New(coreID int) *RegisterFile {
	return &RegisterFile{coreID: int32(coreID)}
}

// ReadReg reads register reg. Register 0 reads 0; register 31 reads the
// core id; any other index reads its stored value.
func (r *RegisterFile) ReadReg(reg int) int32 {
	switch reg {
	case 0:
		return 0
	case 31:
		return r.coreID
	default:
		return r.x[reg]
	}
}

// WriteReg writes value to register reg. Writes to register 0 or 31 are
// silently discarded.
func (r *RegisterFile) WriteReg(reg int, value int32) {
	if reg == 0 || reg == 31 {
		return
	}
	r.x[reg] = value
}

// CoreID returns the core id exposed at register 31.
func (r *RegisterFile) CoreID() int {
	return int(r.coreID)
}

// Snapshot returns a copy of all 32 register values, with index 0 forced
// to 0 and index 31 forced to the core id, for end-of-run reporting.
func (r *RegisterFile) Snapshot() [Size]int32 {
	snap := r.x
	snap[0] = 0
	snap[31] = r.coreID
	return snap
}
