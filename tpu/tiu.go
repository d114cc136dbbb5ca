package tpu

import (
	"github.com/cvitek/sg2002/internal/reg"
)

// TIU BD_CTRL register offset and bit positions.
const (
	tiuBDCTRL = 0x00

	bdTpuEn      = 0
	bdIntrPend   = 1
	bdCurIDShift = 6
	bdCurIDMask  = 0xFFFF
	bdDesAddrVld = 30
	bdIntrEnable = 31
)

// TIU is the tensor-instruction-unit register bank, at base 0x0C10_1000
// on this SoC.
type TIU struct {
	Base uintptr
}

func (t *TIU) reg(offset uintptr) uintptr {
	return t.Base + offset
}

// ResetID re-synchronizes the TIU command-id counter and acknowledges
// any pending interrupt.
func (t *TIU) ResetID() {
	reg.Set(t.reg(tiuBDCTRL+0xC), 0)
	reg.Clear(t.reg(tiuBDCTRL+0xC), 0)

	reg.Clear(t.reg(tiuBDCTRL+0x0), bdTpuEn)
	reg.Clear(t.reg(tiuBDCTRL+0x0), bdDesAddrVld)

	reg.Set(t.reg(tiuBDCTRL+0x0), bdIntrPend)
}

// FireDescriptor programs the BD descriptor address and control bits and
// triggers execution.
func (t *TIU) FireDescriptor(descOff uint32, _n uint32) {
	descAddr := uint64(descOff) << 8

	reg.Write(t.reg(tiuBDCTRL+0x4), uint32(descAddr))
	reg.Or(t.reg(tiuBDCTRL+0x8), uint32(descAddr>>32)&0xFF)

	reg.Set(t.reg(tiuBDCTRL+0xC), 11) // disable pre-exec

	reg.ClearN(t.reg(tiuBDCTRL+0x0), 22, 0xFF) // clear bits [29:22]
	reg.SetN(t.reg(tiuBDCTRL+0x0), 22, 0xFF, 3) // 1-array, lane=8

	reg.Set(t.reg(tiuBDCTRL+0x0), bdDesAddrVld)
	reg.Set(t.reg(tiuBDCTRL+0x0), bdIntrEnable)
	reg.Set(t.reg(tiuBDCTRL+0x0), bdTpuEn)
}

// Poll reads the current BD command id and pending-interrupt bit from
// BD_CTRL. If both the id has caught up and the interrupt bit is set, the
// caller should acknowledge by calling AckInterrupt.
func (t *TIU) Poll() (curID uint32, pending bool) {
	v := reg.Read(t.reg(tiuBDCTRL + 0x0))

	curID = (v >> bdCurIDShift) & bdCurIDMask
	pending = v&(1<<bdIntrPend) != 0

	return curID, pending
}

// AckInterrupt clears the BD pending-interrupt bit by OR-writing it.
func (t *TIU) AckInterrupt() {
	reg.Or(t.reg(tiuBDCTRL+0x0), 1<<bdIntrPend)
}
