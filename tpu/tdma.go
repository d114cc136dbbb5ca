package tpu

import (
	"github.com/cvitek/sg2002/bits"
	"github.com/cvitek/sg2002/internal/reg"
)

// TDMA register offsets.
const (
	tdmaCTRL       = 0x00
	tdmaDESBASE    = 0x04
	tdmaINTMASK    = 0x08
	tdmaARRAYBASE0 = 0x70 // 8 consecutive _l registers, 0x70..0x8C
	tdmaARRAYBASEH = 0x90 // 2 shared _h registers, 0x90 and 0x94
	tdmaDEBUGMODE  = 0xA0
	tdmaDCMDISABLE = 0xA4
)

const (
	tdmaIntEOD   = 0x1
	tdmaIntEOPMU = 0x8000
)

// TDMA is the DMA-engine register bank, at base 0x0C10_0000 on this SoC.
type TDMA struct {
	Base uintptr
}

func (t *TDMA) reg(offset uintptr) uintptr {
	return t.Base + offset
}

// SetArrayBases writes the header's eight array-base low words to
// 0x70..0x8C and zeroes the two shared high words. Upper bits are assumed
// zero on this SoC.
func (t *TDMA) SetArrayBases(h Header) {
	for i := 0; i < 8; i++ {
		reg.Write(t.reg(tdmaARRAYBASE0+uintptr(i*4)), h.ArrayBaseL[i])
	}

	reg.Write(t.reg(tdmaARRAYBASEH), 0)
	reg.Write(t.reg(tdmaARRAYBASEH+4), 0)
}

// ResetSyncID re-synchronizes the TDMA command-id counter.
func (t *TDMA) ResetSyncID() {
	reg.Write(t.reg(tdmaCTRL), 1<<2)
	reg.Write(t.reg(tdmaCTRL), 0)
	reg.Write(t.reg(tdmaINTMASK), 0xFFFF0000)
}

// FireDescriptor programs DES_BASE and CTRL and triggers execution of n
// descriptors starting at desc_off.
func (t *TDMA) FireDescriptor(descOff uint32, n uint32) {
	reg.Write(t.reg(tdmaDESBASE), descOff)
	reg.Write(t.reg(tdmaDEBUGMODE), 0)
	reg.Write(t.reg(tdmaDCMDISABLE), 0)
	reg.Write(t.reg(tdmaINTMASK), 0x20)

	const (
		ctrlEnable      = 0
		ctrlModesel     = 1
		ctrlFixedPos    = 8
		ctrlForce1Array = 5
		ctrlAlign64     = 10
		ctrlIntraCmdOff = 13
		ctrlCountPos    = 16
	)

	var ctrl uint32
	bits.Set(&ctrl, ctrlEnable)
	bits.Set(&ctrl, ctrlModesel)
	bits.SetN(&ctrl, ctrlFixedPos, 0x3, 0x3)
	bits.Set(&ctrl, ctrlForce1Array)
	bits.Set(&ctrl, ctrlAlign64)
	bits.Set(&ctrl, ctrlIntraCmdOff)
	bits.SetN(&ctrl, ctrlCountPos, 0xFFFF, n)

	reg.Write(t.reg(tdmaCTRL), ctrl)
}

// ClearInterrupt acknowledges the pending TDMA interrupt.
func (t *TDMA) ClearInterrupt() {
	reg.Write(t.reg(tdmaINTMASK), 0xFFFF0000)
}

// GetIntStatus reads and decodes the current interrupt status. It returns
// the raw status and whether it encodes an error (anything other than
// EOD or EOPMU).
func (t *TDMA) GetIntStatus() (status uint32, isError bool) {
	v := reg.Read(t.reg(tdmaINTMASK))
	status = (v >> 16) &^ 0x20

	isError = status != tdmaIntEOD && status != tdmaIntEOPMU

	return status, isError
}
