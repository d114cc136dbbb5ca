// Package sg2002 wires up the Cvitek SG2002 ion/tpu device singletons: a
// base-address const block followed by a var block instantiating the
// peripheral structs.
package sg2002

import (
	"github.com/cvitek/sg2002/dma"
	"github.com/cvitek/sg2002/ion"
	"github.com/cvitek/sg2002/tpu"
	"github.com/sirupsen/logrus"
)

// Physical base addresses for the TDMA and TIU register banks.
const (
	TDMA_PHYS_BASE = 0x0C10_0000
	TIU_PHYS_BASE  = 0x0C10_1000

	// RegisterArenaSize covers exactly the two engines' 0x1000-byte
	// register windows; real silicon maps these at fixed physical offsets, this
	// tree backs them with a Go-allocated arena (see dma.NewRegion).
	RegisterArenaSize = 0x2000

	// CoherentArenaSize bounds the ion backing allocator.
	CoherentArenaSize = 64 * 1024 * 1024
)

var (
	// Coherent is the DMA-coherent memory region ion allocations are
	// drawn from.
	Coherent = dma.NewRegion(CoherentArenaSize)

	// registers is the simulated MMIO arena backing the TDMA/TIU banks.
	registers = dma.NewRegion(RegisterArenaSize)

	tdmaBase, _ = registers.AllocCoherent(0x1000, 0x1000)
	tiuBase, _  = registers.AllocCoherent(0x1000, 0x1000)

	TDMA = &tpu.TDMA{Base: tdmaBase.CPUAddr}
	TIU  = &tpu.TIU{Base: tiuBase.CPUAddr}

	log = logrus.NewEntry(logrus.StandardLogger())

	// Ion is the /dev/ion character device singleton.
	Ion = ion.NewDevice(Coherent, nil, log)

	// Tpu is the /dev/cva_tpu character device singleton. It shares
	// Ion's fd table and buffer registry so SUBMIT_DMABUF can resolve a
	// fd minted by ALLOC back to its physical buffer.
	Tpu = tpu.NewDevice(TDMA, TIU, Ion.FDs(), Ion.Registry(), log)
)

// Init brings the tpu device online (Uninitialized -> Idle). The ion
// device has no analogous init step: it is ready as soon as its
// singleton exists.
func Init() {
	Tpu.Init()
}
