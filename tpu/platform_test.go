package tpu

import (
	"encoding/binary"
	"testing"

	"github.com/cvitek/sg2002/dma"
	"github.com/cvitek/sg2002/internal/reg"
)

// buildOneCPUDescBuf encodes a valid header followed by a single CPU sync
// descriptor requesting numBD TIU descriptors and numGDMA TDMA
// descriptors, both fired at offset 0.
func buildOneCPUDescBuf(numBD, numGDMA uint32) []byte {
	buf := make([]byte, HeaderSize+CPUSyncDescSize)

	binary.LittleEndian.PutUint16(buf[0:2], HeaderMagic)
	binary.LittleEndian.PutUint32(buf[8:12], 1) // cpu_desc_count

	desc := buf[HeaderSize:]
	binary.LittleEndian.PutUint32(desc[4:8], numBD)
	binary.LittleEndian.PutUint32(desc[8:12], numGDMA)

	return buf
}

func newTestPlatform(t *testing.T) (*Platform, *dma.Region) {
	t.Helper()

	regs := dma.NewRegion(0x2000)

	tdmaInfo, err := regs.AllocCoherent(0x1000, 0x1000)
	if err != nil {
		t.Fatalf("alloc tdma regs: %v", err)
	}
	tiuInfo, err := regs.AllocCoherent(0x1000, 0x1000)
	if err != nil {
		t.Fatalf("alloc tiu regs: %v", err)
	}

	tdma := &TDMA{Base: tdmaInfo.CPUAddr}
	tiu := &TIU{Base: tiuInfo.CPUAddr}

	return NewPlatform(tdma, tiu, nil), regs
}

func TestPmuEnableDisableIdempotent(t *testing.T) {
	p, _ := newTestPlatform(t)

	p.PmuEnable(0x1000, 0x100, PmuTdmaBandwidth)
	p.PmuDisable()
	p.PmuDisable()

	v := reg.Read(p.TDMA.Base + tdmaPMUCTRL)
	if v&0x1 != 0 {
		t.Fatalf("expected pmu ctrl bit 0 clear after disable, got %#x", v)
	}
}

func TestRunDmabufInvalidMagic(t *testing.T) {
	p, mem := newTestPlatform(t)

	buf := make([]byte, HeaderSize)
	info, _ := mem.AllocCoherent(len(buf), 0)

	state := &RuntimeState{}
	err := p.RunDmabuf(buf, info.BusAddr, state, func() error { return nil }, func() bool { return false })
	if err == nil {
		t.Fatal("expected error for invalid header magic")
	}
	if te := err.(*Error); te.Kind != KindInvalidDmabuf {
		t.Fatalf("expected KindInvalidDmabuf, got %v", te.Kind)
	}
}

func TestRunDmabufUnalignedPaddr(t *testing.T) {
	p, _ := newTestPlatform(t)

	buf := make([]byte, HeaderSize)
	buf[0] = 0xB5
	buf[1] = 0xB5

	state := &RuntimeState{}
	err := p.RunDmabuf(buf, 1, state, func() error { return nil }, func() bool { return false })
	if err == nil {
		t.Fatal("expected error for unaligned paddr")
	}
	if te := err.(*Error); te.Kind != KindDmabufNotAligned {
		t.Fatalf("expected KindDmabufNotAligned, got %v", te.Kind)
	}
}

func TestRunDmabufBDCompletionSucceeds(t *testing.T) {
	p, mem := newTestPlatform(t)

	buf := buildOneCPUDescBuf(1, 0)
	info, _ := mem.AllocCoherent(len(buf), 0x1000)

	state := &RuntimeState{}

	// Simulate the TIU catching up to the fired command id on the first
	// timeoutCheck poll: nothing else in this simulation advances
	// cur_id, so the poll loop would otherwise spin until timeout.
	polled := false
	timeoutCheck := func() bool {
		if !polled {
			polled = true
			reg.SetN(p.TIU.reg(tiuBDCTRL+0x0), bdCurIDShift, bdCurIDMask, 1)
		}
		return false
	}

	err := p.RunDmabuf(buf, info.BusAddr, state, func() error { return nil }, timeoutCheck)
	if err != nil {
		t.Fatalf("expected success once TIU reports cur_id caught up, got %v", err)
	}
	if !polled {
		t.Fatal("expected the poll loop to consult timeoutCheck at least once")
	}
}

func TestRunDmabufBDTimeout(t *testing.T) {
	p, mem := newTestPlatform(t)

	buf := buildOneCPUDescBuf(1, 0)
	info, _ := mem.AllocCoherent(len(buf), 0x1000)

	state := &RuntimeState{}

	// cur_id is never advanced, so the poll loop must eventually give up.
	err := p.RunDmabuf(buf, info.BusAddr, state, func() error { return nil }, func() bool { return true })
	if err == nil {
		t.Fatal("expected timeout error when the TIU interrupt never completes")
	}
	if te := err.(*Error); te.Kind != KindTimeout {
		t.Fatalf("expected KindTimeout, got %v", te.Kind)
	}
}

func TestRunDmabufZeroDescriptorsSucceeds(t *testing.T) {
	p, mem := newTestPlatform(t)

	buf := make([]byte, HeaderSize)
	buf[0] = 0xB5
	buf[1] = 0xB5
	// cpu_desc_count left at 0: loop body never runs.

	info, _ := mem.AllocCoherent(HeaderSize, 0x1000)

	state := &RuntimeState{}
	err := p.RunDmabuf(buf, info.BusAddr, state, func() error { return nil }, func() bool { return false })
	if err != nil {
		t.Fatalf("expected success with zero cpu descriptors, got %v", err)
	}
}

func TestHandleTdmaIRQ(t *testing.T) {
	p, _ := newTestPlatform(t)

	reg.Write(p.TDMA.reg(tdmaINTMASK), tdmaIntEOD<<16)
	reg.Write(p.TDMA.reg(tdmaSYNCSTATUS), 0x00050000)

	state := &RuntimeState{}
	if hasError := p.HandleTdmaIRQ(state); hasError {
		t.Fatal("expected EOD status to decode as success")
	}

	if !state.IRQReceived {
		t.Fatal("expected IRQReceived set after ISR")
	}
	if state.RegBackup.TdmaSyncStatus != 0x00050000 {
		t.Fatalf("expected sync status snapshot, got %#x", state.RegBackup.TdmaSyncStatus)
	}
	if got := reg.Read(p.TDMA.reg(tdmaINTMASK)); got != 0xFFFF0000 {
		t.Fatalf("expected interrupt cleared (INT_MASK=0xFFFF0000), got %#x", got)
	}
}

func TestHandleTdmaIRQErrorStatus(t *testing.T) {
	p, _ := newTestPlatform(t)

	reg.Write(p.TDMA.reg(tdmaINTMASK), 0x4<<16)

	state := &RuntimeState{}
	if hasError := p.HandleTdmaIRQ(state); !hasError {
		t.Fatal("expected non-EOD/EOPMU status to decode as error")
	}
	if !state.IRQReceived {
		t.Fatal("expected IRQReceived set even on error status")
	}
}

func TestResyncCmdIDResetsEngines(t *testing.T) {
	p, _ := newTestPlatform(t)

	reg.Write(p.TIU.reg(tiuBDCTRL+0x0), 1<<bdTpuEn|1<<bdDesAddrVld)

	p.ResyncCmdID()

	v := reg.Read(p.TIU.reg(tiuBDCTRL + 0x0))
	if v&(1<<bdTpuEn) != 0 || v&(1<<bdDesAddrVld) != 0 {
		t.Fatalf("expected tpu_en and des_addr_vld cleared after resync, got %#x", v)
	}
	if got := reg.Read(p.TDMA.reg(tdmaINTMASK)); got != 0xFFFF0000 {
		t.Fatalf("expected TDMA INT_MASK reset to 0xFFFF0000, got %#x", got)
	}
}
