// Command sg2002ctl drives the simulated ion/tpu device pair in-process,
// in the stdlib-flag-and-log idiom the veritysetup-go example's cmd/
// entry point uses — there is no real /dev/ion node to open from a
// hosted process, so this exercises the ioctl dispatch directly.
package main

import (
	"encoding/binary"
	"flag"
	"os"

	"github.com/cvitek/sg2002/ion"
	"github.com/cvitek/sg2002/soc/cvitek/sg2002"
	"github.com/cvitek/sg2002/tpu"
	"github.com/sirupsen/logrus"
)

func main() {
	size := flag.Int("size", 4096, "bytes to allocate from the dma_coherent heap")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	log := logrus.StandardLogger()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	sg2002.Init()

	arg := &ion.AllocData{
		Len:        uint64(*size),
		HeapIDMask: 1 << ion.HeapDmaCoherent,
	}

	if err := sg2002.Ion.Dispatch(ion.ION_IOC_ALLOC, arg); err != nil {
		log.WithError(err).Fatal("alloc failed")
	}
	log.WithField("fd", arg.Fd).WithField("paddr", arg.Paddr).Info("allocated buffer")

	writeValidHeader(arg.Paddr, *size)

	submit := &tpu.SubmitDmabufArg{Fd: arg.Fd, SeqNo: 1}
	if _, err := sg2002.Tpu.Dispatch(tpu.CVITPU_IOC_SUBMIT_DMABUF, submit); err != nil {
		log.WithError(err).Fatal("submit failed")
	}

	wait := &tpu.WaitDmabufArg{SeqNo: 1}
	if _, err := sg2002.Tpu.Dispatch(tpu.CVITPU_IOC_WAIT_DMABUF, wait); err != nil {
		log.WithError(err).Fatal("wait failed")
	}
	log.WithField("ret", wait.Ret).Info("dmabuf run complete")

	free := &ion.HandleData{Handle: 1}
	if err := sg2002.Ion.Dispatch(ion.ION_IOC_FREE, free); err != nil {
		log.WithError(err).Fatal("free failed")
	}

	os.Exit(0)
}

// writeValidHeader stamps a minimal, magic-valid, zero-descriptor header
// at paddr so the demo run completes without firing either engine.
func writeValidHeader(paddr uint64, size int) {
	buf := make([]byte, tpu.HeaderSize)
	binary.LittleEndian.PutUint16(buf[0:2], tpu.HeaderMagic)
	sg2002.Coherent.Write(uintptr(paddr), 0, buf)
}
