package tpu

import (
	"sync"
	"time"
	"unsafe"

	"github.com/cvitek/sg2002/devfs"
	"github.com/cvitek/sg2002/ion"
	"github.com/sirupsen/logrus"
)

// State is the TPU device's lifecycle state machine.
type State int

const (
	StateUninitialized State = iota
	StateIdle
	StateRunning
	StateSuspended
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Task is one submit/wait unit of work.
type Task struct {
	SeqNo       uint64
	DmabufFd    int32
	DmabufVaddr uintptr
	DmabufPaddr uintptr
	Ret         int32
}

// pollTimeout bounds the TIU busy-wait loop at roughly one second of
// polling iterations.
const pollTimeout = 1 * time.Second

// Device is the /dev/cva_tpu character device: ioctl dispatch over the
// TDMA/TIU platform, a task/done queue pair, and the ion registry used to
// resolve submitted fds to physical buffers.
type Device struct {
	mu sync.Mutex

	platform *Platform
	state    State
	runtime  RuntimeState

	taskList []Task
	doneList []Task

	ionFds *devfs.FDTable
	ionReg *ion.Registry

	log *logrus.Entry
}

// NewDevice builds a tpu device bound to the given engine register
// shims, the ion device's fd table (to resolve SUBMIT_DMABUF fds), and
// the ion buffer registry (to resolve handles to physical addresses).
func NewDevice(tdma *TDMA, tiu *TIU, ionFds *devfs.FDTable, ionReg *ion.Registry, log *logrus.Entry) *Device {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Device{
		platform: NewPlatform(tdma, tiu, log),
		state:    StateUninitialized,
		ionFds:   ionFds,
		ionReg:   ionReg,
		log:      log,
	}
}

// Init transitions Uninitialized -> Idle.
func (d *Device) Init() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state = StateIdle
}

// State returns the current lifecycle state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func bufferBytes(cpuAddr uintptr, size int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(cpuAddr)), size)
}

func (d *Device) resolveDmabuf(fd int32) (vaddr uintptr, paddr uintptr, size int, err error) {
	f, ferr := d.ionFds.Get(fd)
	if ferr != nil {
		return 0, 0, 0, newErr("resolve_dmabuf", KindInvalidDmabuf, ferr)
	}

	bf, ok := f.(*ion.BufferFile)
	if !ok {
		return 0, 0, 0, newErr("resolve_dmabuf", KindInvalidDmabuf, nil)
	}

	buf, gerr := d.ionReg.Get(bf.Handle())
	if gerr != nil {
		return 0, 0, 0, newErr("resolve_dmabuf", KindInvalidDmabuf, gerr)
	}

	return buf.DMAInfo.CPUAddr, buf.DMAInfo.BusAddr, buf.Size, nil
}

// resolveAsHandle mirrors the fd-as-handle shortcut the DMABUF_FLUSH_FD/
// DMABUF_INVLD_FD ioctls use: the fd number is reinterpreted directly as
// an ion handle, bypassing the fd table.
func (d *Device) resolveAsHandle(fd int32) (vaddr uintptr, size int, err error) {
	buf, gerr := d.ionReg.Get(ion.Handle(uint32(fd)))
	if gerr != nil {
		return 0, 0, newErr("resolve_as_handle", KindInvalidDmabuf, gerr)
	}

	return buf.DMAInfo.CPUAddr, buf.Size, nil
}

// SubmitDmabuf implements the SUBMIT_DMABUF ioctl: resolve fd to an ion
// buffer, push a task, and drain the task list synchronously.
func (d *Device) SubmitDmabuf(fd int32, seqNo uint64) error {
	if d.State() == StateUninitialized {
		return newErr("submit_dmabuf", KindNotInitialized, nil)
	}

	vaddr, paddr, _, err := d.resolveDmabuf(fd)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.taskList = append(d.taskList, Task{
		SeqNo:       seqNo,
		DmabufFd:    fd,
		DmabufVaddr: vaddr,
		DmabufPaddr: paddr,
	})
	d.mu.Unlock()

	d.drainTaskList()

	return nil
}

// drainTaskList pops tasks one at a time, runs them through the platform
// control loop with a busy-wait IRQ/timeout pair, and files each result
// onto the done list.
func (d *Device) drainTaskList() {
	for {
		d.mu.Lock()
		if len(d.taskList) == 0 {
			d.mu.Unlock()
			return
		}

		task := d.taskList[0]
		d.taskList = d.taskList[1:]

		d.platform.ResyncCmdID()
		d.runtime.IRQReceived = false
		d.state = StateRunning
		d.mu.Unlock()

		_, _, size, err := d.resolveDmabuf(task.DmabufFd)
		if err != nil {
			task.Ret = -1
		} else {
			buf := bufferBytes(task.DmabufVaddr, size)

			start := time.Now()
			waitIRQ := func() error {
				for !d.irqReceived() {
					if time.Since(start) > pollTimeout {
						return newErr("wait_irq", KindTimeout, nil)
					}
					cpuRelax()
				}
				return nil
			}
			timeoutCheck := func() bool {
				return time.Since(start) > pollTimeout
			}

			if err := d.platform.RunDmabuf(buf, task.DmabufPaddr, &d.runtime, waitIRQ, timeoutCheck); err != nil {
				task.Ret = -1
			} else {
				task.Ret = 0
			}
		}

		d.mu.Lock()
		d.state = StateIdle
		d.doneList = append(d.doneList, task)
		d.mu.Unlock()
	}
}

func (d *Device) irqReceived() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runtime.IRQReceived
}

// WaitDmabuf implements WAIT_DMABUF: pop the matching done entry. On a
// miss it returns an error and ret is set to -1.
func (d *Device) WaitDmabuf(seqNo uint64) (ret int32, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, t := range d.doneList {
		if t.SeqNo == seqNo {
			d.doneList = append(d.doneList[:i], d.doneList[i+1:]...)
			return t.Ret, nil
		}
	}

	return -1, newErr("wait_dmabuf", KindInvalidState, nil)
}

// Suspend backs up registers and transitions Idle -> Suspended. Calling it
// again while already Suspended is a no-op success.
func (d *Device) Suspend() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateSuspended {
		return nil
	}
	if d.state != StateIdle {
		return newErr("suspend", KindInvalidState, nil)
	}

	d.runtime.RegBackup = d.platform.BackupRegisters()
	d.state = StateSuspended

	return nil
}

// Resume is only valid from Suspended: it restores registers and
// transitions to Idle.
func (d *Device) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateSuspended {
		return newErr("resume", KindInvalidState, nil)
	}

	d.platform.RestoreRegisters(d.runtime.RegBackup)
	d.state = StateIdle

	return nil
}

// Reset resynchronizes command ids, clears runtime state, and forces the
// device to Idle from any state.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.platform.ResyncCmdID()
	d.runtime = RuntimeState{}
	d.state = StateIdle
}
