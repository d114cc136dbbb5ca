package tpu

import (
	"encoding/binary"
)

// HeaderMagic is the required value of the header's first 16-bit word.
const HeaderMagic = 0xB5B5

// HeaderSize is the fixed size, in bytes, of the DMA header prefix.
const HeaderSize = 128

// CPUSyncDescSize is the fixed stride of a CpuSyncDesc.
const CPUSyncDescSize = 224

const strDataLen = (56 - 7) * 4 // 196

// Header is the 128-byte, little-endian, repr-C prefix of a user-supplied
// DMA command buffer. Decoded field by field with encoding/binary,
// little-endian.
type Header struct {
	MagicM        uint16
	MagicS        uint16
	DmabufSize    uint32
	CPUDescCount  uint32
	BDDescCount   uint32
	TdmaDescCount uint32
	TPUClkRate    uint32
	PMUBufSize    uint32
	PMUBufOffset  uint32
	ArrayBaseL    [8]uint32
	ArrayBaseH    [8]uint32
	Reserved      [8]uint32
}

// DecodeHeader parses the first HeaderSize bytes of buf into a Header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, newErr("decode_header", KindInvalidDmabuf, nil)
	}

	var h Header
	r := newByteReader(buf)

	h.MagicM = r.u16()
	h.MagicS = r.u16()
	h.DmabufSize = r.u32()
	h.CPUDescCount = r.u32()
	h.BDDescCount = r.u32()
	h.TdmaDescCount = r.u32()
	h.TPUClkRate = r.u32()
	h.PMUBufSize = r.u32()
	h.PMUBufOffset = r.u32()

	for i := 0; i < 8; i++ {
		h.ArrayBaseL[i] = r.u32()
		h.ArrayBaseH[i] = r.u32()
	}

	for i := 0; i < 8; i++ {
		h.Reserved[i] = r.u32()
	}

	return h, r.err
}

// IsValid reports whether the header's magic matches.
func (h Header) IsValid() bool {
	return h.MagicM == HeaderMagic
}

// HasValidPMU reports whether the PMU buffer fields describe an enabled,
// 16-byte-aligned ring.
func (h Header) HasValidPMU() bool {
	return h.PMUBufOffset != 0 && h.PMUBufSize != 0 &&
		h.PMUBufOffset&0xF == 0 && h.PMUBufSize&0xF == 0
}

// CPUSyncDesc is one fixed-stride descriptor following the header.
type CPUSyncDesc struct {
	OpType     uint32
	NumBD      uint32
	NumGDMA    uint32
	OffsetBD   uint32
	OffsetGDMA uint32
	Reserved   [2]uint32
	StrData    [strDataLen]byte
}

// DecodeCPUSyncDesc parses one CPUSyncDesc from buf.
func DecodeCPUSyncDesc(buf []byte) (CPUSyncDesc, error) {
	if len(buf) < CPUSyncDescSize {
		return CPUSyncDesc{}, newErr("decode_cpu_sync_desc", KindInvalidDmabuf, nil)
	}

	var d CPUSyncDesc
	r := newByteReader(buf)

	d.OpType = r.u32()
	d.NumBD = r.u32()
	d.NumGDMA = r.u32()
	d.OffsetBD = r.u32()
	d.OffsetGDMA = r.u32()
	d.Reserved[0] = r.u32()
	d.Reserved[1] = r.u32()
	copy(d.StrData[:], r.bytes(strDataLen))

	return d, r.err
}

type byteReader struct {
	buf []byte
	off int
	err error
}

func newByteReader(buf []byte) *byteReader {
	return &byteReader{buf: buf}
}

func (r *byteReader) u16() uint16 {
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *byteReader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *byteReader) bytes(n int) []byte {
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}
