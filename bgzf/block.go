package bgzf

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// blockHeader is the decoded form of a BGZF block's gzip header. Only
// the fields the codec needs to act on are retained; the remaining
// gzip header bytes (MTIME, XFL, OS) are written as zero and ignored
// on read, matching every BGZF implementation in the wild.
type blockHeader struct {
	// bsize is BSIZE-1 from the BC subfield: the total compressed
	// block length, header and footer included, minus one.
	bsize uint16
}

// writeBlockHeader encodes the fixed 18-byte BGZF block header into
// buf, which must have length >= blockHeaderLen, recording bsize as
// the total on-disk length of the block minus one.
func writeBlockHeader(buf []byte, bsize uint16) {
	buf[0], buf[1], buf[2], buf[3] = 0x1f, 0x8b, 0x08, 0x04
	// bytes 4-7: MTIME, zeroed
	buf[4], buf[5], buf[6], buf[7] = 0, 0, 0, 0
	buf[8] = 0  // XFL
	buf[9] = 0xff // OS: unknown
	binary.LittleEndian.PutUint16(buf[10:12], 6) // XLEN
	buf[12], buf[13] = 'B', 'C'
	binary.LittleEndian.PutUint16(buf[14:16], 2) // SLEN
	binary.LittleEndian.PutUint16(buf[16:18], bsize)
}

// readBlockHeader validates and decodes a BGZF block header from buf,
// which must hold at least blockHeaderLen bytes.
func readBlockHeader(buf []byte) (blockHeader, error) {
	if len(buf) < blockHeaderLen {
		return blockHeader{}, fmt.Errorf("bgzf: short block header: %w", ErrHeader)
	}
	if buf[0] != 0x1f || buf[1] != 0x8b {
		return blockHeader{}, fmt.Errorf("bgzf: bad magic bytes: %w", ErrHeader)
	}
	if buf[2] != 0x08 {
		return blockHeader{}, fmt.Errorf("bgzf: unsupported compression method: %w", ErrHeader)
	}
	const fextra = 0x04
	if buf[3]&fextra == 0 {
		return blockHeader{}, fmt.Errorf("bgzf: FEXTRA flag not set: %w", ErrHeader)
	}
	xlen := binary.LittleEndian.Uint16(buf[10:12])
	if xlen < 6 {
		return blockHeader{}, fmt.Errorf("bgzf: extra field too short: %w", ErrHeader)
	}
	// Walk the extra subfields looking for "BC"; BGZF writers always
	// emit it first, but a permissive reader should not assume that.
	extra := buf[12 : 12+int(xlen)]
	var bsize uint16
	found := false
	for len(extra) >= 4 {
		si1, si2 := extra[0], extra[1]
		slen := int(binary.LittleEndian.Uint16(extra[2:4]))
		if len(extra) < 4+slen {
			break
		}
		if si1 == 'B' && si2 == 'C' && slen == 2 {
			bsize = binary.LittleEndian.Uint16(extra[4:6])
			found = true
			break
		}
		extra = extra[4+slen:]
	}
	if !found {
		return blockHeader{}, fmt.Errorf("bgzf: missing BC subfield: %w", ErrHeader)
	}
	return blockHeader{bsize: bsize}, nil
}

// blockFooter is the trailing CRC32/ISIZE pair of a gzip member.
type blockFooter struct {
	crc32 uint32
	isize uint32
}

func writeBlockFooter(buf []byte, data []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], crc32.ChecksumIEEE(data))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(data)))
}

func readBlockFooter(buf []byte) blockFooter {
	return blockFooter{
		crc32: binary.LittleEndian.Uint32(buf[0:4]),
		isize: binary.LittleEndian.Uint32(buf[4:8]),
	}
}

// validate checks a decompressed block's data against its footer.
func (f blockFooter) validate(data []byte) error {
	if f.isize != uint32(len(data)) {
		return fmt.Errorf("bgzf: isize mismatch: %w", ErrBlockSize)
	}
	if f.crc32 != crc32.ChecksumIEEE(data) {
		return fmt.Errorf("bgzf: crc32 mismatch: %w", ErrBlockSize)
	}
	return nil
}

// isEOFBlock reports whether buf (as read from the start of a
// candidate block) begins with the canonical empty EOF marker block;
// a buf shorter than that block is never a match.
func isEOFBlock(buf []byte) bool {
	if len(buf) < len(eofBlock) {
		return false
	}
	for i, b := range eofBlock {
		if buf[i] != b {
			return false
		}
	}
	return true
}
