package grub

import (
	"encoding/binary"

	"github.com/hashicorp/go-multierror"

	fatErrors "github.com/fat12img/fat12img/errors"
)

// blockListRecordSize is the size, in bytes, of one (sector, length,
// segment) block-list record.
const blockListRecordSize = 8

// blockListFloor is the lowest offset into stage2's first sector this
// installer will use for block-list records, leaving room for stage2's
// own bootstrap code at the front of the sector.
const blockListFloor = 0x20

// segmentParagraphsPerSector is how far the real-mode load segment
// advances for each additional 512-byte sector (512 / 16).
const segmentParagraphsPerSector = stage1Size / 16

// patchBlockList walks the sectors following stage2's first one, from
// last to first, writing an 8-byte block-list record for each into the
// tail of stage2's first 512 bytes. Each record holds the sector's
// absolute number, a run length of one sector, and the real-mode segment
// stage1 should load it at, so stage1 can chain-load the rest of stage2
// off disk.
func patchBlockList(stage2 []byte, sectors []uint, installAddr uint32) error {
	if len(sectors) <= 1 {
		return nil
	}
	extra := sectors[1:]

	var errs *multierror.Error
	offset := stage1Size - blockListRecordSize
	baseSegment := uint16(installAddr >> 4)

	for i := len(extra) - 1; i >= 0; i-- {
		if offset < blockListFloor {
			errs = multierror.Append(errs, fatErrors.ErrNoSpace.WithMessage(
				"stage2 block-list region exhausted before all sectors were recorded"))
			break
		}

		segment := baseSegment + uint16(i+1)*segmentParagraphsPerSector
		binary.LittleEndian.PutUint32(stage2[offset:], uint32(extra[i]))
		binary.LittleEndian.PutUint16(stage2[offset+4:], 1)
		binary.LittleEndian.PutUint16(stage2[offset+6:], segment)
		offset -= blockListRecordSize
	}

	return errs.ErrorOrNil()
}
