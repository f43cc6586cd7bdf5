// Package grub installs a legacy two-stage GRUB boot loader onto a
// mounted FAT12 volume: it patches the stage1 boot sector with the
// volume's BPB and drive geometry, writes stage2 into an install
// directory, and patches stage2's block-list records so it can
// chain-load the rest of itself off disk.
package grub

import (
	fatErrors "github.com/fat12img/fat12img/errors"
)

// Compatibility version this installer understands. Anything else fails
// closed with ErrGrubIncompatible.
const (
	compatMajor = 3
	compatMinor = 2
)

// Byte offsets within stage1, per the legacy GRUB boot sector layout.
const (
	stage1Size               = 512
	stage1VersionOffset      = 0x3E
	stage1BootDriveOffset    = 0x40
	stage1ForceLBAOffset     = 0x41
	stage1StageAddrOffset    = 0x42
	stage1StageSectorOffset  = 0x44
	stage1StageSegmentOffset = 0x48
	stage1BootDriveChkOffset = 0x4B
	stage1SignatureOffset    = 0x1FE

	bpbCopyStart = 0x03
	bpbCopyEnd   = 0x3E
	mbrCopyStart = 0x1B8
	mbrCopyEnd   = 0x1FE
)

// Byte offsets within stage2 used for the compatibility check.
const (
	stage2VersionOffset = 0x206
	stage2IDOffset      = 0x210
	stage2IDExpected    = 0x00
)

// checkCompatibility validates that stage1/stage2 carry the compatibility
// version this installer targets, per spec.md §4.F. Any mismatch is
// reported as ErrGrubIncompatible.
func checkCompatibility(stage1, stage2 []byte) error {
	if len(stage1) != stage1Size {
		return fatErrors.ErrGrubIncompatible.WithMessage("stage1 must be exactly 512 bytes")
	}
	if stage1[stage1VersionOffset] != compatMajor || stage1[stage1VersionOffset+1] != compatMinor {
		return fatErrors.ErrGrubIncompatible.WithMessage("stage1 compatibility version mismatch")
	}

	if len(stage2) <= stage2IDOffset {
		return fatErrors.ErrGrubIncompatible.WithMessage("stage2 is too short to inspect")
	}
	if stage2[stage2VersionOffset] != compatMajor || stage2[stage2VersionOffset+1] != compatMinor {
		return fatErrors.ErrGrubIncompatible.WithMessage("stage2 compatibility version mismatch")
	}
	if stage2[stage2IDOffset] != stage2IDExpected {
		return fatErrors.ErrGrubIncompatible.WithMessage("stage2 identifier byte mismatch")
	}
	return nil
}
