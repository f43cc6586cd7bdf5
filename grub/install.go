package grub

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/xaionaro-go/bytesextra"

	"github.com/fat12img/fat12img/blockdev"
	fatErrors "github.com/fat12img/fat12img/errors"
	"github.com/fat12img/fat12img/fat12"
)

// stage2InstallAddress is the real-mode address GRUB loads stage2 at.
const stage2InstallAddress = 0x8000

// defaultInstallDir is where stage2 is placed when Config.InstallPath is
// empty. It's a single path component directly under the root, since this
// implementation (like its source) only supports navigating into an
// immediate child of root.
const defaultInstallDir = "GRUB"

// Config carries the GRUB installer's inputs beyond the raw stage1/stage2
// bytes. ConfigFile/OSName/KernelName are threaded through for future
// menu-generation use and aren't consumed by this minimum-viable install.
type Config struct {
	InstallPath string
	ConfigFile  string
	OSName      string
	KernelName  string
}

func (c Config) installDir() string {
	dir := strings.Trim(c.InstallPath, "/")
	if dir == "" {
		return defaultInstallDir
	}
	return dir
}

// Install reads stage1/stage2 from sourceDir and installs GRUB onto fs,
// following spec.md §4.F's eight-step procedure: load, patch the BPB/MBR
// region into stage1, verify the boot signature, patch drive/LBA bytes,
// place stage2 on the volume, patch stage2's location into stage1, patch
// stage2's block-list records, and write everything back.
//
// Only a single path component under root is supported for
// Config.InstallPath, matching this filesystem's root-child-only
// subdirectory navigation.
func Install(fs *fat12.FileSystem, sourceDir string, cfg Config) error {
	stage1, err := os.ReadFile(filepath.Join(sourceDir, "stage1"))
	if err != nil {
		return fatErrors.ErrGrubMissingFile.Wrap(err)
	}
	stage2, err := os.ReadFile(filepath.Join(sourceDir, "stage2"))
	if err != nil {
		return fatErrors.ErrGrubMissingFile.Wrap(err)
	}

	if err := checkCompatibility(stage1, stage2); err != nil {
		return err
	}

	if err := patchBPBRegion(fs, stage1); err != nil {
		return err
	}
	if err := patchDriveAndLBA(fs, stage1); err != nil {
		return err
	}

	sectors, err := placeStage2(fs, cfg, stage2)
	if err != nil {
		return err
	}

	patchStage2Location(stage1, sectors)

	if err := patchBlockList(stage2, sectors, stage2InstallAddress); err != nil {
		return err
	}

	if err := fs.Device().WriteSector(0, stage1); err != nil {
		return err
	}
	if err := writeStage2Sectors(fs, sectors, stage2); err != nil {
		return err
	}
	return fs.Flush()
}

// patchBPBRegion implements steps 2 and 3: copy the current volume's BPB
// (and, for hard disks, the MBR partition table) into stage1, then verify
// the boot signature still reads back correctly.
func patchBPBRegion(fs *fat12.FileSystem, stage1 []byte) error {
	sector0, err := fs.Device().ReadSector(0)
	if err != nil {
		return err
	}

	stream := bytesextra.NewReadWriteSeeker(stage1)
	if _, err := stream.Seek(bpbCopyStart, 0); err != nil {
		return fatErrors.ErrIO.Wrap(err)
	}
	if _, err := stream.Write(sector0[bpbCopyStart:bpbCopyEnd]); err != nil {
		return fatErrors.ErrIO.Wrap(err)
	}

	if fs.Device().Media() == blockdev.MediaHardDisk {
		if _, err := stream.Seek(mbrCopyStart, 0); err != nil {
			return fatErrors.ErrIO.Wrap(err)
		}
		if _, err := stream.Write(sector0[mbrCopyStart:mbrCopyEnd]); err != nil {
			return fatErrors.ErrIO.Wrap(err)
		}
	}

	if stage1[stage1SignatureOffset] != 0x55 || stage1[stage1SignatureOffset+1] != 0xAA {
		return fatErrors.ErrGrubIncompatible.WithMessage("stage1 lost its boot signature after BPB patch")
	}
	return nil
}

// patchDriveAndLBA implements step 4: record the media kind, clear the
// force-LBA flag, and for hard disks patch in the buggy-BIOS workaround
// GRUB applies to its own boot-drive check.
func patchDriveAndLBA(fs *fat12.FileSystem, stage1 []byte) error {
	stage1[stage1BootDriveOffset] = uint8(fs.Device().Media())
	stage1[stage1ForceLBAOffset] = 0x00

	if fs.Device().Media() == blockdev.MediaHardDisk {
		stage1[stage1BootDriveChkOffset] = 0x90
		stage1[stage1BootDriveChkOffset+1] = 0x90
	}
	return nil
}

// placeStage2 implements step 5: ensure the install directory exists,
// switch into it, and write stage2 as "STAGE2". It returns the absolute
// sector numbers backing the written file.
func placeStage2(fs *fat12.FileSystem, cfg Config, stage2 []byte) ([]uint, error) {
	if err := fs.SetRootDirectory(); err != nil {
		return nil, err
	}

	dirName := cfg.installDir()
	dirNode, err := fs.GetNode(dirName)
	if err != nil {
		if !errors.Is(err, fatErrors.ErrNotFound) {
			return nil, err
		}
		dirNode, err = fs.CreateDir(dirName)
		if err != nil {
			return nil, err
		}
	}
	if err := fs.SetDirectory(dirNode); err != nil {
		return nil, err
	}

	if _, err := fs.GetNode("STAGE2"); err != nil {
		if !errors.Is(err, fatErrors.ErrNotFound) {
			return nil, err
		}
		if _, err := fs.CreateFile("STAGE2", 0); err != nil {
			return nil, err
		}
	}
	if err := fs.Write("STAGE2", stage2); err != nil {
		return nil, err
	}
	if err := fs.Flush(); err != nil {
		return nil, err
	}

	return fs.AbsoluteSectorsOfFile("STAGE2")
}

// patchStage2Location implements step 6: record stage2's first sector,
// the real-mode install address, and its segment form into stage1.
func patchStage2Location(stage1 []byte, sectors []uint) {
	var firstSector uint32
	if len(sectors) > 0 {
		firstSector = uint32(sectors[0])
	}
	binary.LittleEndian.PutUint32(stage1[stage1StageSectorOffset:], firstSector)
	binary.LittleEndian.PutUint16(stage1[stage1StageAddrOffset:], uint16(stage2InstallAddress))
	binary.LittleEndian.PutUint16(stage1[stage1StageSegmentOffset:], uint16(stage2InstallAddress>>4))
}

// writeStage2Sectors implements the stage2 half of step 8: write the
// patched stage2 bytes back over the exact sectors it already occupies.
func writeStage2Sectors(fs *fat12.FileSystem, sectors []uint, data []byte) error {
	bps := uint(fs.BPB().BytesPerSector)
	for i, sector := range sectors {
		start := uint(i) * bps
		if start >= uint(len(data)) {
			break
		}
		end := start + bps
		if end > uint(len(data)) {
			end = uint(len(data))
		}

		chunk := make([]byte, bps)
		copy(chunk, data[start:end])
		if err := fs.Device().WriteSector(sector, chunk); err != nil {
			return err
		}
	}
	return nil
}
