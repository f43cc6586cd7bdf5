// Package fat12 implements the on-disk structures and operations of a FAT12
// filesystem: the BIOS Parameter Block, the 12-bit packed file allocation
// table, the 8.3 short-name codec, and the directory entry cache that sits
// on top of them.
package fat12

import (
	"bytes"
	"encoding/binary"
	"fmt"

	fatErrors "github.com/fat12img/fat12img/errors"
	"github.com/noxer/bytewriter"
)

// BPBSize is the size, in bytes, of a FAT12 boot sector: the BPB plus boot
// code plus the 0x55AA signature.
const BPBSize = 512

// BootSignature is the two bytes that must appear at offset 0x1FE of every
// valid boot sector.
var BootSignature = [2]byte{0x55, 0xAA}

// ExtendedBootSignature marks the presence of the volume ID/label/system-id
// fields that follow the base BPB.
const ExtendedBootSignature = 0x29

// BPB is the BIOS Parameter Block of a FAT12 volume, laid out exactly as it
// appears in the first sector of the image.
type BPB struct {
	Jump              [3]byte
	OEMName           [8]byte
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	TableCount        uint8
	DirectoryEntries  uint16
	TotalSectors16    uint16
	MediaType         uint8
	SectorsPerFAT     uint16
	SectorsPerTrack   uint16
	Heads             uint16
	HiddenSectors     uint32
	TotalSectors32    uint32
	Drive             uint8
	NTReserved        uint8
	Signature         uint8
	VolumeID          uint32
	Label             [11]byte
	SystemID          [8]byte
	BootCode          [448]byte
	BootSig           [2]byte
}

// NewDefaultBPB returns a BPB populated with the conventional defaults
// spec.md's Format operation uses: 512-byte sectors, one sector per
// cluster, two FATs, a 224-entry root directory, and media type 0xF8.
func NewDefaultBPB(totalSectors uint32) *BPB {
	b := &BPB{
		OEMName:           [8]byte{'F', 'A', 'T', '1', '2', 'I', 'M', 'G'},
		BytesPerSector:    512,
		SectorsPerCluster: 1,
		ReservedSectors:   1,
		TableCount:        2,
		DirectoryEntries:  224,
		MediaType:         0xF8,
		Drive:             0x80,
		Signature:         ExtendedBootSignature,
		SystemID:          [8]byte{'F', 'A', 'T', '1', '2', ' ', ' ', ' '},
		BootSig:           BootSignature,
	}
	copy(b.Label[:], "NO NAME    ")
	if totalSectors <= 0xFFFF {
		b.TotalSectors16 = uint16(totalSectors)
	} else {
		b.TotalSectors32 = totalSectors
	}
	b.SectorsPerFAT = uint16(fatSizeForVolume(totalSectors, uint32(b.SectorsPerCluster)))
	return b
}

// fatSizeForVolume estimates the sectors needed for one copy of the FAT,
// given a target volume size. FAT12 packs three bytes per two clusters.
func fatSizeForVolume(totalSectors, sectorsPerCluster uint32) uint32 {
	approxClusters := totalSectors / sectorsPerCluster
	fatBytes := (approxClusters*3 + 1) / 2
	return (fatBytes + 511) / 512
}

// Serialize packs the BPB into its 512-byte on-disk representation.
func (b *BPB) Serialize() ([BPBSize]byte, error) {
	var out [BPBSize]byte
	w := bytewriter.New(out[:])

	fields := []any{
		b.Jump, b.OEMName, b.BytesPerSector, b.SectorsPerCluster,
		b.ReservedSectors, b.TableCount, b.DirectoryEntries, b.TotalSectors16,
		b.MediaType, b.SectorsPerFAT, b.SectorsPerTrack, b.Heads,
		b.HiddenSectors, b.TotalSectors32, b.Drive, b.NTReserved,
		b.Signature, b.VolumeID, b.Label, b.SystemID, b.BootCode, b.BootSig,
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return out, fatErrors.ErrIO.Wrap(err)
		}
	}
	return out, nil
}

// ParseBPB decodes a 512-byte boot sector into a BPB, validating the
// trailing 0x55AA signature as it goes.
func ParseBPB(raw []byte) (*BPB, error) {
	if len(raw) != BPBSize {
		return nil, fatErrors.ErrInvalidArg.WithMessage(
			fmt.Sprintf("boot sector must be %d bytes, got %d", BPBSize, len(raw)))
	}

	b := &BPB{}
	r := bytes.NewReader(raw)
	fields := []any{
		&b.Jump, &b.OEMName, &b.BytesPerSector, &b.SectorsPerCluster,
		&b.ReservedSectors, &b.TableCount, &b.DirectoryEntries, &b.TotalSectors16,
		&b.MediaType, &b.SectorsPerFAT, &b.SectorsPerTrack, &b.Heads,
		&b.HiddenSectors, &b.TotalSectors32, &b.Drive, &b.NTReserved,
		&b.Signature, &b.VolumeID, &b.Label, &b.SystemID, &b.BootCode, &b.BootSig,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return nil, fatErrors.ErrIO.Wrap(err)
		}
	}

	if b.BootSig != BootSignature {
		return nil, fatErrors.ErrNotFat12.WithMessage("missing 0x55AA boot signature")
	}
	if b.BytesPerSector == 0 || b.SectorsPerCluster == 0 || b.TableCount == 0 {
		return nil, fatErrors.ErrNotFat12.WithMessage("degenerate BPB geometry")
	}
	return b, nil
}

// TotalSectors returns whichever of TotalSectors16/TotalSectors32 is
// populated, per the usual FAT convention of falling back to the 32-bit
// field when the volume is too large for 16 bits.
func (b *BPB) TotalSectors() uint32 {
	if b.TotalSectors16 != 0 {
		return uint32(b.TotalSectors16)
	}
	return b.TotalSectors32
}

// FatStart returns the first sector of the n'th FAT copy (0-indexed).
func (b *BPB) FatStart(n uint) uint {
	return uint(b.ReservedSectors) + n*uint(b.SectorsPerFAT)
}

// RootDirStart returns the first sector of the fixed-size root directory
// region, immediately following every FAT copy.
func (b *BPB) RootDirStart() uint {
	return b.FatStart(uint(b.TableCount))
}

// RootDirSectors returns the number of sectors occupied by the root
// directory region.
func (b *BPB) RootDirSectors() uint {
	bytesNeeded := uint(b.DirectoryEntries) * DirentSize
	return (bytesNeeded + uint(b.BytesPerSector) - 1) / uint(b.BytesPerSector)
}

// DataStart returns the first sector of the cluster data region.
func (b *BPB) DataStart() uint {
	return b.RootDirStart() + b.RootDirSectors()
}

// BytesPerCluster returns the cluster size in bytes.
func (b *BPB) BytesPerCluster() uint {
	return uint(b.BytesPerSector) * uint(b.SectorsPerCluster)
}

// TotalClusters returns the number of addressable data clusters, i.e. the
// count of valid cluster IDs in the range [2, TotalClusters()+1].
func (b *BPB) TotalClusters() uint {
	dataSectors := b.TotalSectors() - uint32(b.DataStart())
	return uint(dataSectors) / uint(b.SectorsPerCluster)
}

// SectorForCluster maps a cluster ID to its first absolute sector. Cluster
// 0 is the conventional marker for the root directory and maps to
// RootDirStart; callers are expected to special-case it rather than walk
// the FAT chain for the root.
func (b *BPB) SectorForCluster(c Cluster) uint {
	if c == 0 {
		return b.RootDirStart()
	}
	return b.DataStart() + (uint(c)-2)*uint(b.SectorsPerCluster)
}

// IsFat12 reports whether the volume's cluster count falls within the
// FAT12 range (fewer than 4085 clusters, per the classic FAT family
// dividing line).
func (b *BPB) IsFat12() bool {
	return b.TotalClusters() < 4085
}
