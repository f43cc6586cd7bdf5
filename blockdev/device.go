// Package blockdev implements a virtual block device: random-access,
// sector-aligned I/O over an image file that simulates a floppy or small
// hard-disk.
package blockdev

import (
	"fmt"
	"io"
	"os"

	fatErrors "github.com/fat12img/fat12img/errors"
)

// MediaKind identifies the physical media a Device represents. It's threaded
// through to the GRUB installer, which patches stage1 differently for hard
// disks. Formatting does not consult it.
type MediaKind uint8

const (
	MediaFloppy   = MediaKind(0x00)
	MediaHardDisk = MediaKind(0x80)
)

// DefaultSectorSize is the sector size assumed until Init or a mount
// operation overrides it.
const DefaultSectorSize = 512

// Device is a virtual block device backed by a flat image file. It owns the
// underlying file handle exclusively: once a Device is constructed, callers
// must go through it for all I/O on that file.
//
// Device is not safe for concurrent use.
type Device struct {
	path       string
	file       *os.File
	sectorSize uint
	media      MediaKind
	sectors    uint
}

// Create opens (or creates) the image file at path and returns a Device
// wrapping it. The device is not usable for reads/writes of a particular
// size until Init has been called at least once in the file's lifetime, or
// sectors have previously been determined by Mount-time BPB parsing via
// SetGeometry.
func Create(path string, media MediaKind) (*Device, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fatErrors.ErrIO.Wrap(err)
	}

	dev := &Device{
		path:       path,
		file:       file,
		sectorSize: DefaultSectorSize,
		media:      media,
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fatErrors.ErrIO.Wrap(err)
	}
	if info.Size() > 0 {
		dev.sectors = uint(info.Size()) / dev.sectorSize
	}

	return dev, nil
}

// Media returns the media kind the device was created with.
func (d *Device) Media() MediaKind { return d.media }

// SectorSize returns the size of a single sector, in bytes.
func (d *Device) SectorSize() uint { return d.sectorSize }

// TotalSectors returns the number of sectors currently addressable on the
// device.
func (d *Device) TotalSectors() uint { return d.sectors }

// SetGeometry overrides the sector size and count without touching the
// underlying file. Used after mounting an existing image, once the BPB has
// told us its real geometry.
func (d *Device) SetGeometry(sectorSize, sectorCount uint) {
	d.sectorSize = sectorSize
	d.sectors = sectorCount
}

// Init truncates the image to sectorCount sectors of sectorSize bytes each
// and zero-fills it, exactly as spec.md's block device initialization
// requires. Any existing contents are discarded.
func (d *Device) Init(sectorSize, sectorCount uint) error {
	if sectorSize == 0 {
		return fatErrors.ErrInvalidArg.WithMessage("sector size must be nonzero")
	}

	totalBytes := int64(sectorSize) * int64(sectorCount)
	if err := d.file.Truncate(0); err != nil {
		return fatErrors.ErrIO.Wrap(err)
	}
	if _, err := d.file.Seek(0, io.SeekStart); err != nil {
		return fatErrors.ErrIO.Wrap(err)
	}

	zeroSector := make([]byte, sectorSize)
	for i := uint(0); i < sectorCount; i++ {
		if _, err := d.file.Write(zeroSector); err != nil {
			return fatErrors.ErrIO.Wrap(err)
		}
	}

	if err := d.file.Truncate(totalBytes); err != nil {
		return fatErrors.ErrIO.Wrap(err)
	}

	d.sectorSize = sectorSize
	d.sectors = sectorCount
	return nil
}

// checkRange is a precondition check: violating it is a programmer error,
// not a recoverable condition, so it panics rather than returning an error.
func (d *Device) checkRange(idx, n uint) {
	if idx >= d.sectors {
		panic(fmt.Sprintf("blockdev: sector index %d out of range [0, %d)", idx, d.sectors))
	}
	if idx+n > d.sectors {
		panic(fmt.Sprintf(
			"blockdev: range [%d, %d) extends past end of device (%d sectors)",
			idx, idx+n, d.sectors))
	}
}

// ReadSector returns the bytes of a single sector.
func (d *Device) ReadSector(idx uint) ([]byte, error) {
	return d.ReadSectors(idx, 1)
}

// ReadSectors returns the concatenated bytes of n consecutive sectors
// starting at idx.
func (d *Device) ReadSectors(idx, n uint) ([]byte, error) {
	d.checkRange(idx, n)

	buffer := make([]byte, d.sectorSize*n)
	offset := int64(idx) * int64(d.sectorSize)
	if _, err := d.file.ReadAt(buffer, offset); err != nil && err != io.EOF {
		return nil, fatErrors.ErrIO.Wrap(err)
	}
	return buffer, nil
}

// WriteSector writes exactly one sector's worth of bytes at idx.
func (d *Device) WriteSector(idx uint, data []byte) error {
	return d.WriteSectors(idx, 1, data)
}

// WriteSectors writes n sectors' worth of bytes starting at idx. data must
// be exactly n*SectorSize() bytes. The write is flushed to the underlying
// file before returning.
func (d *Device) WriteSectors(idx, n uint, data []byte) error {
	d.checkRange(idx, n)

	expected := int(d.sectorSize * n)
	if len(data) != expected {
		panic(fmt.Sprintf(
			"blockdev: write of %d sectors needs exactly %d bytes, got %d",
			n, expected, len(data)))
	}

	offset := int64(idx) * int64(d.sectorSize)
	if _, err := d.file.WriteAt(data, offset); err != nil {
		return fatErrors.ErrIO.Wrap(err)
	}
	return d.file.Sync()
}

// Destroy releases the device's ownership of the file handle, closing it.
// The Device must not be used afterward.
func (d *Device) Destroy() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	if err != nil {
		return fatErrors.ErrIO.Wrap(err)
	}
	return nil
}

// Path returns the path to the backing image file.
func (d *Device) Path() string { return d.path }

// File exposes the underlying *os.File for callers that need an
// io.ReaderAt/io.WriterAt directly rather than going through sector-sized
// reads.
func (d *Device) File() *os.File { return d.file }
