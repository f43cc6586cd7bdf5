package fat12

import (
	"time"

	"github.com/fat12img/fat12img/blockdev"
	fatErrors "github.com/fat12img/fat12img/errors"
)

// FormatOptions controls how Format lays out a fresh volume. Zero values
// fall back to spec.md's conventional defaults (one sector per cluster,
// two FATs, a 224-entry root directory, media type 0xF8).
type FormatOptions struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	TableCount        uint8
	DirectoryEntries  uint16
	MediaType         uint8
	VolumeLabel       string
}

func (o FormatOptions) apply(b *BPB, totalSectors uint32) {
	if o.BytesPerSector != 0 {
		b.BytesPerSector = o.BytesPerSector
	}
	if o.SectorsPerCluster != 0 {
		b.SectorsPerCluster = o.SectorsPerCluster
	}
	if o.ReservedSectors != 0 {
		b.ReservedSectors = o.ReservedSectors
	}
	if o.TableCount != 0 {
		b.TableCount = o.TableCount
	}
	if o.DirectoryEntries != 0 {
		b.DirectoryEntries = o.DirectoryEntries
	}
	if o.MediaType != 0 {
		b.MediaType = o.MediaType
	}
	if o.VolumeLabel != "" {
		var label [11]byte
		for i := range label {
			label[i] = ' '
		}
		copy(label[:], o.VolumeLabel)
		b.Label = label
	}
	b.SectorsPerFAT = uint16(fatSizeForVolume(totalSectors, uint32(b.SectorsPerCluster)))
}

// FileSystem is the mounted state of a FAT12 volume: its boot sector, its
// in-memory FAT, and whichever directory is currently the working
// directory.
//
// FileSystem is not safe for concurrent use.
type FileSystem struct {
	dev        *blockdev.Device
	bpb        *BPB
	fat        *Table
	currentDir *Directory
}

// Format lays out a brand-new FAT12 volume on dev: a boot sector, two
// empty FAT copies, and an empty root directory.
func Format(dev *blockdev.Device, opts FormatOptions) error {
	totalSectors := uint32(dev.TotalSectors())
	bpb := NewDefaultBPB(totalSectors)
	opts.apply(bpb, totalSectors)

	raw, err := bpb.Serialize()
	if err != nil {
		return err
	}
	if err := dev.WriteSector(0, raw[:]); err != nil {
		return err
	}

	fatSizeBytes := uint(bpb.SectorsPerFAT) * uint(bpb.BytesPerSector)
	table := NewEmptyTable(fatSizeBytes, bpb.TotalClusters(), bpb.MediaType)
	for n := uint(0); n < uint(bpb.TableCount); n++ {
		if err := dev.WriteSectors(bpb.FatStart(n), uint(bpb.SectorsPerFAT), table.Bytes()); err != nil {
			return err
		}
	}

	root := NewRootDirectory(bpb)
	if err := root.Flush(dev, bpb, table); err != nil {
		return err
	}
	return nil
}

// Mount reads a volume's boot sector and its first FAT copy off dev and
// returns a FileSystem ready to use. The root directory is read and made
// the current directory before Mount returns; its loading is not deferred
// to first use.
func Mount(dev *blockdev.Device) (*FileSystem, error) {
	bootSector, err := dev.ReadSector(0)
	if err != nil {
		return nil, err
	}
	bpb, err := ParseBPB(bootSector)
	if err != nil {
		return nil, err
	}
	if !bpb.IsFat12() {
		return nil, fatErrors.ErrNotFat12.WithMessage("cluster count is out of FAT12 range")
	}

	dev.SetGeometry(uint(bpb.BytesPerSector), uint(bpb.TotalSectors()))

	fatBuf, err := dev.ReadSectors(bpb.FatStart(0), uint(bpb.SectorsPerFAT))
	if err != nil {
		return nil, err
	}
	table := NewTable(fatBuf, bpb.TotalClusters())

	fs := &FileSystem{dev: dev, bpb: bpb, fat: table}
	root, err := LoadDirectory(dev, bpb, table, 0)
	if err != nil {
		return nil, err
	}
	fs.currentDir = root
	return fs, nil
}

// Unmount flushes and releases a FileSystem's in-memory state. The
// underlying Device is left open; callers close it separately.
func (fs *FileSystem) Unmount() error {
	if err := fs.Flush(); err != nil {
		return err
	}
	fs.fat = nil
	fs.currentDir = nil
	fs.bpb = nil
	return nil
}

// BPB exposes the mounted volume's boot sector parameters.
func (fs *FileSystem) BPB() *BPB { return fs.bpb }

// SetDirectory changes the current working directory to node, which must
// be a directory entry previously returned by GetDirectoryList or GetNode.
func (fs *FileSystem) SetDirectory(node *Node) error {
	if !node.IsDirectory() {
		return fatErrors.ErrInvalidArg.WithMessage(node.Name + " is not a directory")
	}
	dir, err := LoadDirectory(fs.dev, fs.bpb, fs.fat, node.FirstCluster)
	if err != nil {
		return err
	}
	fs.currentDir = dir
	return nil
}

// SetRootDirectory returns to the volume's root directory.
func (fs *FileSystem) SetRootDirectory() error {
	dir, err := LoadDirectory(fs.dev, fs.bpb, fs.fat, 0)
	if err != nil {
		return err
	}
	fs.currentDir = dir
	return nil
}

// GetDirectoryList lists the current directory's live entries.
func (fs *FileSystem) GetDirectoryList() []*Node {
	return fs.currentDir.List()
}

// GetNode looks up a live entry by name in the current directory.
func (fs *FileSystem) GetNode(name string) (*Node, error) {
	node, found := fs.currentDir.FindByName(name)
	if !found {
		return nil, fatErrors.ErrNotFound.WithMessage(name)
	}
	return node, nil
}

// CreateFile creates an empty file in the current directory and flushes
// it, along with the FAT, to disk before returning.
func (fs *FileSystem) CreateFile(name string, attrs AttrSet) (*Node, error) {
	node, err := fs.currentDir.CreateEntry(fs.bpb, fs.fat, name, attrs&^AttrSet(AttrDirectory), time.Now())
	if err != nil {
		return nil, err
	}
	if err := fs.Flush(); err != nil {
		return nil, err
	}
	return node, nil
}

// CreateDir creates a subdirectory, seeded with "." and ".." entries, in
// the current directory, and flushes it, along with the FAT and the
// current directory, to disk before returning.
func (fs *FileSystem) CreateDir(name string) (*Node, error) {
	node, err := fs.currentDir.CreateEntry(fs.bpb, fs.fat, name, AttrSet(AttrDirectory), time.Now())
	if err != nil {
		return nil, err
	}

	child := SeedChildDirectory(fs.bpb, fs.fat, node.FirstCluster, fs.currentDir.FirstCluster, time.Now())
	if err := child.Flush(fs.dev, fs.bpb, fs.fat); err != nil {
		return nil, err
	}
	if err := fs.Flush(); err != nil {
		return nil, err
	}
	return node, nil
}

// Read returns the full contents of a file in the current directory.
func (fs *FileSystem) Read(name string) ([]byte, error) {
	node, err := fs.GetNode(name)
	if err != nil {
		return nil, err
	}
	if node.IsDirectory() {
		return nil, fatErrors.ErrInvalidArg.WithMessage(name + " is a directory")
	}

	data, err := fs.readClusterChain(node.FirstCluster)
	if err != nil {
		return nil, err
	}
	if uint32(len(data)) > node.Size {
		data = data[:node.Size]
	}
	return data, nil
}

func (fs *FileSystem) readClusterChain(first Cluster) ([]byte, error) {
	var out []byte
	for c := first; IsValidCluster(c); c = fs.fat.NextCluster(c) {
		chunk, err := fs.dev.ReadSectors(fs.bpb.SectorForCluster(c), uint(fs.bpb.SectorsPerCluster))
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// Write replaces a file's contents and resizes its cluster chain to fit,
// then flushes the FAT and current directory to disk before returning.
func (fs *FileSystem) Write(name string, data []byte) error {
	node, err := fs.GetNode(name)
	if err != nil {
		return err
	}
	if node.IsDirectory() {
		return fatErrors.ErrInvalidArg.WithMessage(name + " is a directory")
	}

	required := int(ClustersForSize(uint(len(data)), fs.bpb.BytesPerCluster()))
	newHead, err := fs.fat.ReallocateChain(node.FirstCluster, required)
	if err != nil {
		return err
	}
	node.FirstCluster = newHead
	node.Size = uint32(len(data))
	node.Modified = time.Now()
	node.dirty = true

	bytesPerCluster := fs.bpb.BytesPerCluster()
	offset := uint(0)
	for c := newHead; IsValidCluster(c); c = fs.fat.NextCluster(c) {
		end := offset + bytesPerCluster
		if end > uint(len(data)) {
			end = uint(len(data))
		}
		chunk := make([]byte, bytesPerCluster)
		if offset < uint(len(data)) {
			copy(chunk, data[offset:end])
		}
		if err := fs.dev.WriteSectors(fs.bpb.SectorForCluster(c), uint(fs.bpb.SectorsPerCluster), chunk); err != nil {
			return err
		}
		offset += bytesPerCluster
	}
	return fs.Flush()
}

// Remove deletes a file or empty subdirectory from the current directory
// and flushes the FAT and current directory to disk before returning.
func (fs *FileSystem) Remove(name string) error {
	if node, found := fs.currentDir.FindByName(name); found && node.IsDirectory() {
		child, err := LoadDirectory(fs.dev, fs.bpb, fs.fat, node.FirstCluster)
		if err != nil {
			return err
		}
		for _, n := range child.List() {
			if n.Name != "." && n.Name != ".." {
				return fatErrors.ErrInvalidArg.WithMessage(name + " is not empty")
			}
		}
	}
	if err := fs.currentDir.Remove(fs.fat, name); err != nil {
		return err
	}
	return fs.Flush()
}

// Flush writes both FAT copies and then the current directory back to
// disk, in that order. FAT-first matters: a crash between the two leaves
// either an allocated-but-unreferenced chain (a disk leak, recoverable)
// or, if reversed, a directory entry pointing at clusters the on-disk FAT
// still calls free (a double-allocation hazard).
func (fs *FileSystem) Flush() error {
	for n := uint(0); n < uint(fs.bpb.TableCount); n++ {
		if err := fs.dev.WriteSectors(fs.bpb.FatStart(n), uint(fs.bpb.SectorsPerFAT), fs.fat.Bytes()); err != nil {
			return err
		}
	}
	if fs.currentDir != nil {
		if err := fs.currentDir.Flush(fs.dev, fs.bpb, fs.fat); err != nil {
			return err
		}
	}
	return nil
}

// AbsoluteSectorsOfFile returns the absolute sector numbers making up a
// file's contents, in chain order. The GRUB installer uses this to locate
// stage2's sectors for block-list patching.
func (fs *FileSystem) AbsoluteSectorsOfFile(name string) ([]uint, error) {
	node, err := fs.GetNode(name)
	if err != nil {
		return nil, err
	}

	var sectors []uint
	for c := node.FirstCluster; IsValidCluster(c); c = fs.fat.NextCluster(c) {
		start := fs.bpb.SectorForCluster(c)
		for i := uint(0); i < uint(fs.bpb.SectorsPerCluster); i++ {
			sectors = append(sectors, start+i)
		}
	}
	return sectors, nil
}

// Device exposes the underlying block device, for components (like the
// GRUB installer) that need to patch raw sectors directly.
func (fs *FileSystem) Device() *blockdev.Device { return fs.dev }
