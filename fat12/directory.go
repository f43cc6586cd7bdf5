package fat12

import (
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/fat12img/fat12img/blockdev"
	fatErrors "github.com/fat12img/fat12img/errors"
)

// Directory is the in-memory cache of a single directory's slots: the root
// (FirstCluster == 0, fixed-size, can't grow) or a subdirectory (a cluster
// chain that grows one cluster at a time as it fills up).
type Directory struct {
	FirstCluster Cluster
	nodes        []*Node
}

// readDirectoryRegion reads every byte backing a directory, be it the
// fixed root region or a subdirectory's cluster chain.
func readDirectoryRegion(dev *blockdev.Device, bpb *BPB, fat *Table, firstCluster Cluster) ([]byte, error) {
	if firstCluster == 0 {
		return dev.ReadSectors(bpb.RootDirStart(), bpb.RootDirSectors())
	}

	var out []byte
	c := firstCluster
	for IsValidCluster(c) {
		chunk, err := dev.ReadSectors(bpb.SectorForCluster(c), uint(bpb.SectorsPerCluster))
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		c = fat.NextCluster(c)
	}
	return out, nil
}

// writeDirectoryRegion is readDirectoryRegion's inverse.
func writeDirectoryRegion(dev *blockdev.Device, bpb *BPB, fat *Table, firstCluster Cluster, data []byte) error {
	if firstCluster == 0 {
		return dev.WriteSectors(bpb.RootDirStart(), bpb.RootDirSectors(), data)
	}

	bytesPerCluster := bpb.BytesPerCluster()
	c := firstCluster
	offset := uint(0)
	for IsValidCluster(c) {
		end := offset + bytesPerCluster
		if end > uint(len(data)) {
			end = uint(len(data))
		}
		chunk := make([]byte, bytesPerCluster)
		copy(chunk, data[offset:end])
		if err := dev.WriteSectors(bpb.SectorForCluster(c), uint(bpb.SectorsPerCluster), chunk); err != nil {
			return err
		}
		offset += bytesPerCluster
		c = fat.NextCluster(c)
	}
	return nil
}

// LoadDirectory reads and decodes every slot of a directory's backing
// region, so the cache covers the whole region Flush writes back.
func LoadDirectory(dev *blockdev.Device, bpb *BPB, fat *Table, firstCluster Cluster) (*Directory, error) {
	raw, err := readDirectoryRegion(dev, bpb, fat, firstCluster)
	if err != nil {
		return nil, err
	}

	d := &Directory{FirstCluster: firstCluster}
	slotCount := len(raw) / DirentSize
	for i := 0; i < slotCount; i++ {
		slot := raw[i*DirentSize : (i+1)*DirentSize]
		node, err := nodeFromSFN(slot, i)
		if err != nil {
			return nil, err
		}
		d.nodes = append(d.nodes, node)
	}
	d.relink()
	return d, nil
}

// NewRootDirectory builds an empty, freshly formatted root directory cache
// without touching disk; Flush writes it out for the first time.
func NewRootDirectory(bpb *BPB) *Directory {
	d := &Directory{FirstCluster: 0}
	for i := 0; i < int(bpb.DirectoryEntries); i++ {
		d.nodes = append(d.nodes, &Node{slot: i, State: NodeUnused})
	}
	d.relink()
	return d
}

func (d *Directory) relink() {
	var prev *Node
	for _, n := range d.nodes {
		n.prev = prev
		n.next = nil
		if prev != nil {
			prev.next = n
		}
		prev = n
	}
}

// List returns every live (NodeUsed) entry in on-disk order.
func (d *Directory) List() []*Node {
	var out []*Node
	for _, n := range d.nodes {
		if n.State == NodeUsed {
			out = append(out, n)
		}
	}
	return out
}

// FindByName looks up a live entry by name, case-insensitively, matching
// either the entry's Name or its expanded "NAME.EXT" short name. The search
// stops at the first NodeUnused slot.
func (d *Directory) FindByName(name string) (*Node, bool) {
	for _, n := range d.nodes {
		if n.State == NodeUnused {
			return nil, false
		}
		if n.State == NodeUsed && (strings.EqualFold(n.Name, name) ||
			strings.EqualFold(ExpandShortName(n.shortName), name)) {
			return n, true
		}
	}
	return nil, false
}

// chooseShortName finds an 8.3 short name for name that doesn't collide
// with any live sibling, trying suffixes ~1 through ~9 if needed.
func (d *Directory) chooseShortName(name string) ([11]byte, error) {
	for suffix := 0; suffix <= 9; suffix++ {
		candidate := BuildShortName(name, suffix)
		collision := false
		for _, other := range d.nodes {
			if other.State == NodeUsed && other.shortName == candidate {
				collision = true
				break
			}
		}
		if !collision {
			return candidate, nil
		}
	}
	return [11]byte{}, fatErrors.ErrExists.WithMessage("short name space exhausted for " + name)
}

// grow extends a non-root directory's cluster chain by one cluster and
// appends the new slots it makes available. Root directories have a
// fixed capacity and never grow.
func (d *Directory) grow(bpb *BPB, fat *Table) (bool, error) {
	if d.FirstCluster == 0 {
		return false, nil
	}

	currentLength := 0
	for c := d.FirstCluster; IsValidCluster(c); c = fat.NextCluster(c) {
		currentLength++
	}

	newHead, err := fat.ReallocateChain(d.FirstCluster, currentLength+1)
	if err != nil {
		return false, err
	}
	d.FirstCluster = newHead

	slotsPerCluster := int(bpb.BytesPerCluster() / DirentSize)
	base := len(d.nodes)
	for i := 0; i < slotsPerCluster; i++ {
		d.nodes = append(d.nodes, &Node{slot: base + i, State: NodeUnused})
	}
	d.relink()
	return true, nil
}

// CreateEntry reserves a slot for a new file or subdirectory named name,
// allocates it a single starting cluster, and returns the new node. The
// caller is responsible for populating the cluster's contents (writing
// file data, or seeding "." and ".." for a new subdirectory).
func (d *Directory) CreateEntry(bpb *BPB, fat *Table, name string, attrs AttrSet, now time.Time) (*Node, error) {
	if _, found := d.FindByName(name); found {
		return nil, fatErrors.ErrExists.WithMessage(name)
	}

	idx := -1
	for i, n := range d.nodes {
		if n.State == NodeAvailable || n.State == NodeUnused {
			idx = i
			break
		}
	}
	if idx == -1 {
		grown, err := d.grow(bpb, fat)
		if err != nil {
			return nil, err
		}
		if !grown {
			return nil, fatErrors.ErrNoSpace.WithMessage("directory is full")
		}
		idx = len(d.nodes) - int(bpb.BytesPerCluster()/DirentSize)
	}

	shortName, err := d.chooseShortName(name)
	if err != nil {
		return nil, err
	}

	firstCluster, err := fat.ReallocateChain(ClusterEOF, 1)
	if err != nil {
		return nil, err
	}

	node := d.nodes[idx]
	node.State = NodeUsed
	node.Name = name
	node.shortName = shortName
	node.Attrs = attrs
	node.Created, node.Modified, node.Accessed = now, now, now
	node.Size = 0
	node.FirstCluster = firstCluster
	node.dirty = true

	d.relink()
	return node, nil
}

// Remove frees name's cluster chain and marks its slot available for
// reuse.
func (d *Directory) Remove(fat *Table, name string) error {
	node, found := d.FindByName(name)
	if !found {
		return fatErrors.ErrNotFound.WithMessage(name)
	}

	if _, err := fat.ReallocateChain(node.FirstCluster, 0); err != nil {
		return err
	}
	node.State = NodeAvailable
	node.Name = ""
	node.FirstCluster = ClusterFree
	node.Size = 0
	node.dirty = true
	return nil
}

// Flush re-encodes every slot and writes the directory's full backing
// region back to disk.
func (d *Directory) Flush(dev *blockdev.Device, bpb *BPB, fat *Table) error {
	buf := make([]byte, len(d.nodes)*DirentSize)

	var errs *multierror.Error
	for i, n := range d.nodes {
		sfn, err := n.toSFN()
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		encoded, err := sfn.Serialize()
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		copy(buf[i*DirentSize:(i+1)*DirentSize], encoded[:])
		n.dirty = false
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fatErrors.ErrIO.Wrap(err)
	}

	return writeDirectoryRegion(dev, bpb, fat, d.FirstCluster, buf)
}

// SeedChildDirectory builds the in-memory cache of a freshly created
// subdirectory's single starting cluster, with the "." and ".." entries as
// its first two slots. It does no I/O; the caller flushes the result.
func SeedChildDirectory(bpb *BPB, fat *Table, selfCluster, parentCluster Cluster, now time.Time) *Directory {
	d := &Directory{FirstCluster: selfCluster}
	slotsPerCluster := int(bpb.BytesPerCluster() / DirentSize)
	for i := 0; i < slotsPerCluster; i++ {
		d.nodes = append(d.nodes, &Node{slot: i, State: NodeUnused})
	}

	dotName := [11]byte{'.', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}
	dotdotName := [11]byte{'.', '.', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}

	dot := d.nodes[0]
	dot.State, dot.Name = NodeUsed, "."
	dot.shortName = dotName
	dot.Attrs = AttrSet(AttrDirectory)
	dot.Created, dot.Modified, dot.Accessed = now, now, now
	dot.FirstCluster = selfCluster
	dot.dirty = true

	dotdot := d.nodes[1]
	dotdot.State, dotdot.Name = NodeUsed, ".."
	dotdot.shortName = dotdotName
	dotdot.Attrs = AttrSet(AttrDirectory)
	dotdot.Created, dotdot.Modified, dotdot.Accessed = now, now, now
	dotdot.FirstCluster = parentCluster
	dotdot.dirty = true

	d.relink()
	return d
}
