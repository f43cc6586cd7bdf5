package fat12

import (
	"github.com/boljen/go-bitmap"

	fatErrors "github.com/fat12img/fat12img/errors"
)

// Cluster is a cluster ID as stored in the FAT: a 12-bit value, though kept
// in a 16-bit word here for convenience. 0 and 1 are reserved; 0 also
// doubles as this package's marker for "the fixed-size root directory"
// wherever a directory's first cluster is recorded.
type Cluster uint16

const (
	// ClusterFree marks a cluster as unallocated.
	ClusterFree = Cluster(0x000)
	// ClusterEOF terminates a cluster chain. spec.md uses a single
	// sentinel value rather than the historical range of reserved
	// end-of-chain markers (0xFF8-0xFFF).
	ClusterEOF = Cluster(0xFFF)
	// ClusterFirstValid and ClusterLastValid bound the range of cluster
	// IDs that may legally appear as data clusters.
	ClusterFirstValid = Cluster(0x002)
	ClusterLastValid  = Cluster(0xFFE)
)

// IsValidCluster reports whether c is a usable data cluster ID.
func IsValidCluster(c Cluster) bool {
	return c >= ClusterFirstValid && c <= ClusterLastValid
}

// Table is the in-memory 12-bit packed file allocation table, backed by a
// free-cluster bitmap cache so FirstFree doesn't need to rescan the whole
// table on every allocation.
type Table struct {
	buf           []byte
	totalClusters uint
	free          bitmap.Bitmap
}

// NewTable wraps a raw FAT sector buffer (sized sectorsPerFat*bytesPerSector
// bytes, as read off disk) and builds its free-cluster cache.
func NewTable(buf []byte, totalClusters uint) *Table {
	t := &Table{buf: buf, totalClusters: totalClusters}
	t.rebuildFreeCache()
	return t
}

// NewEmptyTable allocates a fresh all-zero FAT sized for totalClusters data
// clusters, with the two reserved entries pre-filled per FAT12 convention
// (entry 0 carries the media descriptor byte, entry 1 is the EOC marker).
func NewEmptyTable(sizeBytes uint, totalClusters uint, mediaType uint8) *Table {
	buf := make([]byte, sizeBytes)
	t := &Table{buf: buf, totalClusters: totalClusters}
	t.setRaw(0, Cluster(mediaType)|0xF00)
	t.setRaw(1, ClusterEOF)
	t.rebuildFreeCache()
	return t
}

// Bytes returns the raw packed FAT buffer, suitable for writing straight to
// disk.
func (t *Table) Bytes() []byte { return t.buf }

func (t *Table) rebuildFreeCache() {
	t.free = bitmap.New(int(t.totalClusters) + 2)
	for c := uint(ClusterFirstValid); c < t.totalClusters+2; c++ {
		if t.Entry(Cluster(c)) == ClusterFree {
			t.free.Set(int(c), true)
		}
	}
}

func (t *Table) entryOffset(c Cluster) int {
	return int(c) * 3 / 2
}

// Entry returns the raw contents of FAT entry c. Entries 0 and 1 are
// reserved and always read back as ClusterEOF.
func (t *Table) Entry(c Cluster) Cluster {
	if c < ClusterFirstValid {
		return ClusterEOF
	}
	return t.rawEntry(c)
}

func (t *Table) rawEntry(c Cluster) Cluster {
	off := t.entryOffset(c)
	if off+1 >= len(t.buf) {
		return ClusterEOF
	}
	var v uint16
	if c%2 == 0 {
		v = uint16(t.buf[off]) | (uint16(t.buf[off+1]&0x0F) << 8)
	} else {
		v = uint16(t.buf[off]>>4) | (uint16(t.buf[off+1]) << 4)
	}
	return Cluster(v & 0x0FFF)
}

func (t *Table) setRaw(c Cluster, v Cluster) {
	off := t.entryOffset(c)
	if off+1 >= len(t.buf) {
		return
	}
	v &= 0x0FFF
	if c%2 == 0 {
		t.buf[off] = byte(v)
		t.buf[off+1] = (t.buf[off+1] & 0xF0) | byte((v>>8)&0x0F)
	} else {
		t.buf[off] = (t.buf[off] & 0x0F) | byte((v&0x0F)<<4)
		t.buf[off+1] = byte(v >> 4)
	}
}

// SetEntry writes a FAT entry and keeps the free-cluster cache in sync.
// Entries 0 and 1 are reserved; writes to them are no-ops.
func (t *Table) SetEntry(c Cluster, v Cluster) {
	if c < ClusterFirstValid {
		return
	}
	t.setRaw(c, v)
	t.free.Set(int(c), v == ClusterFree)
}

// NextCluster follows the chain one step. Calling it on ClusterEOF returns
// ClusterEOF.
func (t *Table) NextCluster(c Cluster) Cluster {
	if c == ClusterEOF {
		return ClusterEOF
	}
	return t.Entry(c)
}

// FirstFree returns the lowest-numbered free cluster, or ErrNoSpace if the
// volume is full.
func (t *Table) FirstFree() (Cluster, error) {
	for c := uint(ClusterFirstValid); c < t.totalClusters+2; c++ {
		if t.free.Get(int(c)) {
			return Cluster(c), nil
		}
	}
	return ClusterFree, fatErrors.ErrNoSpace.WithMessage("no free clusters")
}

// ClustersForSize returns the number of clusters needed to hold size bytes,
// rounding up, with a floor of one cluster (spec.md's invariant that every
// file, even an empty one, owns at least one cluster).
func ClustersForSize(size uint, bytesPerCluster uint) uint {
	if bytesPerCluster == 0 {
		return 1
	}
	n := (size + bytesPerCluster - 1) / bytesPerCluster
	if n == 0 {
		n = 1
	}
	return n
}

// freeChain walks a chain starting at start, marking every cluster in it
// free. It tolerates start already being ClusterEOF or ClusterFree.
func (t *Table) freeChain(start Cluster) {
	current := start
	for IsValidCluster(current) {
		next := t.Entry(current)
		t.SetEntry(current, ClusterFree)
		if next == current {
			break
		}
		current = next
	}
}

// ReallocateChain grows, shrinks, or frees the cluster chain rooted at
// head so that it has exactly `required` clusters, and returns the
// (possibly new) head.
//
// It walks the existing chain cluster by cluster. Where the chain falls
// short, it claims free clusters and links them in; where the chain runs
// long, it truncates at the required length and frees whatever follows.
// Asking for zero or fewer clusters frees the whole chain and returns
// ClusterEOF as the new head.
func (t *Table) ReallocateChain(head Cluster, required int) (Cluster, error) {
	if required <= 0 {
		t.freeChain(head)
		return ClusterEOF, nil
	}

	var newHead, prev Cluster
	current := head
	remaining := required

	for remaining > 0 {
		if current == ClusterEOF {
			next, err := t.FirstFree()
			if err != nil {
				return newHead, err
			}
			t.SetEntry(next, ClusterEOF)
			if prev != ClusterFree {
				t.SetEntry(prev, next)
			}
			current = next
		}

		if newHead == ClusterFree {
			newHead = current
		}
		prev = current

		if remaining == 1 {
			tail := t.Entry(current)
			t.SetEntry(current, ClusterEOF)
			t.freeChain(tail)
			break
		}

		current = t.Entry(current)
		remaining--
	}

	return newHead, nil
}
