package fat12

import (
	"bytes"
	"encoding/binary"
	"time"

	fatErrors "github.com/fat12img/fat12img/errors"
	"github.com/noxer/bytewriter"
)

// DirentSize is the size, in bytes, of one packed short directory entry.
const DirentSize = 32

// Directory entry slot markers, per the classic FAT convention.
const (
	direntFreeMarker   = 0xE5 // name[0]: slot held a removed file
	direntUnusedMarker = 0x00 // name[0]: slot and everything after it is unused
)

// SFN is the packed 32-byte on-disk short directory entry.
type SFN struct {
	Name           [11]byte
	Attr           uint8
	NTReserved     uint8
	CreateTimeMS   uint8
	CreateTime     uint16
	CreateDate     uint16
	AccessDate     uint16
	FirstClusterHi uint16
	ModifyTime     uint16
	ModifyDate     uint16
	FirstClusterLo uint16
	Size           uint32
}

// Serialize packs the entry into its 32-byte on-disk form.
func (s *SFN) Serialize() ([DirentSize]byte, error) {
	var out [DirentSize]byte
	w := bytewriter.New(out[:])
	fields := []any{
		s.Name, s.Attr, s.NTReserved, s.CreateTimeMS, s.CreateTime, s.CreateDate,
		s.AccessDate, s.FirstClusterHi, s.ModifyTime, s.ModifyDate,
		s.FirstClusterLo, s.Size,
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return out, fatErrors.ErrIO.Wrap(err)
		}
	}
	return out, nil
}

// ParseSFN decodes a 32-byte slot into an SFN.
func ParseSFN(raw []byte) (*SFN, error) {
	if len(raw) != DirentSize {
		return nil, fatErrors.ErrInvalidArg.WithMessage("directory slot must be 32 bytes")
	}
	s := &SFN{}
	r := bytes.NewReader(raw)
	fields := []any{
		&s.Name, &s.Attr, &s.NTReserved, &s.CreateTimeMS, &s.CreateTime, &s.CreateDate,
		&s.AccessDate, &s.FirstClusterHi, &s.ModifyTime, &s.ModifyDate,
		&s.FirstClusterLo, &s.Size,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return nil, fatErrors.ErrIO.Wrap(err)
		}
	}
	return s, nil
}

// FirstCluster returns the entry's starting cluster. FAT12 only ever
// populates the low word; FirstClusterHi exists for on-disk layout
// compatibility and is always zero.
func (s *SFN) FirstCluster() Cluster { return Cluster(s.FirstClusterLo) }

func (s *SFN) setFirstCluster(c Cluster) {
	s.FirstClusterLo = uint16(c)
	s.FirstClusterHi = 0
}

// NodeState is where a directory slot sits in its lifecycle.
type NodeState int

const (
	// NodeUnused means the slot has never held an entry, and neither has
	// any slot after it in the same directory.
	NodeUnused NodeState = iota
	// NodeAvailable means the slot held a removed entry and may be
	// reused by a future create.
	NodeAvailable
	// NodeUsed means the slot holds a live file or subdirectory.
	NodeUsed
)

// Node is the in-memory, richer view of a single directory slot: a short
// name, decoded attributes and timestamps, and links to its siblings in
// the owning directory's cache.
type Node struct {
	prev, next *Node

	Name      string
	shortName [11]byte
	Attrs     AttrSet
	State     NodeState
	Size      uint32
	Created   time.Time
	Modified  time.Time
	Accessed  time.Time

	FirstCluster Cluster

	// slot is the entry's position within its directory's on-disk slot
	// array.
	slot int
	// rawAttr carries whatever VolumeID/Archive bits the on-disk entry
	// had, so Flush can restore them via MergeAttrsToDisk.
	rawAttr uint8
	dirty   bool
}

// IsDirectory reports whether the node represents a subdirectory.
func (n *Node) IsDirectory() bool { return n.Attrs.Directory() }

// nodeFromSFN decodes a raw slot into a Node. slot is the 0-based index of
// this entry within its directory.
func nodeFromSFN(raw []byte, slot int) (*Node, error) {
	s, err := ParseSFN(raw)
	if err != nil {
		return nil, err
	}

	n := &Node{slot: slot, rawAttr: s.Attr, FirstCluster: s.FirstCluster(), Size: s.Size}
	switch s.Name[0] {
	case direntUnusedMarker:
		n.State = NodeUnused
		return n, nil
	case direntFreeMarker:
		n.State = NodeAvailable
		return n, nil
	}

	n.State = NodeUsed
	n.shortName = s.Name
	n.Name = ExpandShortName(s.Name)
	n.Attrs = AttrsFromDisk(s.Attr)
	n.Created = UnpackDateTime(s.CreateDate, s.CreateTime)
	n.Modified = UnpackDateTime(s.ModifyDate, s.ModifyTime)
	n.Accessed = UnpackDateTime(s.AccessDate, 0)
	return n, nil
}

// toSFN re-encodes a node's current in-memory state into its packed
// on-disk form, for Flush. CreateEntry is responsible for having already
// resolved n.shortName (including any ~N collision suffix).
func (n *Node) toSFN() (*SFN, error) {
	s := &SFN{}
	switch n.State {
	case NodeUnused:
		return s, nil
	case NodeAvailable:
		s.Name[0] = direntFreeMarker
		for i := 1; i < len(s.Name); i++ {
			s.Name[i] = ' '
		}
		return s, nil
	}

	s.Name = n.shortName
	s.Attr = MergeAttrsToDisk(n.rawAttr, n.Attrs)
	s.CreateDate, s.CreateTime = PackDate(n.Created), PackTime(n.Created)
	s.ModifyDate, s.ModifyTime = PackDate(n.Modified), PackTime(n.Modified)
	s.AccessDate = PackDate(n.Accessed)
	s.setFirstCluster(n.FirstCluster)
	s.Size = n.Size
	return s, nil
}
