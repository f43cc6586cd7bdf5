package blockdev_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fat12img/fat12img/blockdev"
	"github.com/stretchr/testify/require"
)

func newTestDevice(t *testing.T) *blockdev.Device {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.img")
	dev, err := blockdev.Create(path, blockdev.MediaFloppy)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Destroy() })
	return dev
}

func TestInitTruncatesAndZeroFills(t *testing.T) {
	dev := newTestDevice(t)
	require.NoError(t, dev.Init(512, 2880))
	require.EqualValues(t, 2880, dev.TotalSectors())
	require.EqualValues(t, 512, dev.SectorSize())

	sector, err := dev.ReadSector(0)
	require.NoError(t, err)
	require.Len(t, sector, 512)
	for _, b := range sector {
		require.Zero(t, b)
	}

	info, err := os.Stat(dev.Path())
	require.NoError(t, err)
	require.EqualValues(t, 512*2880, info.Size())
}

func TestWriteThenReadSector(t *testing.T) {
	dev := newTestDevice(t)
	require.NoError(t, dev.Init(512, 10))

	payload := make([]byte, 512)
	copy(payload, []byte{0x41, 0x42, 0x43})
	require.NoError(t, dev.WriteSector(3, payload))

	readBack, err := dev.ReadSector(3)
	require.NoError(t, err)
	require.Equal(t, payload, readBack)

	// Neighboring sectors remain untouched.
	neighbor, err := dev.ReadSector(2)
	require.NoError(t, err)
	for _, b := range neighbor {
		require.Zero(t, b)
	}
}

func TestReadWriteSectorsMultiple(t *testing.T) {
	dev := newTestDevice(t)
	require.NoError(t, dev.Init(512, 10))

	data := make([]byte, 512*3)
	for i := range data {
		data[i] = byte(i % 256)
	}
	require.NoError(t, dev.WriteSectors(2, 3, data))

	readBack, err := dev.ReadSectors(2, 3)
	require.NoError(t, err)
	require.Equal(t, data, readBack)
}

func TestOutOfRangePanics(t *testing.T) {
	dev := newTestDevice(t)
	require.NoError(t, dev.Init(512, 4))

	require.Panics(t, func() {
		_, _ = dev.ReadSector(4)
	})
	require.Panics(t, func() {
		_, _ = dev.ReadSectors(2, 3)
	})
}

func TestWriteWrongSizePanics(t *testing.T) {
	dev := newTestDevice(t)
	require.NoError(t, dev.Init(512, 4))

	require.Panics(t, func() {
		_ = dev.WriteSector(0, make([]byte, 100))
	})
}
