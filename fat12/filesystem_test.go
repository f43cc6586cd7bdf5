package fat12_test

import (
	"path/filepath"
	"testing"

	"github.com/fat12img/fat12img/blockdev"
	"github.com/fat12img/fat12img/fat12"
	"github.com/stretchr/testify/require"
)

func newTestVolume(t *testing.T) *blockdev.Device {
	t.Helper()
	path := filepath.Join(t.TempDir(), "volume.img")
	dev, err := blockdev.Create(path, blockdev.MediaFloppy)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Destroy() })

	require.NoError(t, dev.Init(512, 720))
	require.NoError(t, fat12.Format(dev, fat12.FormatOptions{}))
	return dev
}

func TestFormatThenMountRoundTrips(t *testing.T) {
	dev := newTestVolume(t)

	fs, err := fat12.Mount(dev)
	require.NoError(t, err)
	require.Empty(t, fs.GetDirectoryList())
}

func TestCreateFileWriteReadRemove(t *testing.T) {
	dev := newTestVolume(t)
	fs, err := fat12.Mount(dev)
	require.NoError(t, err)

	_, err = fs.CreateFile("hello.txt", 0)
	require.NoError(t, err)

	payload := []byte("hello, fat12")
	require.NoError(t, fs.Write("hello.txt", payload))
	require.NoError(t, fs.Flush())

	readBack, err := fs.Read("hello.txt")
	require.NoError(t, err)
	require.Equal(t, payload, readBack)

	require.NoError(t, fs.Remove("hello.txt"))
	require.NoError(t, fs.Flush())
	_, err = fs.GetNode("hello.txt")
	require.Error(t, err)
}

func TestCreateFileThenRemountSeesIt(t *testing.T) {
	dev := newTestVolume(t)
	fs, err := fat12.Mount(dev)
	require.NoError(t, err)

	_, err = fs.CreateFile("a.txt", 0)
	require.NoError(t, err)
	require.NoError(t, fs.Write("a.txt", []byte("abc")))
	require.NoError(t, fs.Flush())

	fs2, err := fat12.Mount(dev)
	require.NoError(t, err)
	node, err := fs2.GetNode("a.txt")
	require.NoError(t, err)
	require.EqualValues(t, 3, node.Size)

	data, err := fs2.Read("a.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), data)
}

func TestCreateDirAndNavigate(t *testing.T) {
	dev := newTestVolume(t)
	fs, err := fat12.Mount(dev)
	require.NoError(t, err)

	dir, err := fs.CreateDir("sub")
	require.NoError(t, err)
	require.NoError(t, fs.Flush())

	require.NoError(t, fs.SetDirectory(dir))
	entries := fs.GetDirectoryList()
	var names []string
	for _, n := range entries {
		names = append(names, n.Name)
	}
	require.Contains(t, names, ".")
	require.Contains(t, names, "..")

	require.NoError(t, fs.SetRootDirectory())
	_, err = fs.GetNode("sub")
	require.NoError(t, err)
}

func TestDuplicateNameRejected(t *testing.T) {
	dev := newTestVolume(t)
	fs, err := fat12.Mount(dev)
	require.NoError(t, err)

	_, err = fs.CreateFile("dup.txt", 0)
	require.NoError(t, err)
	_, err = fs.CreateFile("dup.txt", 0)
	require.Error(t, err)
}

func TestWriteGrowsAndShrinksChain(t *testing.T) {
	dev := newTestVolume(t)
	fs, err := fat12.Mount(dev)
	require.NoError(t, err)

	_, err = fs.CreateFile("big.bin", 0)
	require.NoError(t, err)

	big := make([]byte, 512*3+17)
	for i := range big {
		big[i] = byte(i)
	}
	require.NoError(t, fs.Write("big.bin", big))
	readBack, err := fs.Read("big.bin")
	require.NoError(t, err)
	require.Equal(t, big, readBack)

	small := []byte("tiny")
	require.NoError(t, fs.Write("big.bin", small))
	readBack, err = fs.Read("big.bin")
	require.NoError(t, err)
	require.Equal(t, small, readBack)
}

func TestAbsoluteSectorsOfFile(t *testing.T) {
	dev := newTestVolume(t)
	fs, err := fat12.Mount(dev)
	require.NoError(t, err)

	_, err = fs.CreateFile("f.bin", 0)
	require.NoError(t, err)
	require.NoError(t, fs.Write("f.bin", make([]byte, 512*2)))

	sectors, err := fs.AbsoluteSectorsOfFile("f.bin")
	require.NoError(t, err)
	require.Len(t, sectors, 2)
	require.Greater(t, sectors[0], uint(0))
}
