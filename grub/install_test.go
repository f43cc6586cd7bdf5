package grub_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fat12img/fat12img/blockdev"
	fatErrors "github.com/fat12img/fat12img/errors"
	"github.com/fat12img/fat12img/fat12"
	"github.com/fat12img/fat12img/grub"
)

func newTestVolume(t *testing.T) (*blockdev.Device, *fat12.FileSystem) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "volume.img")
	dev, err := blockdev.Create(path, blockdev.MediaFloppy)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Destroy() })

	require.NoError(t, dev.Init(512, 2880))
	require.NoError(t, fat12.Format(dev, fat12.FormatOptions{}))

	fs, err := fat12.Mount(dev)
	require.NoError(t, err)
	return dev, fs
}

func writeFakeGrubSource(t *testing.T, stage1, stage2 []byte) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stage1"), stage1, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stage2"), stage2, 0o644))
	return dir
}

func validStage1() []byte {
	buf := make([]byte, 512)
	buf[0x3E] = 3
	buf[0x3F] = 2
	buf[0x1FE] = 0x55
	buf[0x1FF] = 0xAA
	return buf
}

func validStage2(sectorCount int) []byte {
	buf := make([]byte, 512*sectorCount)
	buf[0x206] = 3
	buf[0x207] = 2
	buf[0x210] = 0x00
	return buf
}

func TestInstallFailsOnIncompatibleStage1(t *testing.T) {
	_, fs := newTestVolume(t)
	zeros := make([]byte, 512)
	src := writeFakeGrubSource(t, zeros, validStage2(1))

	sector0Before, err := fs.Device().ReadSector(0)
	require.NoError(t, err)

	err = grub.Install(fs, src, grub.Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, fatErrors.ErrGrubIncompatible)

	sector0After, err := fs.Device().ReadSector(0)
	require.NoError(t, err)
	assert.Equal(t, sector0Before, sector0After, "no bytes should be written to sector 0 on failure")
}

func TestInstallPlacesStage2AndPatchesStage1(t *testing.T) {
	_, fs := newTestVolume(t)
	src := writeFakeGrubSource(t, validStage1(), validStage2(3))

	require.NoError(t, grub.Install(fs, src, grub.Config{}))

	require.NoError(t, fs.SetRootDirectory())
	dirNode, err := fs.GetNode("GRUB")
	require.NoError(t, err)
	require.True(t, dirNode.IsDirectory())

	require.NoError(t, fs.SetDirectory(dirNode))
	stage2Node, err := fs.GetNode("STAGE2")
	require.NoError(t, err)
	require.EqualValues(t, 512*3, stage2Node.Size)

	sector0, err := fs.Device().ReadSector(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x00), sector0[0x40], "floppy media byte")
	assert.Equal(t, []byte{0x55, 0xAA}, sector0[0x1FE:0x200])
}

func TestInstallMissingSourceFilesFails(t *testing.T) {
	_, fs := newTestVolume(t)
	err := grub.Install(fs, t.TempDir(), grub.Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, fatErrors.ErrGrubMissingFile)
}
