package fat12_test

import (
	"path/filepath"
	"testing"

	"github.com/fat12img/fat12img/blockdev"
	"github.com/fat12img/fat12img/fat12"
	"github.com/stretchr/testify/require"
)

func TestOpenDispatchesToRegisteredDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reg.img")
	dev, err := blockdev.Create(path, blockdev.MediaFloppy)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Destroy() })
	require.NoError(t, dev.Init(512, 720))
	require.NoError(t, fat12.Format(dev, fat12.FormatOptions{}))

	fs, err := fat12.Open("FAT12", dev)
	require.NoError(t, err)
	require.Empty(t, fs.GetDirectoryList())
}

func TestOpenUnknownDriverErrors(t *testing.T) {
	_, err := fat12.Open("NOPE", nil)
	require.Error(t, err)
}
