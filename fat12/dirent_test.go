package fat12_test

import (
	"testing"

	"github.com/fat12img/fat12img/fat12"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSFNRoundTrips(t *testing.T) {
	s := &fat12.SFN{
		Attr: fat12.AttrReadOnly,
		Size: 1024,
	}
	copy(s.Name[:], "README  TXT")
	s.FirstClusterLo = 5

	raw, err := s.Serialize()
	require.NoError(t, err)
	require.Len(t, raw, fat12.DirentSize)

	parsed, err := fat12.ParseSFN(raw[:])
	require.NoError(t, err)
	assert.Equal(t, s.Name, parsed.Name)
	assert.Equal(t, s.Attr, parsed.Attr)
	assert.Equal(t, s.Size, parsed.Size)
	assert.EqualValues(t, 5, parsed.FirstCluster())
}

func TestParseSFNRejectsWrongLength(t *testing.T) {
	_, err := fat12.ParseSFN(make([]byte, 10))
	assert.Error(t, err)
}
