package fat12_test

import (
	"testing"
	"time"

	"github.com/fat12img/fat12img/fat12"
	"github.com/stretchr/testify/assert"
)

func TestBuildShortNameShortNameUnchanged(t *testing.T) {
	sfn := fat12.BuildShortName("readme.txt", 0)
	assert.Equal(t, "README  TXT", string(sfn[:]))
}

func TestBuildShortNameLowercased(t *testing.T) {
	sfn := fat12.BuildShortName("hello.c", 0)
	assert.Equal(t, "HELLO   C  ", string(sfn[:]))
}

func TestBuildShortNameTruncatesLongName(t *testing.T) {
	sfn := fat12.BuildShortName("verylongfilename.txt", 0)
	assert.Equal(t, "VERYLO~1TXT", string(sfn[:]))
}

func TestBuildShortNameExplicitSuffix(t *testing.T) {
	sfn := fat12.BuildShortName("verylongfilename.txt", 2)
	assert.Equal(t, "VERYLO~2TXT", string(sfn[:]))
}

func TestBuildShortNamePlusMapsToUnderscore(t *testing.T) {
	sfn := fat12.BuildShortName("a+b.c", 0)
	assert.Equal(t, "A_B     C  ", string(sfn[:]))
}

func TestBuildShortNameDropsIllegalChars(t *testing.T) {
	sfn := fat12.BuildShortName("my file?.c", 0)
	assert.Equal(t, "MYFILE  C  ", string(sfn[:]))
}

func TestExpandShortNameNoExtension(t *testing.T) {
	var sfn [11]byte
	copy(sfn[:], "README     ")
	assert.Equal(t, "README", fat12.ExpandShortName(sfn))
}

func TestExpandShortNameWithExtension(t *testing.T) {
	var sfn [11]byte
	copy(sfn[:], "README  TXT")
	assert.Equal(t, "README.TXT", fat12.ExpandShortName(sfn))
}

func TestAttrsRoundTripPreservesUnexposedBits(t *testing.T) {
	raw := uint8(fat12.AttrArchive | fat12.AttrVolumeID | fat12.AttrReadOnly)
	abstract := fat12.AttrsFromDisk(raw)
	assert.True(t, abstract.ReadOnly())
	assert.False(t, abstract.Directory())

	merged := fat12.MergeAttrsToDisk(raw, abstract)
	assert.Equal(t, raw, merged)
}

func TestMergeAttrsToDiskAppliesNewBits(t *testing.T) {
	original := uint8(fat12.AttrArchive)
	merged := fat12.MergeAttrsToDisk(original, fat12.AttrSet(fat12.AttrHidden))
	assert.NotZero(t, merged&fat12.AttrArchive)
	assert.NotZero(t, merged&fat12.AttrHidden)
	assert.Zero(t, merged&fat12.AttrReadOnly)
}

func TestPackAndUnpackDateTime(t *testing.T) {
	ts := time.Date(2026, time.March, 5, 13, 37, 44, 0, time.UTC)
	date, fatTime := fat12.PackDate(ts), fat12.PackTime(ts)

	decoded := fat12.UnpackDateTime(date, fatTime)
	assert.Equal(t, 2026, decoded.Year())
	assert.Equal(t, time.March, decoded.Month())
	assert.Equal(t, 5, decoded.Day())
	assert.Equal(t, 13, decoded.Hour())
	assert.Equal(t, 37, decoded.Minute())
	assert.Equal(t, 44, decoded.Second())
}

func TestUnpackDateTimeInvalidFallsBackToEpoch(t *testing.T) {
	decoded := fat12.UnpackDateTime(0, 0)
	assert.Equal(t, 1980, decoded.Year())
	assert.Equal(t, time.January, decoded.Month())
	assert.Equal(t, 1, decoded.Day())
}
