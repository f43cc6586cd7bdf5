package fat12

import (
	"strings"
	"time"
)

// nameWhitelist lists the ASCII punctuation permitted in the base name of
// an 8.3 short name, beyond letters and digits.
const nameWhitelist = "!#$%&'()-@^_`{}~"

// filterNameChar maps an input rune to its short-name equivalent, or to 0
// if the character is dropped entirely. '+' is remapped to '_' rather than
// dropped, matching the leniency real FAT implementations show toward it.
func filterNameChar(r rune, allowPunctuation bool) byte {
	switch {
	case r >= 'a' && r <= 'z':
		return byte(r - 'a' + 'A')
	case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return byte(r)
	case r == '+':
		return '_'
	case allowPunctuation && strings.ContainsRune(nameWhitelist, r):
		return byte(r)
	default:
		return 0
	}
}

func filterRun(s string, allowPunctuation bool) string {
	var b strings.Builder
	for _, r := range s {
		if c := filterNameChar(r, allowPunctuation); c != 0 {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// splitNameExt splits a long name at the last '.', the way a short-name
// builder needs to: "archive.tar.gz" splits into "archive.tar" and "gz".
func splitNameExt(name string) (base, ext string) {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return name, ""
	}
	return name[:idx], name[idx+1:]
}

// BuildShortName constructs the packed 11-byte 8.3 short name for a long
// name. A positive suffix (1 through 9) is always applied as "~N" after
// trimming the filtered base to at most 6 characters. With suffix <= 0 the
// base is kept as is, unless it exceeds 8 characters, in which case "~1"
// is applied the same way.
func BuildShortName(name string, suffix int) [11]byte {
	baseIn, extIn := splitNameExt(name)

	base := filterRun(baseIn, true)
	ext := filterRun(extIn, false)
	if len(ext) > 3 {
		ext = ext[:3]
	}

	if len(base) > 8 || suffix > 0 {
		trimTo := 6
		if len(base) < trimTo {
			trimTo = len(base)
		}
		base = base[:trimTo]
		if suffix <= 0 {
			suffix = 1
		}
		base += "~" + string(rune('0'+suffix))
	}

	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	copy(out[:8], base)
	copy(out[8:11], ext)
	return out
}

// ExpandShortName reverses BuildShortName, reconstituting a "NAME.EXT"
// string (without trailing padding) from a packed 11-byte short name.
func ExpandShortName(sfn [11]byte) string {
	base := strings.TrimRight(string(sfn[0:8]), " ")
	ext := strings.TrimRight(string(sfn[8:11]), " ")
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// Attribute bits, as stored in a short directory entry's attribute byte.
const (
	AttrReadOnly  = 0x01
	AttrHidden    = 0x02
	AttrSystem    = 0x04
	AttrVolumeID  = 0x08
	AttrDirectory = 0x10
	AttrArchive   = 0x20

	// attrExposedMask is the set of bits this package's abstract AttrSet
	// actually tracks. VolumeID and Archive are preserved byte-for-byte
	// across a read/modify/write cycle but aren't represented in AttrSet.
	attrExposedMask = AttrReadOnly | AttrHidden | AttrSystem | AttrDirectory
)

// AttrSet is the abstract (filesystem-independent) view of a file's
// attribute bits.
type AttrSet uint8

func (a AttrSet) ReadOnly() bool  { return a&AttrReadOnly != 0 }
func (a AttrSet) Hidden() bool    { return a&AttrHidden != 0 }
func (a AttrSet) System() bool    { return a&AttrSystem != 0 }
func (a AttrSet) Directory() bool { return a&AttrDirectory != 0 }

// AttrsFromDisk extracts the abstract attribute bits from a raw on-disk
// attribute byte, discarding VolumeID/Archive.
func AttrsFromDisk(raw uint8) AttrSet {
	return AttrSet(raw & attrExposedMask)
}

// MergeAttrsToDisk folds abstract attribute bits back into a raw on-disk
// attribute byte, preserving whatever VolumeID/Archive bits original
// already carried.
func MergeAttrsToDisk(original uint8, attrs AttrSet) uint8 {
	preserved := original &^ attrExposedMask
	return preserved | (uint8(attrs) & attrExposedMask)
}

// fatEpoch is the reference time used when a packed FAT date/time pair is
// out of range: midnight, January 1 1980, the start of the FAT epoch.
var fatEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// PackDate packs a time.Time's date into the 16-bit FAT date format:
// bits 15-9 year since 1980, bits 8-5 month, bits 4-0 day.
func PackDate(t time.Time) uint16 {
	year := t.Year() - 1980
	if year < 0 || year > 127 {
		year = 0
	}
	return uint16(year)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
}

// PackTime packs a time.Time's time-of-day into the 16-bit FAT time
// format: bits 15-11 hour, bits 10-5 minute, bits 4-0 seconds/2.
func PackTime(t time.Time) uint16 {
	return uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
}

// UnpackDateTime reverses PackDate/PackTime. An out-of-range packed date
// (month or day of zero) decodes to fatEpoch.
func UnpackDateTime(date, fatTime uint16) time.Time {
	year := 1980 + int(date>>9)
	month := int((date >> 5) & 0x0F)
	day := int(date & 0x1F)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return fatEpoch
	}

	hour := int((fatTime >> 11) & 0x1F)
	minute := int((fatTime >> 5) & 0x3F)
	second := int((fatTime & 0x1F)) * 2

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
}
