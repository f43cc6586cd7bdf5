// Package disks supplies named disk geometry presets — the "1.44 MB floppy"
// and similar shorthand a real `format`/`init` shell command would offer in
// addition to raw bytes-per-sector/sector-count pairs.
package disks

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/gocarina/gocsv"
)

// Geometry describes the physical layout assumed for a named disk preset.
type Geometry struct {
	Slug              string `csv:"slug"`
	Name              string `csv:"name"`
	BytesPerSector    uint   `csv:"bytes_per_sector"`
	SectorsPerCluster uint   `csv:"sectors_per_cluster"`
	SectorsPerTrack   uint   `csv:"sectors_per_track"`
	Heads             uint   `csv:"heads"`
	TotalSectors      uint   `csv:"total_sectors"`
	// Media is the on-disk FAT media descriptor byte for this geometry
	// (0xF0 for removable media, 0xF8 for fixed disks).
	Media uint8 `csv:"media"`
}

// TotalSizeBytes returns the size, in bytes, of an image using this
// geometry.
func (g Geometry) TotalSizeBytes() int64 {
	return int64(g.BytesPerSector) * int64(g.TotalSectors)
}

//go:embed geometries.csv
var rawGeometryCSV string

var (
	geometriesOnce sync.Once
	geometries     map[string]Geometry
)

func loadGeometries() {
	geometries = make(map[string]Geometry)
	reader := strings.NewReader(rawGeometryCSV)

	err := gocsv.UnmarshalToCallback(reader, func(row Geometry) error {
		if _, exists := geometries[row.Slug]; exists {
			return fmt.Errorf("duplicate disk geometry slug %q", row.Slug)
		}
		geometries[row.Slug] = row
		return nil
	})
	if err != nil {
		panic(fmt.Sprintf("disks: malformed embedded geometry table: %s", err))
	}
}

// GetGeometry looks up a named disk geometry preset, such as "fd1440" for a
// standard 1.44 MB 3.5-inch floppy.
func GetGeometry(slug string) (Geometry, error) {
	geometriesOnce.Do(loadGeometries)

	geometry, ok := geometries[slug]
	if !ok {
		return Geometry{}, fmt.Errorf("no predefined disk geometry exists with slug %q", slug)
	}
	return geometry, nil
}

// Slugs returns every known preset's slug. The order is not defined; it
// does not follow the order of the embedded table.
func Slugs() []string {
	geometriesOnce.Do(loadGeometries)

	slugs := make([]string, 0, len(geometries))
	for slug := range geometries {
		slugs = append(slugs, slug)
	}
	return slugs
}
