package render

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
)

// Amenities maps an OSM amenity value to the icon drawn for it.
// Amenities missing from the table are not drawn.
var Amenities = map[string]string{
	"pub":        "vault",
	"nightclub":  "vault",
	"bar":        "vault",
	"fast_food":  "sewer",
	"restaurant": "settlement",
	"cinema":     "office",
	"pharmacy":   "office",
	"school":     "office",
	"bank":       "monument",
	"townhall":   "monument",
}

var iconMasks = map[string][]string{
	"vault": {
		"...####...",
		".##....##.",
		"#..####..#",
		"#.#....#.#",
		"#.#.##.#.#",
		"#.#.##.#.#",
		"#.#....#.#",
		"#..####..#",
		".##....##.",
		"...####...",
	},
	"sewer": {
		"..######..",
		".#......#.",
		"#..####..#",
		"#.#....#.#",
		"#.#....#.#",
		"#.#....#.#",
		"#.#....#.#",
		"#..####..#",
		".#......#.",
		"..######..",
	},
	"settlement": {
		"....##....",
		"...####...",
		"..######..",
		".########.",
		"##########",
		".#......#.",
		".#.##...#.",
		".#.##.#.#.",
		".#....#.#.",
		".########.",
	},
	"office": {
		"##########",
		"#........#",
		"#.##..##.#",
		"#.##..##.#",
		"#........#",
		"#.##..##.#",
		"#.##..##.#",
		"#........#",
		"#...##...#",
		"##########",
	},
	"monument": {
		"....##....",
		"....##....",
		"...####...",
		"...#..#...",
		"...#..#...",
		"...#..#...",
		"..######..",
		"..#....#..",
		".########.",
		"##########",
	},
}

// builtinIcons renders the icon masks in c.
func builtinIcons(c color.Color) map[string]image.Image {
	icons := make(map[string]image.Image, len(iconMasks))
	for name, mask := range iconMasks {
		img := image.NewRGBA(image.Rect(0, 0, len(mask[0]), len(mask)))
		for y, row := range mask {
			for x, ch := range row {
				if ch == '#' {
					img.Set(x, y, c)
				}
			}
		}
		icons[name] = img
	}
	return icons
}

// LoadIconDir reads <name>.png files from dir. Names are the values of
// Amenities, for example vault.png.
func LoadIconDir(dir string) (map[string]image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read icon dir: %w", err)
	}

	icons := make(map[string]image.Image)
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("open icon: %w", err)
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode icon %s: %w", e.Name(), err)
		}
		icons[strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))] = img
	}
	return icons, nil
}
