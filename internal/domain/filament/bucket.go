// Package filament maps free-text material and color strings onto the closed
// set of wallet buckets. The same mapping is used when crediting a top-up and
// when debiting a job so funds can only be spent from the bucket they landed in.
package filament

import "strings"

// Material is a normalized wallet material key.
type Material string

const (
	MaterialPLA   Material = "PLA"
	MaterialTPU   Material = "TPU"
	MaterialOther Material = "OTHER"
)

// Color is a normalized wallet color key.
type Color string

const (
	ColorWhite Color = "White"
	ColorBlack Color = "Black"
	ColorGray  Color = "Gray"
)

// Materials lists every material key in display order.
var Materials = []Material{MaterialPLA, MaterialTPU, MaterialOther}

// Colors lists every color key in display order.
var Colors = []Color{ColorWhite, ColorBlack, ColorGray}

// Bucket identifies one filament balance inside a wallet.
type Bucket struct {
	Material Material `json:"material"`
	Color    Color    `json:"color"`
}

// NormalizeMaterial maps a free-text filament type onto a material key.
// Matching is a case-insensitive prefix match; unknown values land in OTHER.
func NormalizeMaterial(s string) Material {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(v, "TPU"):
		return MaterialTPU
	case strings.HasPrefix(v, "PLA"):
		return MaterialPLA
	default:
		return MaterialOther
	}
}

// NormalizeColor maps a free-text color onto a color key.
func NormalizeColor(s string) Color {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(v, "wh"):
		return ColorWhite
	case strings.HasPrefix(v, "bl"):
		return ColorBlack
	default:
		return ColorGray
	}
}

// Normalize returns the bucket for a material/color pair.
func Normalize(material, color string) Bucket {
	return Bucket{
		Material: NormalizeMaterial(material),
		Color:    NormalizeColor(color),
	}
}

// Debitable reports whether charges may be taken from this bucket.
// OTHER is tracked but has no funded semantics.
func (b Bucket) Debitable() bool {
	return b.Material != MaterialOther
}

func (b Bucket) String() string {
	return string(b.Material) + "/" + string(b.Color)
}

// Valid reports whether b uses canonical keys.
func (b Bucket) Valid() bool {
	return validMaterial(b.Material) && validColor(b.Color)
}

func validMaterial(m Material) bool {
	for _, v := range Materials {
		if v == m {
			return true
		}
	}
	return false
}

func validColor(c Color) bool {
	for _, v := range Colors {
		if v == c {
			return true
		}
	}
	return false
}
