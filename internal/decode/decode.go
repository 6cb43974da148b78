// Package decode resolves the packed numeric encodings that editor extensions
// smuggle into beatmap fields with a small nominal range.
package decode

import "fmt"

// Nominal cut direction codes shared by every dialect.
const (
	DirUp = iota
	DirDown
	DirLeft
	DirRight
	DirUpLeft
	DirUpRight
	DirDownLeft
	DirDownRight
	DirAny
)

const (
	precisionThreshold = 1000

	extendedDirectionMin = 1000
	extendedDirectionMax = 1360
)

// DomainError is returned when a value lies outside every known encoding.
type DomainError struct {
	Value int
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("value %d is outside every known direction domain", e.Value)
}

// Precision unpacks a grid coordinate that may carry sub-unit precision.
// Values in (-1000, 1000) are returned unchanged; larger magnitudes are
// shifted one unit towards zero after scaling by 1/1000.
func Precision(v int) float64 {
	if v > -precisionThreshold && v < precisionThreshold {
		return float64(v)
	}
	if v < 0 {
		return float64(v)/1000 + 1
	}
	return float64(v)/1000 - 1
}

// extendedBuckets are the exclusive upper bounds of each 45 degree arc above
// extendedDirectionMin, rotating from Down. The final arc wraps back to Down
// and runs up to extendedDirectionMax inclusive.
var extendedBuckets = [...]struct {
	upper int
	dir   int
}{
	{1023, DirDown},
	{1068, DirDownLeft},
	{1113, DirLeft},
	{1158, DirUpLeft},
	{1203, DirUp},
	{1248, DirUpRight},
	{1293, DirRight},
	{1337, DirDownRight},
}

// Direction resolves a cut direction to its nominal code. Values 0-8 are
// nominal; 1000-1360 encode a rotation in degrees which is snapped to the
// nearest compass point.
func Direction(v int) (int, error) {
	if v >= DirUp && v <= DirAny {
		return v, nil
	}
	if v < extendedDirectionMin || v > extendedDirectionMax {
		return 0, &DomainError{Value: v}
	}
	for _, b := range extendedBuckets {
		if v < b.upper {
			return b.dir, nil
		}
	}
	return DirDown, nil
}

// WallGeometry unpacks the legacy obstacle type field into a vertical
// position and a height, both in grid units. 0 is a full-height wall and
// 1 a ceiling; larger values use the community packed encoding whose
// constants must not be altered.
func WallGeometry(t int) (y, height float64) {
	switch t {
	case 0:
		return 0, 5
	case 1:
		return 2, 3
	}

	extended := t >= 4001 && t <= 410000

	var h int
	if extended {
		h = (t - 4001) / 1000
	} else {
		h = t - 1000
	}
	scaledHeight := ((float64(h)/1000)*5)*1000 + 1000

	var startHeight float64
	if extended {
		startHeight = float64((t - 4001) % 1000)
	}
	layer := ((startHeight/750)*5)*1000 + 1334

	return layer/1000 - 2, (scaledHeight - 1000) / 1000
}
