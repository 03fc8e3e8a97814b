package navigator

import (
	"bytes"
	"image"
	_ "image/png"
)

// computeDiff returns a normalized L1 pixel diff in [0,1] between two PNG
// screenshots, or -1 if either is missing or fails to decode ("unknown",
// per §4.2's visual diff guard — diff failures are non-fatal). No
// third-party image-diff library covers this narrow a primitive anywhere in
// the example pack, so this stays on the standard image package.
func computeDiff(prev, cur []byte) float64 {
	if len(prev) == 0 || len(cur) == 0 {
		return -1
	}
	a, _, err := image.Decode(bytes.NewReader(prev))
	if err != nil {
		return -1
	}
	b, _, err := image.Decode(bytes.NewReader(cur))
	if err != nil {
		return -1
	}
	ab := a.Bounds()
	bBounds := b.Bounds()
	if ab.Dx() != bBounds.Dx() || ab.Dy() != bBounds.Dy() {
		return -1
	}

	const sampleStride = 4 // sample every 4th pixel in each axis to keep this cheap
	var total, diffSum float64
	for y := ab.Min.Y; y < ab.Max.Y; y += sampleStride {
		for x := ab.Min.X; x < ab.Max.X; x += sampleStride {
			ar, ag, abl, _ := a.At(x, y).RGBA()
			br, bg, bbl, _ := b.At(x+bBounds.Min.X-ab.Min.X, y+bBounds.Min.Y-ab.Min.Y).RGBA()
			diffSum += channelDiff(ar, br) + channelDiff(ag, bg) + channelDiff(abl, bbl)
			total += 3 * 0xffff
		}
	}
	if total == 0 {
		return -1
	}
	return diffSum / total
}

func channelDiff(x, y uint32) float64 {
	if x > y {
		return float64(x - y)
	}
	return float64(y - x)
}
