// Package compose builds stacked debug visualizations from the named
// intermediate images of one pipeline run.
package compose

import (
	"errors"
	"image"
	"sort"

	"gocv.io/x/gocv"
)

// ErrMissingFinal indicates the debug image map lacks the "final" entry
// that defines the canonical tile size.
var ErrMissingFinal = errors.New(`debug image map has no "final" entry`)

// Stack lays the stage images on top of each other in lexicographic key
// order and returns the composed canvas. The "final" entry's dimensions
// define the tile size; the canvas is tile height times (count + 1)
// rows of 3-channel zeros, and the band at offset zero stays blank.
// Entries smaller than the tile are placed top-left within their band,
// leaving the rest zero-filled; larger entries are clipped to the tile.
//
// Single-channel entries are converted to 3 channels in place: the map
// entry is replaced with the converted Mat and the original is closed.
// The caller still owns every Mat left in the map plus the canvas.
func Stack(imgs map[string]gocv.Mat) (gocv.Mat, error) {
	final, ok := imgs["final"]
	if !ok {
		return gocv.NewMat(), ErrMissingFinal
	}

	tileH, tileW := final.Rows(), final.Cols()
	canvas := gocv.Zeros(tileH*(len(imgs)+1), tileW, gocv.MatTypeCV8UC3)

	names := make([]string, 0, len(imgs))
	for name := range imgs {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		img := imgs[name]
		if img.Channels() == 1 {
			color := gocv.NewMat()
			gocv.CvtColor(img, &color, gocv.ColorGrayToBGR)
			img.Close()
			imgs[name] = color
			img = color
		}

		h, w := img.Rows(), img.Cols()
		if h > tileH {
			h = tileH
		}
		if w > tileW {
			w = tileW
		}

		offset := (i + 1) * tileH
		band := canvas.Region(image.Rect(0, offset, w, offset+h))
		src := img.Region(image.Rect(0, 0, w, h))
		src.CopyTo(&band)
		src.Close()
		band.Close()
	}

	return canvas, nil
}
