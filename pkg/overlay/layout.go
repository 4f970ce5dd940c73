// Package overlay draws the latest classification onto the kiosk camera
// feed: a filled label box in the top-left corner with "label N%" on it.
package overlay

import (
	"image"

	"github.com/teslashibe/go-smartbin/pkg/classifier"
)

// Label box geometry in display pixels.
const (
	BoxX       = 10
	BoxY       = 10
	BoxHeight  = 30
	BoxPadding = 100 // added to the per-character width
	CharWidth  = 10
	TextX      = 15
	TextY      = 30 // baseline
)

// Layout is where a caption goes on the display.
type Layout struct {
	Box     image.Rectangle
	Text    string
	TextPos image.Point
}

// Text returns the caption for obs: the label and its confidence as a
// whole percentage, rounded down.
func Text(obs classifier.Observation) string {
	return obs.String()
}

// LayoutFor computes the label box for obs. The box width grows with the
// label length, not the rendered caption.
func LayoutFor(obs classifier.Observation) Layout {
	w := len(obs.Label)*CharWidth + BoxPadding
	return Layout{
		Box:     image.Rect(BoxX, BoxY, BoxX+w, BoxY+BoxHeight),
		Text:    Text(obs),
		TextPos: image.Pt(TextX, TextY),
	}
}
