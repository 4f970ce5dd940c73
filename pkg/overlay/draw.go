package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/teslashibe/go-smartbin/pkg/camera"
	"github.com/teslashibe/go-smartbin/pkg/classifier"
	"gocv.io/x/gocv"
)

var (
	// Cyan is the label box fill.
	Cyan = color.RGBA{R: 0, G: 255, B: 255, A: 255}
	// Black is the caption color.
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

// Style holds the caption font and colors.
type Style struct {
	Face      gocv.HersheyFont
	Scale     float64
	Thickness int
	LineType  gocv.LineType
	Fill      color.RGBA
	Color     color.RGBA
}

// DefaultStyle approximates a 16px sans-serif caption.
func DefaultStyle() Style {
	return Style{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.5,
		Thickness: 1,
		LineType:  gocv.LineAA,
		Fill:      Cyan,
		Color:     Black,
	}
}

// Draw paints the label box and caption for obs onto img. A nil obs
// draws nothing, which is how the overlay is cleared.
func Draw(img *gocv.Mat, obs *classifier.Observation, style Style) {
	if obs == nil {
		return
	}
	l := LayoutFor(*obs)

	gocv.Rectangle(img, l.Box, style.Fill, -1)
	gocv.PutTextWithParams(img, l.Text, l.TextPos,
		style.Face, style.Scale, style.Color, style.Thickness,
		style.LineType, false)
}

// Renderer turns a captured frame into a display frame with the overlay.
type Renderer struct {
	Width   int
	Height  int
	Quality int
	Style   Style
}

// NewRenderer sizes output to the camera display area.
func NewRenderer(cfg camera.Config) *Renderer {
	return &Renderer{
		Width:   cfg.DisplayWidth,
		Height:  cfg.DisplayHeight,
		Quality: cfg.Quality,
		Style:   DefaultStyle(),
	}
}

// Render decodes frame, resizes it to the display area, draws obs (if
// any) and returns the JPEG bytes.
func (r *Renderer) Render(frame camera.Frame, obs *classifier.Observation) ([]byte, error) {
	if frame.Empty() {
		return nil, camera.ErrEmptyFrame
	}

	img, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("overlay: decode frame %d: %w", frame.Seq, err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, camera.ErrEmptyFrame
	}

	if r.Width > 0 && r.Height > 0 && (img.Cols() != r.Width || img.Rows() != r.Height) {
		gocv.Resize(img, &img, image.Pt(r.Width, r.Height), 0, 0, gocv.InterpolationLinear)
	}

	Draw(&img, obs, r.Style)

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img,
		[]int{gocv.IMWriteJpegQuality, r.Quality})
	if err != nil {
		return nil, fmt.Errorf("overlay: encode frame %d: %w", frame.Seq, err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}
