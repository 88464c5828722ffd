package ebiten

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/leonelquinteros/gotext"
)

// dynamicGet looks up message ids that are only known at runtime.
var dynamicGet = gotext.Get

// drawColoredText draws text with a specific color using the UI face.
// Translates the string before drawing; text that is not a message id is
// returned unchanged by the locale lookup.
func (h *Host) drawColoredText(screen *ebiten.Image, str string, x, y float64, col color.Color) {
	h.drawColoredTextWithFace(screen, dynamicGet(str), x, y, col, h.fonts.sansFace())
}

// drawColoredTextWithFace draws already translated text. Uses the face's
// size for the baseline offset so different font sizes position correctly.
func (h *Host) drawColoredTextWithFace(screen *ebiten.Image, str string, x, y float64, col color.Color, face *text.GoTextFace) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y+face.Size)
	op.ColorScale.ScaleWithColor(col)
	text.Draw(screen, str, face, op)
}

// textWidth returns the width of a string in pixels for face.
func textWidth(str string, face *text.GoTextFace) float64 {
	w, _ := text.Measure(str, face, 0)
	return w
}

// applyAlpha applies an alpha value (0.0 to 1.0) to a color
func applyAlpha(c color.Color, alpha float64) color.Color {
	if alpha <= 0 {
		return color.RGBA{}
	}
	if alpha > 1 {
		alpha = 1
	}
	r, g, b, a := c.RGBA()
	// Fade to transparent black, not transparent bright colours
	return color.RGBA{
		R: uint8(float64(r>>8) * alpha),
		G: uint8(float64(g>>8) * alpha),
		B: uint8(float64(b>>8) * alpha),
		A: uint8(float64(a>>8) * alpha),
	}
}
