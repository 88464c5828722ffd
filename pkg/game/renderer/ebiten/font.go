package ebiten

import (
	"bytes"
	"fmt"

	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// fonts holds the font sources and the faces cached per size.
type fonts struct {
	sans, sansBold, mono *text.GoTextFaceSource

	cachedSansFace     *text.GoTextFace
	cachedSansBoldFace *text.GoTextFace
	cachedLabelFace    *text.GoTextFace
	cachedLabelSize    float64
}

func loadFonts() (*fonts, error) {
	sans, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err != nil {
		return nil, fmt.Errorf("load sans font: %w", err)
	}
	bold, err := text.NewGoTextFaceSource(bytes.NewReader(gobold.TTF))
	if err != nil {
		return nil, fmt.Errorf("load bold font: %w", err)
	}
	mono, err := text.NewGoTextFaceSource(bytes.NewReader(gomono.TTF))
	if err != nil {
		return nil, fmt.Errorf("load mono font: %w", err)
	}
	return &fonts{sans: sans, sansBold: bold, mono: mono}, nil
}

// sansFace returns the UI face.
func (f *fonts) sansFace() *text.GoTextFace {
	if f.cachedSansFace == nil {
		f.cachedSansFace = &text.GoTextFace{Source: f.sans, Size: uiFontSize}
	}
	return f.cachedSansFace
}

// sansBoldFace returns the bold UI face, used for banners.
func (f *fonts) sansBoldFace() *text.GoTextFace {
	if f.cachedSansBoldFace == nil {
		f.cachedSansBoldFace = &text.GoTextFace{Source: f.sansBold, Size: baseFontSize}
	}
	return f.cachedSansBoldFace
}

// labelFace returns a mono face for entity labels at size. The last size is
// cached since every label of a surface is drawn at the same scale.
func (f *fonts) labelFace(size float64) *text.GoTextFace {
	if f.cachedLabelFace == nil || f.cachedLabelSize != size {
		f.cachedLabelSize = size
		f.cachedLabelFace = &text.GoTextFace{Source: f.mono, Size: size}
	}
	return f.cachedLabelFace
}

// labelSize scales the label font to the tile size on screen.
func labelSize(tileSize int, scale float64) float64 {
	return float64(tileSize) * scale * 0.35
}
