// Package ebiten hosts scene views in an Ebiten window.
package ebiten

import (
	"image/color"
	"time"
)

// Color palette for the window chrome. Map colours live with the scene.
var (
	colorBackground      = color.RGBA{26, 26, 46, 255}    // Dark blue-gray
	colorMinimapBorder   = color.RGBA{120, 130, 180, 255} // Soft blue-purple-gray
	colorMinimapBg       = color.RGBA{15, 15, 26, 255}    // Darker for the minimap
	colorPanelBackground = color.RGBA{30, 30, 50, 220}    // Semi-transparent dark
	colorText            = color.RGBA{200, 210, 245, 255} // Soft off-white with blue-purple tint
	colorSubtle          = color.RGBA{120, 130, 180, 255}
	colorConnected       = color.RGBA{0, 220, 0, 255}
	colorOffline         = color.RGBA{255, 100, 100, 255}
	colorDeviceLost      = color.RGBA{255, 220, 100, 255} // Yellow for warnings
	colorSystem          = color.RGBA{180, 150, 250, 255} // Blue-purple for client notices
	colorPlayerOutline   = color.RGBA{0, 255, 0, 255}     // Bright green
)

// Panel layout
const (
	statusBarHeight = 28
	minimapMargin   = 12
	minimapMinSize  = 96
	minimapPadding  = 4
	messagesPadding = 10
	maxMessages     = 6
)

const (
	baseFontSize = 16.0
	uiFontSize   = 13.0
	minLabelSize = 7.0 // Labels smaller than this are not drawn
)

const (
	keyRepeatInitialDelay = 500 // Initial delay before first repeat (milliseconds)
	keyRepeatInterval     = 100 // Interval between repeat events (milliseconds)
)

const (
	messageLifetime = 10 * time.Second
	messageFadeFrom = 0.7 // Fraction of the lifetime after which messages fade

	deviceRestoreDelay = 2 * time.Second
	eventsPerFrame     = 64
)
