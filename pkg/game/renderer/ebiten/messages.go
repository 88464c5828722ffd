package ebiten

import (
	"time"

	"worldview/pkg/game/session"
)

// visibleMessages returns the newest notifications younger than
// messageLifetime, oldest first, with the alpha they are drawn at.
func visibleMessages(notes []session.Notification, now time.Time) []messageEntry {
	var out []messageEntry
	for _, n := range notes {
		alpha := messageAlpha(now.Sub(n.At))
		if alpha <= 0 {
			continue
		}
		out = append(out, messageEntry{Text: n.Text, Kind: n.Kind, Alpha: alpha})
	}
	if over := len(out) - maxMessages; over > 0 {
		out = out[over:]
	}
	return out
}

// messageAlpha is 1 for young messages and fades linearly to 0 over the
// last part of the lifetime.
func messageAlpha(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	if age >= messageLifetime {
		return 0
	}
	fadeStart := time.Duration(float64(messageLifetime) * messageFadeFrom)
	if age <= fadeStart {
		return 1
	}
	return 1 - float64(age-fadeStart)/float64(messageLifetime-fadeStart)
}
