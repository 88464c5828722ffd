package renderer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gookit/color"
	"github.com/leonelquinteros/gotext"
)

// dynamicGet is used for runtime translation key lookups.
var dynamicGet = gotext.Get

var (
	ColorSubtle  = color.Style{color.FgGray, color.OpBold}
	ColorAction  = color.Style{color.FgMagenta}
	ColorDenied  = color.Style{color.FgRed, color.OpBold}
	ColorOK      = color.Style{color.FgGreen, color.OpBold}
	ColorEntity  = color.Style{color.FgBlue, color.OpBold}
	ColorWarning = color.Style{color.FgYellow, color.OpBold}

	regexpStringFunctions = regexp.MustCompile(`([a-zA-Z_]*){([^{}]+)}`)
)

// FormatString formats a string with markup. Supported functions:
//
//	GT{ID}       translated message id
//	ENTITY{x}    entity name
//	OK{x}        good news
//	DENIED{x}    bad news
//	WARN{x}      warning
//	SUBTLE{x}    secondary text
//
// Unknown functions are left as they are.
func FormatString(msg string, a ...any) string {
	if len(a) > 0 {
		msg = fmt.Sprintf(msg, a...)
	}
	return FormatMarkup(msg)
}

// FormatMarkup applies the markup functions of FormatString to text that is
// already formatted.
func FormatMarkup(msg string) string {
	ret := msg

	for _, match := range regexpStringFunctions.FindAllStringSubmatch(ret, -1) {
		function, operand := match[1], match[2]

		var val string
		switch function {
		case "GT":
			val = dynamicGet(operand)
		case "ENTITY":
			val = ColorEntity.Sprint(operand)
		case "OK":
			val = ColorOK.Sprint(operand)
		case "DENIED":
			val = ColorDenied.Sprint(operand)
		case "WARN":
			val = ColorWarning.Sprint(operand)
		case "SUBTLE":
			val = ColorSubtle.Sprint(operand)
		default:
			continue
		}
		ret = strings.Replace(ret, match[0], val, 1)
	}
	return ret
}

// StripMarkup removes markup functions, keeping their (translated) text.
func StripMarkup(msg string) string {
	return color.ClearCode(FormatMarkup(msg))
}

// NotificationMarkup wraps a notification in the markup of its kind.
// System notifications carry message ids and are translated.
func NotificationMarkup(kind, text string) string {
	switch kind {
	case "system":
		return "WARN{" + dynamicGet(text) + "}"
	case "combat":
		return "DENIED{" + text + "}"
	case "dialog":
		return "ENTITY{" + text + "}"
	default:
		return text
	}
}
