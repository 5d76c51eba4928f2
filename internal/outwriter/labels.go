package outwriter

import "github.com/fatih/color"

// Achievement labels, from best to worst.
const (
	ExceededValue = "Exceeded"
	OnTrackValue  = "On track"
	AtRiskValue   = "At risk"
	BehindValue   = "Behind"
)

var (
	exceededAttrs = []color.Attribute{color.FgGreen, color.Bold}
	onTrackAttrs  = []color.Attribute{color.FgCyan}
	atRiskAttrs   = []color.Attribute{color.FgYellow}
	behindAttrs   = []color.Attribute{color.FgRed, color.Bold}
)

// PlainLabel buckets an achievement percentage.
func PlainLabel(achievementPct float64) string {
	switch {
	case achievementPct >= 100:
		return ExceededValue
	case achievementPct >= 80:
		return OnTrackValue
	case achievementPct >= 50:
		return AtRiskValue
	default:
		return BehindValue
	}
}

// ColorLabel is PlainLabel wrapped in terminal colors when colorize is set.
func ColorLabel(achievementPct float64, colorize bool) string {
	text := PlainLabel(achievementPct)
	var attrs []color.Attribute
	switch text {
	case ExceededValue:
		attrs = exceededAttrs
	case OnTrackValue:
		attrs = onTrackAttrs
	case AtRiskValue:
		attrs = atRiskAttrs
	default:
		attrs = behindAttrs
	}
	return paint(text, colorize, attrs...)
}

func paint(text string, colorize bool, attrs ...color.Attribute) string {
	c := color.New(attrs...)
	if colorize {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(text)
}
