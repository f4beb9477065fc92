package ui

import "charm.land/lipgloss/v2"

const splashArt = ` _       _
| |_ __ _| |_ ___ _ _ _ __
|  _/ _` + "`" + ` |  _/ -_) '_| '  \
 \__\__, |\__\___|_| |_|_|_|
    |___/`

// Banner is printed once when the session starts.
func Banner(version string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForegroundBlend(rainbowBlend...).
		Padding(0, 2).
		Render(splashArt + "\n\n" + timeStyle.Render("Telegram in your terminal  "+version))
}
