package styles

// HighContrastTheme favors saturated colors on a black background.
var HighContrastTheme = Theme{
	Name:        "high-contrast",
	BorderStyle: "sharp",
	Base: BaseColors{
		Background: "16",
		Foreground: "231",
		Muted:      "250",
		Accent:     "51",
		Border:     "231",
		Error:      "196",
	},
	Role: RoleColors{
		User:      "250",
		Assistant: "39",
		Teacher:   "46",
		System:    "226",
		Unknown:   "250",
	},
	Status: StatusColors{
		Connecting: "226",
		Open:       "46",
		Closed:     "196",
	},
	Chrome: ChromeColors{
		Header:       "231",
		Footer:       "231",
		SelectedItem: "51",
	},
}
