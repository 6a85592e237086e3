package styles

// DefaultTheme is the baseline dark palette.
var DefaultTheme = Theme{
	Name:        "default",
	BorderStyle: "rounded",
	Base: BaseColors{
		Background: "234",
		Foreground: "252",
		Muted:      "245",
		Accent:     "75",
		Border:     "240",
		Error:      "203",
	},
	Role: RoleColors{
		User:      "246",
		Assistant: "75",
		Teacher:   "41",
		System:    "220",
		Unknown:   "243",
	},
	Status: StatusColors{
		Connecting: "220",
		Open:       "41",
		Closed:     "203",
	},
	Chrome: ChromeColors{
		Header:       "111",
		Footer:       "110",
		SelectedItem: "75",
	},
}
