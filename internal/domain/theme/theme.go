// Package theme resolves the visitor's light/dark preference.
package theme

// Preference is the persisted theme value.
type Preference string

const (
	Dark  Preference = "dark"
	Light Preference = "light"
)

// Default is used when nothing is stored.
const Default = Dark

// Toggle returns the opposite preference.
func Toggle(p Preference) Preference {
	if p == Light {
		return Dark
	}
	return Light
}

// Resolve returns the preference to apply at startup. It begins at dark and
// applies a stored "light" once through Toggle; any other stored value
// leaves the default in place.
func Resolve(stored string) Preference {
	p := Default
	if Preference(stored) == Light {
		p = Toggle(p)
	}
	return p
}

// Icon names the indicator shown for p: a moon in light mode, a sun in dark.
func Icon(p Preference) string {
	if p == Light {
		return "moon"
	}
	return "sun"
}
