package config

// MenuItem is one navigation entry. Once persisted the menu belongs to the user.
type MenuItem struct {
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

// Menu is the persisted navigation. A nil Menu was never set and is left out
// of the document; an empty one is a deliberate "no navigation" and is kept.
type Menu []MenuItem

// IsZero lets yaml omitempty drop only an unset menu.
func (m Menu) IsZero() bool { return m == nil }
