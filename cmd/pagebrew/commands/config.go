package commands

import (
	"fmt"

	"git.home.luguber.info/inful/pagebrew/internal/config"
	"git.home.luguber.info/inful/pagebrew/internal/logfields"
	"git.home.luguber.info/inful/pagebrew/internal/themes"
)

// ConfigCmd updates configuration keys, commits them and prints the result.
// Flags left empty keep their current value.
type ConfigCmd struct {
	Theme       string `help:"Site theme"`
	Name        string `help:"Site name"`
	Description string `help:"Site description"`
	Footer      string `help:"Footer text"`
	OutputDir   string `name:"outputDir" help:"Output directory, relative to the content root"`
}

func (c *ConfigCmd) Run(g *Global, root *CLI) error {
	_, store, err := root.openStore()
	if err != nil {
		return err
	}
	if c.Theme != "" {
		if _, err := themes.Get(c.Theme); err != nil {
			return err
		}
	}
	store.Update(c.patch())
	written, err := store.Commit()
	if err != nil {
		return err
	}
	if written {
		g.logger().Info("Configuration saved", logfields.Path(store.Location()))
	}
	data, err := store.Marshal()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprint(stdout, string(data))
	return nil
}

func (c *ConfigCmd) patch() config.Patch {
	opt := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}
	return config.Patch{
		Theme:       opt(c.Theme),
		Name:        opt(c.Name),
		Description: opt(c.Description),
		Footer:      opt(c.Footer),
		OutputDir:   opt(c.OutputDir),
	}
}
