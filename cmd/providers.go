package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"stream2media/internal/config"
	"stream2media/internal/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List known providers and whether they are enabled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printProviders(os.Stdout, provider.Default(), cfg)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("stream2media " + Version)
	},
}

func printProviders(w io.Writer, reg *provider.Registry, c *config.Config) {
	enabled := make(map[string]bool)
	for _, id := range c.EnabledProviders() {
		enabled[id] = true
	}

	for _, id := range reg.IDs() {
		state := dimStyle.Render("disabled")
		if enabled[id] {
			state = headingStyle.Render("enabled")
		}
		family := ""
		if p, err := reg.New(id, provider.Deps{}); err == nil {
			if a, ok := p.(*provider.Adapter); ok {
				family = a.Site().Family.String()
			}
		}
		fmt.Fprintf(w, "%-10s %-15s %s\n", id, family, state)
	}
}
