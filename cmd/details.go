package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var detailsCmd = &cobra.Command{
	Use:   "details <provider> <url>",
	Short: "List dub groups and episodes of a content page",
	Args:  cobra.ExactArgs(2),
	RunE:  detailsRun,
}

func detailsRun(cmd *cobra.Command, args []string) error {
	o, err := newOrchestrator(cmd)
	if err != nil {
		return err
	}

	groups, err := o.LoadDetails(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("loading details: %w", err)
	}

	if flagJSON {
		return writeJSON(os.Stdout, groupsJSON(groups))
	}
	if len(groups) == 0 {
		fmt.Fprintln(os.Stderr, "No episodes found.")
		return nil
	}
	printGroups(os.Stdout, groups)
	return nil
}
