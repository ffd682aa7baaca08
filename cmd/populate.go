package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var populateCmd = &cobra.Command{
	Use:   "populate <query>",
	Short: "Search all providers and load episode lists for every hit",
	Long: `populate checks which hits actually carry episodes. Details are loaded
concurrently, at most max_parallel at a time.`,
	Args: cobra.MinimumNArgs(1),
	RunE: populateRun,
}

func populateRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	o, err := newOrchestrator(cmd)
	if err != nil {
		return err
	}

	hits := o.Search(ctx, strings.Join(args, " "))
	if len(hits) == 0 {
		fmt.Fprintln(os.Stderr, "No results found.")
		return nil
	}

	details := o.Populate(ctx, hits)
	if flagJSON {
		type row struct {
			hitJSON
			Groups []groupJSON `json:"groups"`
			Error  string      `json:"error,omitempty"`
		}
		rows := make([]row, len(details))
		for i, d := range details {
			rows[i] = row{hitJSON: hitsJSON(hits[i : i+1])[0], Groups: groupsJSON(d.Groups)}
			if d.Err != nil {
				rows[i].Error = d.Err.Error()
			}
		}
		return writeJSON(os.Stdout, rows)
	}

	printPopulated(os.Stdout, details)
	return nil
}
