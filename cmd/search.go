package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"stream2media/internal/logger"
	"stream2media/internal/media"
	"stream2media/internal/orchestrator"
	"stream2media/internal/ui"
)

// searchRun is the default command: stream2media <query>
func searchRun(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	if query == "" {
		var err error
		query, err = ui.Input("Search")
		if err != nil {
			return fmt.Errorf("no search query provided")
		}
	}

	ctx := cmd.Context()
	logger.From(ctx).Debug("searching", "query", query)

	o, err := newOrchestrator(cmd)
	if err != nil {
		return err
	}

	hits := o.Search(ctx, query)
	if flagJSON {
		return writeJSON(os.Stdout, hitsJSON(hits))
	}
	if len(hits) == 0 {
		fmt.Fprintln(os.Stderr, "No results found.")
		return nil
	}

	if flagFirst {
		return o.ProcessItem(ctx, hits[0])
	}

	idx, err := ui.Select("Select", formatHits(hits))
	if err != nil {
		return err
	}
	return chooseEpisode(ctx, o, hits[idx])
}

// chooseEpisode loads the hit's dub groups, lets the user pick a group and
// an episode, and processes it.
func chooseEpisode(ctx context.Context, o *orchestrator.Orchestrator, hit media.SearchHit) error {
	groups, err := o.LoadDetails(ctx, hit.Provider, hit.Link)
	if err != nil {
		return fmt.Errorf("loading details: %w", err)
	}
	if len(groups) == 0 {
		return fmt.Errorf("no episodes found for %q", hit.Title)
	}

	// Select dub group (skip the prompt when there is only one)
	gi := 0
	if len(groups) > 1 {
		gi, err = ui.Select("Dub group", formatGroups(groups))
		if err != nil {
			return err
		}
	}
	group := groups[gi]

	ei, err := ui.Select("Episode", formatEpisodes(group.Episodes))
	if err != nil {
		return err
	}

	return o.ProcessEpisode(ctx, hit.Title, group.Episodes[ei])
}
