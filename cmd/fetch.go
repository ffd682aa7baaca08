package cmd

import (
	"github.com/spf13/cobra"

	"stream2media/internal/media"
)

var (
	flagPage  bool
	flagTitle string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <provider> <url>",
	Short: "Download an episode player page, or the first episode of a content page",
	Long: `fetch downloads the stream behind a player page URL.
With --page the URL is treated as a content page and its first episode is downloaded.`,
	Args: cobra.ExactArgs(2),
	RunE: fetchRun,
}

func init() {
	fetchCmd.Flags().BoolVar(&flagPage, "page", false, "Treat the URL as a content page")
	fetchCmd.Flags().StringVar(&flagTitle, "title", "", "Title used to name the output file")
}

func fetchRun(cmd *cobra.Command, args []string) error {
	o, err := newOrchestrator(cmd)
	if err != nil {
		return err
	}

	providerID, url := args[0], args[1]
	if flagPage {
		hit := media.SearchHit{Title: flagTitle, Link: url, Provider: providerID}
		return o.ProcessItem(cmd.Context(), &hit)
	}

	ep := media.NewEpisode(providerID, providerID, "Episode", url, providerID)
	return o.ProcessEpisode(cmd.Context(), flagTitle, ep)
}
