package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/mediagrab-go/api/handlers"
	"github.com/yourusername/mediagrab-go/internal/domain"
)

var (
	serverURL   string
	noAutoStart bool
	settleWait  time.Duration
	rootCmd     = &cobra.Command{
		Use:           "mediagrab",
		Short:         "MediaGrab CLI - search, inspect and download online video",
		Long:          `A command-line client for the MediaGrab server. Search terms and media URLs go through yt-dlp on the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")
	rootCmd.PersistentFlags().DurationVar(&settleWait, "wait", 2*time.Minute, "How long to wait for a search or lookup")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(dismissCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(updateEngineCmd)
}

// client returns an API client, starting the server first unless --no-auto-start
func client() *apiClient {
	if !noAutoStart {
		if err := ensureServerRunning(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	return newAPIClient(serverURL)
}

// awaitState blocks until the server has finished the current search or lookup
func awaitState(c *apiClient) (*handlers.StateResponse, error) {
	var state handlers.StateResponse
	if err := c.get("/api/v1/state?wait="+url.QueryEscape(settleWait.String()), &state); err != nil {
		return nil, err
	}
	if !state.Settled {
		return nil, fmt.Errorf("still %s after %v", state.Phase, settleWait)
	}
	if state.Message != "" && state.Descriptor == nil && len(state.Results) == 0 {
		return &state, fmt.Errorf("%s", state.Message)
	}
	return &state, nil
}

// submit sends text as a query and waits for the outcome
func submit(c *apiClient, text string) (*handlers.StateResponse, error) {
	if err := c.post("/api/v1/query", handlers.QueryRequest{Query: text}, nil); err != nil {
		return nil, err
	}
	return awaitState(c)
}

var searchCmd = &cobra.Command{
	Use:   "search [terms...]",
	Short: "Search for videos",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := submit(client(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		printState(state)
		return nil
	},
}

var selectCmd = &cobra.Command{
	Use:   "select [index]",
	Short: "Look up one of the current search results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("index must be an integer: %w", err)
		}

		c := client()
		if err := c.post("/api/v1/results/"+strconv.Itoa(index)+"/select", nil, nil); err != nil {
			return err
		}
		state, err := awaitState(c)
		if err != nil {
			return err
		}
		printState(state)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info [url]",
	Short: "Show title and formats of a media URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := submit(client(), args[0])
		if err != nil {
			return err
		}
		printState(state)
		return nil
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the current results or media",
	RunE: func(cmd *cobra.Command, args []string) error {
		var state handlers.StateResponse
		if err := client().get("/api/v1/state", &state); err != nil {
			return err
		}
		printState(&state)
		return nil
	},
}

func printState(state *handlers.StateResponse) {
	switch {
	case state.Descriptor != nil:
		printDescriptor(state.Descriptor)
	case len(state.Results) > 0:
		printResults(state.Results)
	default:
		fmt.Printf("Phase: %s\n", state.Phase)
	}
	if state.Message != "" {
		fmt.Fprintf(os.Stderr, "%s\n", state.Message)
	}
}

func printResults(results []domain.VideoSummary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTITLE\tCHANNEL\tLENGTH\tVIEWS")
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			i,
			truncate(r.Title, 50),
			truncate(r.Channel, 24),
			strings.TrimPrefix(domain.FormatDuration(r.DurationSeconds), "Length: "),
			strings.TrimSuffix(domain.FormatViewCount(r.ViewCount), " Views"))
	}
	w.Flush()
}

func printDescriptor(d *domain.MediaDescriptor) {
	fmt.Printf("%s\n", d.Title)
	fmt.Printf("  Channel: %s\n", d.Channel)
	fmt.Printf("  %s\n", domain.FormatDuration(d.DurationSeconds))
	fmt.Printf("  %s\n", domain.FormatViewCount(d.ViewCount))
	fmt.Printf("  URL:     %s\n", d.SourceURL)
	if d.ThumbnailPath != "" {
		fmt.Printf("  Thumb:   %s\n", d.ThumbnailPath)
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OPTION\tMODE\tQUALITY\tEXT")
	for i, v := range d.VideoQualityOptions {
		fmt.Fprintf(w, "%d\tvideo\t%s\t%s\n", i, v.Label(), v.Ext)
	}
	if d.BestAudio != nil {
		fmt.Fprintf(w, "-\taudio\t%s\t%s\n", d.BestAudio.Label(), d.BestAudio.Ext)
	}
	w.Flush()
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
