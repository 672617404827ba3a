package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yourusername/mediagrab-go/internal/domain"
	"github.com/yourusername/mediagrab-go/pkg/logger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List finished downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		q := url.Values{}
		if status != "" {
			q.Set("status", status)
		} else {
			q.Set("limit", strconv.Itoa(limit))
		}

		var records []domain.DownloadRecord
		if err := client().get("/api/v1/history?"+q.Encode(), &records); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tMODE\tSTATUS\tFILE\tCREATED")
		for _, r := range records {
			result := r.FinalPath
			if r.Status == domain.StatusFailed {
				result = r.ErrorMessage
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				truncate(r.ID, 8),
				truncate(r.Title, 40),
				r.Mode,
				r.Status,
				truncate(result, 50),
				r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show download statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		var stats domain.HistoryStats
		if err := client().get("/api/v1/history/stats", &stats); err != nil {
			return err
		}

		fmt.Println("Download Statistics:")
		fmt.Printf("  Total:     %d\n", stats.Total)
		fmt.Printf("  Succeeded: %d\n", stats.Succeeded)
		fmt.Printf("  Failed:    %d\n", stats.Failed)
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "Show server logs (task, error or download)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")
		limit, _ := cmd.Flags().GetInt("limit")
		search, _ := cmd.Flags().GetString("search")

		if !logger.IsValidCategory(logger.LogCategory(args[0])) {
			return fmt.Errorf("unknown log category %q", args[0])
		}

		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		if date != "" {
			q.Set("date", date)
		}
		path := "/api/v1/logs/" + args[0]
		if search != "" {
			q.Set("q", search)
			path += "/search"
		}

		var result struct {
			Count   int               `json:"count"`
			Entries []logger.LogEntry `json:"entries"`
		}
		if err := client().get(path+"?"+q.Encode(), &result); err != nil {
			return err
		}

		for _, e := range result.Entries {
			if e.Level == "" {
				fmt.Println(e.Message)
				continue
			}
			fmt.Printf("%s %-5s %s", e.Timestamp, e.Level, e.Message)
			for k, v := range e.Fields {
				fmt.Printf(" %s=%v", k, v)
			}
			fmt.Println()
		}
		fmt.Fprintf(os.Stderr, "%d entries\n", result.Count)
		return nil
	},
}

func init() {
	historyCmd.Flags().StringP("status", "s", "", "Filter by status (succeeded, failed)")
	historyCmd.Flags().IntP("limit", "n", 20, "Number of records")
	logsCmd.Flags().String("date", "", "Day to read, YYYY-MM-DD (default today)")
	logsCmd.Flags().IntP("limit", "n", 100, "Number of entries")
	logsCmd.Flags().String("search", "", "Only entries containing this text")
}
