package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/yourusername/mediagrab-go/api/handlers"
	"github.com/yourusername/mediagrab-go/internal/app"
	"github.com/yourusername/mediagrab-go/internal/domain"
)

const progressBarWidth = 30

var downloadCmd = &cobra.Command{
	Use:   "download [url]",
	Short: "Download the current media, or the media at url",
	Long: `Starts a download of the media currently shown by the server (see "info" and "select").
When a URL is given it is looked up first. Unless --detach is set the command follows
the download until it finishes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		audio, _ := cmd.Flags().GetBool("audio")
		option, _ := cmd.Flags().GetInt("quality")
		filename, _ := cmd.Flags().GetString("filename")
		dir, _ := cmd.Flags().GetString("dir")
		detach, _ := cmd.Flags().GetBool("detach")
		verbose, _ := cmd.Flags().GetBool("verbose")

		c := client()
		var sourceURL string
		if len(args) == 1 {
			state, err := submit(c, args[0])
			if err != nil {
				return err
			}
			if state.Descriptor == nil {
				return fmt.Errorf("%s did not resolve to a single media item", args[0])
			}
			sourceURL = state.Descriptor.SourceURL
		}

		req := handlers.DownloadRequest{
			Mode:      domain.ModeVideo,
			Option:    option,
			SourceURL: sourceURL,
			Filename:  filename,
			Directory: dir,
		}
		if audio {
			req.Mode = domain.ModeAudio
		}

		var task domain.DownloadTask
		if err := c.post("/api/v1/downloads", req, &task); err != nil {
			return err
		}

		fmt.Printf("Download started: %s\n", task.Spec.Title)
		fmt.Printf("  ID:   %s\n", task.ID)
		fmt.Printf("  Into: %s\n", task.Spec.Directory)
		if detach {
			return nil
		}
		return follow(c, task.ID, verbose)
	},
}

// follow streams a task's notices until it finishes
func follow(c *apiClient, id string, verbose bool) error {
	conn, err := c.dial("/api/v1/downloads/" + id + "/events")
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		var n app.Notice
		if err := conn.ReadJSON(&n); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("lost connection to server: %w", err)
		}
		if n.Task == nil {
			continue
		}

		switch n.Kind {
		case app.NoticeTaskLog:
			if verbose {
				fmt.Printf("\r%s\n", n.Line)
			}
		case app.NoticeTaskFinished, handlers.NoticeSnapshot:
			if !n.Task.Status.IsTerminal() {
				renderProgress(n.Task.Progress)
				continue
			}
			fmt.Println()
			if n.Task.Status == domain.StatusFailed {
				return fmt.Errorf("download failed: %s", n.Task.ErrorMessage)
			}
			fmt.Printf("Saved: %s\n", n.Task.FinalPath)
			return nil
		default:
			renderProgress(n.Task.Progress)
		}
	}
}

func renderProgress(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * progressBarWidth / 100
	fmt.Printf("\r[%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat(".", progressBarWidth-filled), percent)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloads started by the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")

		path := "/api/v1/downloads"
		if status != "" {
			path += "?status=" + status
		}

		var tasks []domain.DownloadTask
		if err := client().get(path, &tasks); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tMODE\tSTATUS\tPROGRESS\tCREATED")
		for _, t := range tasks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d%%\t%s\n",
				truncate(t.ID, 8),
				truncate(t.Spec.Title, 40),
				t.Spec.Mode,
				t.Status,
				t.Progress,
				t.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get download details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		showLog, _ := cmd.Flags().GetBool("log")

		var task domain.DownloadTask
		if err := client().get("/api/v1/downloads/"+args[0], &task); err != nil {
			return err
		}

		fmt.Printf("Download Details:\n")
		fmt.Printf("  ID:        %s\n", task.ID)
		fmt.Printf("  Title:     %s\n", task.Spec.Title)
		fmt.Printf("  URL:       %s\n", task.Spec.SourceURL)
		fmt.Printf("  Mode:      %s\n", task.Spec.Mode)
		fmt.Printf("  Format:    %s\n", task.Spec.FormatID())
		fmt.Printf("  Status:    %s (%d%%)\n", task.Status, task.Progress)
		fmt.Printf("  Directory: %s\n", task.Spec.Directory)
		fmt.Printf("  Created:   %s\n", task.CreatedAt.Format("2006-01-02 15:04:05"))
		if task.FinalPath != "" {
			fmt.Printf("  File:      %s\n", task.FinalPath)
		}
		if task.ErrorMessage != "" {
			fmt.Printf("  Error:     %s\n", task.ErrorMessage)
		}
		if showLog {
			fmt.Println()
			for _, line := range task.LogLines {
				fmt.Println(line)
			}
		}
		return nil
	},
}

var dismissCmd = &cobra.Command{
	Use:   "dismiss [id]",
	Short: "Remove a finished download from the list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client().delete("/api/v1/downloads/" + args[0]); err != nil {
			return err
		}
		fmt.Println("Download dismissed")
		return nil
	},
}

func init() {
	downloadCmd.Flags().BoolP("audio", "a", false, "Download audio only (mp3)")
	downloadCmd.Flags().IntP("quality", "q", 0, "Video option index, as listed by info")
	downloadCmd.Flags().StringP("filename", "f", "", "Output filename without extension")
	downloadCmd.Flags().StringP("dir", "d", "", "Output directory")
	downloadCmd.Flags().Bool("detach", false, "Return once the download has started")
	downloadCmd.Flags().BoolP("verbose", "v", false, "Print yt-dlp output")
	listCmd.Flags().StringP("status", "s", "", "Filter by status")
	getCmd.Flags().BoolP("log", "l", false, "Print the process log")
}
