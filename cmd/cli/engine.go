package main

import (
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/yourusername/mediagrab-go/internal/app"
)

var updateEngineCmd = &cobra.Command{
	Use:   "update-engine",
	Short: "Update yt-dlp on the server",
	Long: `Runs the server's yt-dlp self-update (yt-dlp -U unless provider.update_command
is configured) and prints its output until it finishes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client()
		var update app.EngineUpdate
		if err := c.post("/api/v1/engine/update", nil, &update); err != nil {
			return err
		}

		conn, err := c.dial("/api/v1/engine/update/events")
		if err != nil {
			return err
		}
		defer conn.Close()

		printed := 0
		for {
			var n app.Notice
			if err := conn.ReadJSON(&n); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return nil
				}
				return fmt.Errorf("lost connection to server: %w", err)
			}
			if n.Update == nil {
				continue
			}

			for _, line := range n.Update.LogLines[min(printed, len(n.Update.LogLines)):] {
				fmt.Println(line)
			}
			printed = max(printed, len(n.Update.LogLines))

			if !n.Update.Running {
				if n.Update.Error != "" {
					return fmt.Errorf("update failed: %s", n.Update.Error)
				}
				return nil
			}
		}
	},
}
