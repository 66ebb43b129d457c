package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	humanize "github.com/dustin/go-humanize"
	"github.com/prettymuchbryce/globwatch/internal/config"
	"github.com/prettymuchbryce/globwatch/internal/ipc"
	"github.com/spf13/cobra"
)

var (
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	labelStyle     = lipgloss.NewStyle().Width(12)
	boxStyle       = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("2")).
			Padding(0, 4)
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print status information (watch count, patterns, uptime)",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := ipc.Connect()
		if err != nil {
			return nil
		}
		defer client.Close()

		status, err := client.Status()
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		// Show welcome box at top if using default config
		isDefault := config.IsDefaultConfig(status.ConfigPath)
		if isDefault {
			welcome := "👋 Welcome to globwatch\n\n" + "1. Get started by adding watch patterns to the config file at the path below.\n" +
				"2. Reload patterns with " + highlightStyle.Render("globwatch reload") + " after making changes."
			fmt.Println(boxStyle.Render(welcome))
		}

		// Build watches value
		var watchesValue string
		if isDefault {
			watchesValue = dimStyle.Render("none")
		} else if len(status.Watches) == 0 {
			watchesValue = "⚠️ none"
		} else {
			var lines []string
			for _, w := range status.Watches {
				var statsLine string
				if w.LastFiredAt != nil && !w.LastFiredAt.IsZero() {
					statsLine = dimStyle.Render(fmt.Sprintf("  last fired: %s (%d times)",
						humanize.Time(*w.LastFiredAt), w.FireCount))
				}
				line := fmt.Sprintf("🟢 %s", w.Pattern)
				if statsLine != "" {
					line += "\n" + statsLine
				}
				lines = append(lines, line)
			}
			watchesValue = strings.Join(lines, "\n")
		}

		var watchingValue string
		if status.WatchCount > 0 {
			watchingValue = fmt.Sprintf("%d directories", status.WatchCount)
		} else {
			watchingValue = dimStyle.Render("none")
		}

		// Print status info
		startedAt := time.Now().Add(-status.Uptime)
		fmt.Println(labelStyle.Render("config") + dimStyle.Render(status.ConfigPath))
		fmt.Println(labelStyle.Render("started") + dimStyle.Render(humanize.Time(startedAt)))
		fmt.Println(labelStyle.Render("watching") + watchingValue)
		fmt.Println(labelStyle.Render("nodes") + fmt.Sprintf("%d", status.NodeCount))
		fmt.Println(labelStyle.Render("patterns"))
		if watchesValue != "" {
			for _, line := range strings.Split(watchesValue, "\n") {
				fmt.Println("  " + line)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
