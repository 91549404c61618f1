package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var screensCmd = &cobra.Command{
	Use:   "screens",
	Short: "List the screens available for capture",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := newScreenSource().List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list screens: %w", err)
		}
		if len(list) == 0 {
			ui.Info("No screens found")
			return nil
		}

		table := ui.Table([]string{"ID", "NAME", "SIZE"})
		for _, s := range list {
			size := ""
			if s.Width > 0 && s.Height > 0 {
				size = fmt.Sprintf("%dx%d", s.Width, s.Height)
			}
			_ = table.Append([]string{s.ID, s.Name, size})
		}
		return table.Render()
	},
}

func init() {
	rootCmd.AddCommand(screensCmd)
}
