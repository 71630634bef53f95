package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"opsagent/internal/rpa"
)

var screenshotOut string

// screenCmd is an inspection aid: open a page in the managed browser, list
// its interactive elements, and optionally run the vision pass.
var screenCmd = &cobra.Command{
	Use:   "screen <url>",
	Short: "Inspect a page the way the GUI channel sees it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		session, err := pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquire browser session: %w", err)
		}
		defer pool.Release(session)

		if err := session.Navigate(ctx, args[0]); err != nil {
			return err
		}

		state, err := session.State(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n", state.Title, state.URL)
		fmt.Printf("%d interactive element(s):\n", len(state.InteractiveElements))
		for _, el := range state.InteractiveElements {
			fmt.Printf("  [%d] <%s> %q %v\n", el.Index, el.Tag, el.Text, el.Attrs)
		}

		shot, err := session.Screenshot(ctx)
		if err != nil {
			return err
		}
		if screenshotOut != "" {
			if err := os.WriteFile(screenshotOut, shot, 0o644); err != nil {
				return fmt.Errorf("write screenshot: %w", err)
			}
			fmt.Printf("Screenshot written to %s\n", screenshotOut)
		}

		elements, err := rpa.AnalyzeScreen(ctx, shot)
		if err != nil {
			return err
		}
		if len(elements) > 0 {
			fmt.Printf("%d element(s) located by the vision model:\n", len(elements))
			for _, el := range elements {
				fmt.Printf("  %s %s %q at (%d,%d) confidence %.2f\n",
					el.ID, el.Type, el.Text, el.Bounds.X, el.Bounds.Y, el.Confidence)
			}
		}
		return nil
	},
}

func init() {
	screenCmd.Flags().StringVarP(&screenshotOut, "out", "o", "", "write the screenshot to this file")
}
