package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync runs",
		Run:   runHistory,
	}

	cmd.Flags().IntP("limit", "l", 10, "Max runs to show")

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := openApp(cmd.Context(), false)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	runs, err := a.history.ListRecent(cmd.Context(), limit)
	if err != nil {
		exitErr("history", err)
	}

	if len(runs) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(runs, "", "  ")
	fmt.Println(string(b))
}
