package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the similarity index from stored vectors",
		Long:  "Rebuilds the in-memory index by replaying every persisted embedding, then saves a fresh snapshot. Use after changing index tuning.",
		Run:   runReindex,
	}

	RootCmd.AddCommand(cmd)
}

func runReindex(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	a, err := openApp(ctx, true)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	if err := a.vectors.Reindex(ctx); err != nil {
		exitErr("reindex", err)
	}
	if err := a.vectors.SaveSnapshot(); err != nil {
		exitErr("save snapshot", err)
	}

	b, _ := json.MarshalIndent(a.vectors.Stats(), "", "  ")
	fmt.Println(string(b))
}
