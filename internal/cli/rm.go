package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "Remove a skill from the local cache",
		Long:  "Deletes the cached metadata and embedding for one skill. A later sync re-adds it if the registry still lists it.",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	id := args[0]

	a, err := openApp(ctx, true)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	found, err := a.skills.Delete(ctx, id)
	if err != nil {
		exitErr("rm", err)
	}
	if _, err := a.vectors.RemoveEmbedding(ctx, id); err != nil {
		exitErr("remove embedding", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":%v,"id":%q}`+"\n", found, id)
}
