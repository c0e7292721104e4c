package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skillsync/skillsync/internal/registry"
	"github.com/skillsync/skillsync/internal/syncer"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one registry sync now",
		Long:  "Fetches the remote catalog page by page and reconciles the local cache. Prints the run result.",
		Run:   runSync,
	}

	cmd.Flags().String("registry", "", "Registry base URL (overrides config)")
	cmd.Flags().Int("page-size", 0, "Skills per page (default 100)")

	RootCmd.AddCommand(cmd)
}

func runSync(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	a, err := openApp(ctx, true)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	registryURL, _ := cmd.Flags().GetString("registry")
	if registryURL == "" {
		registryURL = a.cfg.RegistryURL
	}
	pageSize, _ := cmd.Flags().GetInt("page-size")
	if pageSize <= 0 {
		pageSize = a.cfg.PageSize
	}

	client := registry.NewClient(registryURL, 0)
	engine := syncer.NewEngine(client, a.skills, a.syncCfg, a.history, a.vectors, a.embedder)

	result := engine.Sync(ctx, syncer.Options{PageSize: pageSize})

	b, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(b))

	if !result.Success {
		os.Exit(1)
	}
}
