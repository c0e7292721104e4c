package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/skillsync/skillsync/internal/mcpserver"
	"github.com/skillsync/skillsync/internal/registry"
	"github.com/skillsync/skillsync/internal/syncer"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve skill discovery over MCP on stdio",
		Long:  "Starts the MCP tool server on stdin/stdout and the background sync service. Runs until the host closes the stream.",
		Run:   runServe,
	}

	cmd.Flags().String("registry", "", "Registry base URL (overrides config)")
	cmd.Flags().Bool("no-sync", false, "Disable background syncing for this session")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
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
	noSync, _ := cmd.Flags().GetBool("no-sync")

	client := registry.NewClient(registryURL, 0)
	engine := syncer.NewEngine(client, a.skills, a.syncCfg, a.history, a.vectors, a.embedder)

	service := syncer.NewService(engine, a.syncCfg, syncer.ServiceOptions{
		CheckInterval: time.Duration(a.cfg.CheckIntervalSeconds) * time.Second,
		SyncOnStart:   a.cfg.SyncOnStart,
		SyncOptions:   syncer.Options{PageSize: a.cfg.PageSize},
	})
	if !noSync {
		if err := service.Start(ctx); err != nil {
			exitErr("start background sync", err)
		}
		defer service.Stop()
	}

	srv := mcpserver.New(mcpserver.Deps{
		Skills:   a.skills,
		Config:   a.syncCfg,
		History:  a.history,
		Vectors:  a.vectors,
		Embedder: a.embedder,
		Service:  service,
	})

	if err := mcpserver.ServeStdio(srv); err != nil {
		exitErr("serve", err)
	}
}
