package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillsync/skillsync/internal/model"
	"github.com/skillsync/skillsync/internal/vectorstore"
)

func init() {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cache and sync status",
		Run:   runStatus,
	}

	RootCmd.AddCommand(cmd)
}

type statusOutput struct {
	DBPath     string            `json:"db_path"`
	Engine     string            `json:"engine"`
	SkillCount int               `json:"skill_count"`
	Sync       *model.SyncConfig `json:"sync"`
	Index      vectorstore.Stats `json:"index"`
	LastRun    *model.SyncRun    `json:"last_run,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	a, err := openApp(ctx, true)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	count, err := a.skills.Count(ctx)
	if err != nil {
		exitErr("count skills", err)
	}
	syncCfg, err := a.syncCfg.GetConfig(ctx)
	if err != nil {
		exitErr("read sync config", err)
	}
	runs, err := a.history.ListRecent(ctx, 1)
	if err != nil {
		exitErr("read history", err)
	}

	out := statusOutput{
		DBPath:     a.db.Path(),
		Engine:     a.db.EngineName(),
		SkillCount: count,
		Sync:       syncCfg,
		Index:      a.vectors.Stats(),
	}
	if len(runs) > 0 {
		out.LastRun = &runs[0]
	}

	if formatFlag == "text" {
		fmt.Printf("db:        %s (%s)\n", out.DBPath, out.Engine)
		fmt.Printf("skills:    %d\n", out.SkillCount)
		fmt.Printf("sync:      enabled=%v frequency=%s\n", syncCfg.Enabled, syncCfg.Frequency)
		if syncCfg.LastSyncAt != nil {
			fmt.Printf("last sync: %s\n", syncCfg.LastSyncAt.Format(time.RFC3339))
		} else {
			fmt.Println("last sync: never")
		}
		fmt.Printf("index:     %d vectors, hnsw=%v\n", out.Index.VectorCount, out.Index.IsHNSWEnabled)
		return
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
