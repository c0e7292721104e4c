package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillsync/skillsync/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the local cache as JSON",
		Run:   runExport,
	}

	cmd.Flags().Bool("embeddings", false, "Include embedding vectors")
	cmd.Flags().Int("limit", 0, "Max skills (0 = all)")

	RootCmd.AddCommand(cmd)
}

type exportOutput struct {
	ExportedAt time.Time            `json:"exported_at"`
	Skills     []model.Skill        `json:"skills"`
	Embeddings map[string][]float32 `json:"embeddings,omitempty"`
}

func runExport(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	withEmbeddings, _ := cmd.Flags().GetBool("embeddings")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = 1 << 30
	}

	a, err := openApp(ctx, withEmbeddings)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	skills, err := a.skills.List(ctx, limit)
	if err != nil {
		exitErr("list skills", err)
	}

	out := exportOutput{ExportedAt: time.Now().UTC(), Skills: skills}
	if withEmbeddings {
		out.Embeddings, err = a.vectors.GetAllEmbeddings(ctx)
		if err != nil {
			exitErr("read embeddings", err)
		}
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
