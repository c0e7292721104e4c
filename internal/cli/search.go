package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skillsync/skillsync/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search cached skills",
		Long:  "Semantic search over the local index when an embedding provider is configured, keyword search otherwise.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().IntP("limit", "l", 5, "Max results")
	cmd.Flags().Bool("keyword", false, "Force keyword search even with an embedder configured")

	RootCmd.AddCommand(cmd)
}

type searchResult struct {
	model.Skill
	Score float64 `json:"score,omitempty"`
}

func runSearch(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")
	keyword, _ := cmd.Flags().GetBool("keyword")
	query := strings.Join(args, " ")

	semantic := !keyword
	a, err := openApp(ctx, semantic)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	var results []searchResult

	if semantic && a.embedder != nil {
		vec, err := a.embedder.Embed(ctx, query)
		if err != nil {
			exitErr("embed query", err)
		}
		hits, err := a.vectors.FindSimilar(vec, limit)
		if err != nil {
			exitErr("search", err)
		}
		for _, h := range hits {
			skill, err := a.skills.Get(ctx, h.SkillID)
			if err != nil || skill == nil {
				continue
			}
			results = append(results, searchResult{Skill: *skill, Score: h.Score})
		}
	} else {
		skills, err := a.skills.SearchText(ctx, query, limit)
		if err != nil {
			exitErr("search", err)
		}
		for _, s := range skills {
			results = append(results, searchResult{Skill: s})
		}
	}

	if len(results) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}
