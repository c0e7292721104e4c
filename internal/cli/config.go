package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/skillsync/skillsync/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change the sync schedule",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the current sync configuration",
		Run:   runConfigGet,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [key] [value]",
		Short: "Set enabled or frequency",
		Long:  "Keys: enabled (true/false), frequency (daily/weekly/manual).",
		Args:  cobra.ExactArgs(2),
		Run:   runConfigSet,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore the default sync configuration",
		Run:   runConfigReset,
	})

	RootCmd.AddCommand(cmd)
}

func runConfigGet(cmd *cobra.Command, args []string) {
	a, err := openApp(cmd.Context(), false)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	cfg, err := a.syncCfg.GetConfig(cmd.Context())
	if err != nil {
		exitErr("read config", err)
	}

	b, _ := json.MarshalIndent(cfg, "", "  ")
	fmt.Println(string(b))
}

func runConfigSet(cmd *cobra.Command, args []string) {
	key, value := args[0], args[1]

	var patch store.ConfigPatch
	switch key {
	case "enabled":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			exitErr("config set", fmt.Errorf("enabled must be true or false, got %q", value))
		}
		patch.Enabled = &enabled
	case "frequency":
		patch.Frequency = &value
	default:
		exitErr("config set", fmt.Errorf("unknown key %q (want enabled or frequency)", key))
	}

	a, err := openApp(cmd.Context(), false)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	cfg, err := a.syncCfg.UpdateConfig(cmd.Context(), patch)
	if err != nil {
		exitErr("config set", err)
	}

	b, _ := json.MarshalIndent(cfg, "", "  ")
	fmt.Println(string(b))
}

func runConfigReset(cmd *cobra.Command, args []string) {
	a, err := openApp(cmd.Context(), false)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	if err := a.syncCfg.Reset(cmd.Context()); err != nil {
		exitErr("config reset", err)
	}

	cfg, err := a.syncCfg.GetConfig(cmd.Context())
	if err != nil {
		exitErr("read config", err)
	}
	b, _ := json.MarshalIndent(cfg, "", "  ")
	fmt.Println(string(b))
}
