package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roasbeef/pagesum/internal/build"
	"github.com/roasbeef/pagesum/internal/config"
)

func newRootCmd() *cobra.Command {
	var cfgFile string
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "pagesumd",
		Short: "Page summarization daemon",
		Long: `pagesumd hosts the summary coordinator, the page extractor and
the generation engine, and serves them to panels and the pagesum CLI over a
local websocket gateway.`,
		Version:       build.Version(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(
				cmd.Context(), os.Interrupt, syscall.SIGTERM,
			)
			defer stop()

			return run(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "",
		"Config file (default: ~/.pagesum/pagesum.yaml)")
	flags.String("listen", "", "Gateway listen address")
	flags.String("store", "", "Store backend: sqlite, nats or memory")
	flags.String("db", "", "SQLite database path")
	flags.String("engine-url", "", "OpenAI compatible API base URL")
	flags.String("model", "", "Model name")
	flags.String("log-level", "", "Log level")
	flags.Bool("use-cache", true, "Reuse cached summaries of identical content")

	// Unset flags fall back to config defaults, so binding them all is safe.
	for key, flag := range map[string]string{
		"gateway.listen_addr":  "listen",
		"store.backend":        "store",
		"store.db_path":        "db",
		"engine.base_url":      "engine-url",
		"engine.model":         "model",
		"log.level":            "log-level",
		"controller.use_cache": "use-cache",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}
