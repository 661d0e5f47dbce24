package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dirgate/dirgate/internal/config"
	"github.com/dirgate/dirgate/internal/daemon"
	"github.com/dirgate/dirgate/internal/logger"
)

func init() { //nolint: gochecknoinits
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable dev mode")
	startCmd.Flags().StringVar(&configPath, "config", "", "Path to the configuration directory")

	rootCmd.AddCommand(startCmd)
}

var (
	configPath string // Path to the configuration directory

	err     error
	cfg     config.Config
	devMode bool

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the dirgate web service",
		PreRun: func(_ *cobra.Command, _ []string) {
			if cfg, err = config.ReadConfig(configPath); err != nil {
				panic(err)
			}

			if devMode {
				cfg.DevMode = true
			}
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := logger.Init(cfg.Log); err != nil {
				return err
			}

			d := daemon.New(&cfg)

			go d.WaitShutdown()

			return d.Start(fmt.Sprintf(":%d", cfg.Webserver.Port))
		},
	}
)
