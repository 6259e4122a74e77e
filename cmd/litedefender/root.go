package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Hara602/liteDefender/internal/config"
	"github.com/Hara602/liteDefender/internal/sysutil"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var (
	configFile string
	cfg        *config.Config
	engine     *app
)

// errReported 错误信息已经打印过，只需要非零退出码
var errReported = errors.New("reported")

var rootCmd = &cobra.Command{
	Use:   "litedefender",
	Short: "LiteDefender - lightweight signature and pattern based malware scanner",
	Long: `LiteDefender scans files for known malware fingerprints and suspicious
content patterns, and can watch directories for new or modified files.

Run without arguments to start interactive mode.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return errReported
		}
		if err := initLogging(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return errReported
		}
		engine, err = newApp(cfg, sysutil.Log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return errReported
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(os.Stdin, os.Stdout)
	},
}

func shutdown() error {
	var err error
	if engine != nil {
		err = multierr.Append(err, engine.Close())
		engine = nil
	}
	return multierr.Append(err, sysutil.CloseLogger())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default ./litedefender.yaml)")
	rootCmd.AddCommand(scanCmd, scanDirCmd, monitorCmd, statusCmd, identifyCmd, historyCmd, configCmd, interactiveCmd)
}
