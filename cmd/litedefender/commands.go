package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Hara602/liteDefender/internal/analysis"
	"github.com/Hara602/liteDefender/internal/sysutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// initScanner 签名库加载失败时不能继续扫描
func initScanner() error {
	if err := engine.inspector.Initialize(); err != nil {
		fmt.Println("Failed to initialize scanner. Exiting...")
		return errReported
	}
	return nil
}

var scanCmd = &cobra.Command{
	Use:   "scan <file>",
	Short: "Scan a specific file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initScanner(); err != nil {
			return err
		}
		_, err := engine.inspector.Inspect(args[0])
		fmt.Println(engine.inspector.LastResult())
		if err != nil {
			return errReported
		}
		return nil
	},
}

var scanDirCmd = &cobra.Command{
	Use:     "scandir <dir>",
	Aliases: []string{"scan-dir"},
	Short:   "Scan a directory recursively",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initScanner(); err != nil {
			return err
		}
		_, err := engine.walker.ScanTree(args[0])
		fmt.Println(engine.inspector.LastResult())
		if err != nil {
			return errReported
		}
		return nil
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor [dir...]",
	Short: "Enable real-time monitoring until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, dir := range args {
			engine.monitor.AddWatchDirectory(dir)
		}
		if err := engine.monitor.Start(); err != nil {
			fmt.Println("Failed to start monitoring. Exiting...")
			return errReported
		}
		fmt.Println("Real-time monitoring active. Press Ctrl+C to stop.")

		// 捕获操作系统信号，优雅关闭后台监控
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		err := engine.monitor.Stop()
		fmt.Println("Real-time monitoring stopped")
		return err
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current status",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		// 签名库加载失败时状态显示 not loaded
		if err := engine.inspector.Initialize(); err != nil {
			sysutil.Log.Warn("Signatures not loaded", zap.Error(err))
		}
		printStatus(cmd.OutOrStdout())
	},
}

var identifyCmd = &cobra.Command{
	Use:   "identify <file>",
	Short: "Check whether a file's extension matches its real content type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := analysis.NewTypeInspector(engine.fs).Inspect(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return errReported
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "File:     %s\n", args[0])
		fmt.Fprintf(out, "Declared: %s\n", report.DeclaredExt)
		fmt.Fprintf(out, "Header:   %s\n", report.RealExt)
		fmt.Fprintf(out, "Risk:     %s\n", report.RiskLevel)
		if report.Message != "" {
			fmt.Fprintf(out, "Detail:   %s\n", report.Message)
		}
		if report.IsMasquerade {
			sysutil.Log.Sugar().Warnf("find masquerade file![%s]%s", report.RiskLevel, args[0])
		}
		return nil
	},
}

var (
	historyLimit   int
	historyThreats bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent scan verdicts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if engine.history == nil {
			fmt.Fprintln(os.Stderr, "History is disabled (set history.path)")
			return errReported
		}
		entries, err := engine.history.Recent(context.Background(), historyLimit, historyThreats)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return errReported
		}
		out := cmd.OutOrStdout()
		for _, e := range entries {
			v := e.Verdict
			fmt.Fprintf(out, "%s  %-15s  %s\n", v.ScannedAt.Local().Format("2006-01-02 15:04:05"), v.Kind, v.Path)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Run interactive mode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show")
	historyCmd.Flags().BoolVar(&historyThreats, "threats", false, "only show detections")
}
