package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/Hara602/liteDefender/internal/sysutil"
	"go.uber.org/zap"
)

const replHelp = `Available commands:
  scan <file>       Scan a specific file
  scandir <dir>     Scan a directory recursively
  monitor           Toggle real-time monitoring
  watch <dir>       Add directory to monitoring watchlist
  unwatch <dir>     Remove directory from monitoring watchlist
  status            Show current status
  quit              Exit the program
`

func runInteractive(in io.Reader, out io.Writer) error {
	if err := engine.inspector.Initialize(); err != nil {
		fmt.Fprintln(out, "Failed to initialize scanner. Exiting...")
		return errReported
	}

	fmt.Fprintln(out, "LiteDefender Antivirus - Interactive Mode")
	fmt.Fprintln(out, "Type 'help' for a list of commands")

	lines := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nLiteDefender> ")
		if !lines.Scan() {
			break
		}
		if quit := handleLine(strings.TrimSpace(lines.Text()), out); quit {
			break
		}
	}
	if engine.monitor.IsRunning() {
		return engine.monitor.Stop()
	}
	return lines.Err()
}

// handleLine 执行一条交互命令，返回 true 表示退出
func handleLine(line string, out io.Writer) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch {
	case cmd == "":
	case cmd == "help":
		fmt.Fprint(out, replHelp)
	case cmd == "scan" && arg != "":
		// 失败原因已写入 LastResult 和日志
		if _, err := engine.inspector.Inspect(arg); err != nil {
			sysutil.Log.Debug("Scan failed", zap.String("path", arg), zap.Error(err))
		}
		fmt.Fprintln(out, engine.inspector.LastResult())
	case cmd == "scandir" && arg != "":
		if _, err := engine.walker.ScanTree(arg); err != nil {
			sysutil.Log.Debug("Directory scan failed", zap.String("path", arg), zap.Error(err))
		}
		fmt.Fprintln(out, engine.inspector.LastResult())
	case cmd == "monitor":
		if engine.monitor.IsRunning() {
			if err := engine.monitor.Stop(); err != nil {
				fmt.Fprintf(out, "Failed to stop monitoring: %v\n", err)
			} else {
				fmt.Fprintln(out, "Real-time monitoring stopped")
			}
		} else if err := engine.monitor.Start(); err != nil {
			fmt.Fprintln(out, "Failed to start monitoring")
		} else {
			fmt.Fprintln(out, "Real-time monitoring started")
		}
	case cmd == "watch" && arg != "":
		engine.monitor.AddWatchDirectory(arg)
		fmt.Fprintf(out, "Added %s to watch list\n", arg)
	case cmd == "unwatch" && arg != "":
		engine.monitor.RemoveWatchDirectory(arg)
		fmt.Fprintf(out, "Removed %s from watch list\n", arg)
	case cmd == "status":
		printStatus(out)
	case cmd == "quit" || cmd == "exit":
		fmt.Fprintln(out, "Exiting LiteDefender. Goodbye!")
		return true
	default:
		fmt.Fprintln(out, "Unknown command. Type 'help' for available commands.")
	}
	return false
}

func printStatus(out io.Writer) {
	state := "Inactive"
	if engine.monitor.IsRunning() {
		state = "Active"
	}
	fmt.Fprintln(out, "LiteDefender Status:")
	fmt.Fprintf(out, "  Hostname: %s\n", sysutil.Hostname())
	fmt.Fprintf(out, "  Username: %s\n", sysutil.Username())
	fmt.Fprintf(out, "  OS: %s\n", sysutil.OSVersion())
	if engine.inspector.SignaturesLoaded() {
		fmt.Fprintf(out, "  Signatures: %d (%s)\n", engine.inspector.SignatureCount(), engine.cfg.Signatures.Algorithm)
	} else {
		fmt.Fprintln(out, "  Signatures: not loaded")
	}
	fmt.Fprintf(out, "  Monitoring: %s\n", state)
	for _, dir := range engine.monitor.WatchDirectories() {
		fmt.Fprintf(out, "  Watching: %s\n", dir)
	}
}
