package commands

import (
	"fmt"

	"github.com/videditor/jobrunner/config"
	"github.com/videditor/jobrunner/version"
)

// printStartupBanner prints the user-friendly startup message.
func printStartupBanner(cfg *config.Config) {
	cyan := "\033[36m"
	green := "\033[32m"
	bold := "\033[1m"
	reset := "\033[0m"

	info := version.Get()

	fmt.Printf("\n%s%s", cyan, bold)
	fmt.Printf("   ╔══════════════════════════════════════════╗\n")
	fmt.Printf("   ║                                          ║\n")
	fmt.Printf("   ║   ▶ videditor jobrunner                  ║\n")
	fmt.Printf("   ║     thumbnail · transcribe · analyze     ║\n")
	fmt.Printf("   ║                                          ║\n")
	fmt.Printf("   ╚══════════════════════════════════════════╝%s\n\n", reset)

	fmt.Printf("%s%s┌─ Runner Info ────────────────────────────────┐%s\n", green, bold, reset)
	fmt.Printf("%s│%s Version:       %s (commit %s)\n", green, reset, info.Version, info.Short())
	fmt.Printf("%s│%s Environment:   %s\n", green, reset, cfg.NodeEnv)
	fmt.Printf("%s│%s Port:          %d\n", green, reset, cfg.Port)
	fmt.Printf("%s│%s Concurrency:   %d\n", green, reset, cfg.JobConcurrency)
	fmt.Printf("%s│%s Poll interval: %dms\n", green, reset, cfg.PollIntervalMs)
	fmt.Printf("%s%s└──────────────────────────────────────────────┘%s\n\n", green, bold, reset)
}
