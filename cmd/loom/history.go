package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/loomterm/loom/pkg/block"
	"github.com/loomterm/loom/pkg/config"
	"github.com/loomterm/loom/pkg/vault"
)

var (
	cmdStyle     = lipgloss.NewStyle().Bold(true)
	metaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	unknownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// historyCmd prints persisted blocks, newest first.
func historyCmd(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("n", 20, "Maximum number of blocks to show")
	showOutput := fs.Bool("output", false, "Include each block's captured output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if cfg.VaultPath == "" {
		return fmt.Errorf("no vault_path configured; history is disabled")
	}
	v, err := vault.Open(cfg.VaultPath)
	if err != nil {
		return fmt.Errorf("open vault: %w", err)
	}
	defer v.Close()

	stored, err := v.RecentBlocks(*limit)
	if err != nil {
		return err
	}
	if len(stored) == 0 {
		fmt.Println("no blocks recorded")
		return nil
	}

	for _, sb := range stored {
		b := sb.Block
		fmt.Printf("%s %s\n", exitBadge(b), cmdStyle.Render(b.Command))
		meta := fmt.Sprintf("  %s  %s  %s",
			b.StartedAt.Format("2006-01-02 15:04:05"),
			b.Duration().Round(time.Millisecond),
			b.Cwd)
		fmt.Println(metaStyle.Render(meta))
		if *showOutput && b.Output != "" {
			for _, line := range strings.Split(b.Output, "\n") {
				fmt.Println("  " + line)
			}
		}
	}
	return nil
}

func exitBadge(b block.Block) string {
	switch {
	case b.ExitCode == block.ExitUnknown:
		return unknownStyle.Render("[?]")
	case b.ExitCode == 0:
		return okStyle.Render("[0]")
	default:
		return failStyle.Render(fmt.Sprintf("[%d]", b.ExitCode))
	}
}
