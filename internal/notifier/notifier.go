package notifier

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MrSnakeDoc/deltasync/internal/kvstore"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
	"github.com/MrSnakeDoc/deltasync/internal/printer"
	"github.com/MrSnakeDoc/deltasync/internal/utils"
)

const (
	borderColor = "\033[38;5;39m"
	resetColor  = "\033[0m"
	padding     = 2
)

// PendingUpdate is the detected-but-unapplied update the engine persists for
// later display and apply.
type PendingUpdate struct {
	Version    string    `json:"version"`
	Revision   string    `json:"revision"`
	DetectedAt time.Time `json:"detected_at"`
}

// DisplayPendingUpdate prints the banner when an unapplied, unskipped update
// is recorded in kv. It reports whether anything was printed.
func DisplayPendingUpdate(ctx context.Context, w io.Writer, kv kvstore.Store, installed string) bool {
	var pending PendingUpdate
	ok, err := kvstore.GetJSON(ctx, kv, kvstore.KeyPendingUpdate, &pending)
	if err != nil {
		logger.Debug("failed to load pending update: %v", err)
		return false
	}
	if !ok || pending.Version == "" {
		return false
	}

	DisplayVersionUpdate(w, installed, pending.Version)
	return true
}

// DisplayVersionUpdate shows a boxed notification for a new version.
func DisplayVersionUpdate(w io.Writer, installed, version string) {
	p := printer.NewColorPrinter()

	title := p.Success("New Version Available!")
	detected := p.Info("New version detected:")
	command := p.Warning("Run ")
	updateCmd := p.Success("deltasync apply")
	instruction := p.Warning(" to update, or ")
	skipCmd := p.Accent("deltasync skip " + version)
	actualVersion := p.Error(installed)
	versionInfo := p.Success(version)

	lines := []string{
		title,
		fmt.Sprintf("%s %s -> %s", detected, actualVersion, versionInfo),
		fmt.Sprintf("%s%s%s%s", command, updateCmd, instruction, skipCmd),
	}

	maxWidth := utils.GetMaxWidth(lines) + padding*2
	topBottomBorder := borderColor + "╭" + strings.Repeat("─", maxWidth) + "╮" + resetColor
	sideBorder := borderColor + "│" + resetColor

	_, _ = fmt.Fprintln(w, topBottomBorder)
	for _, line := range lines {
		width := utils.VisibleWidth(line)
		paddingLeft := (maxWidth - width) / 2
		paddingRight := maxWidth - width - paddingLeft
		_, _ = fmt.Fprintf(w, "%s%s%s%s%s\n", sideBorder, strings.Repeat(" ", paddingLeft), line, strings.Repeat(" ", paddingRight), sideBorder)
	}
	_, _ = fmt.Fprintln(w, borderColor+"╰"+strings.Repeat("─", maxWidth)+"╯"+resetColor)
}
