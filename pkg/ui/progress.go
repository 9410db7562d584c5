package ui

import (
	"fmt"
	"strings"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = " "
	barWidth      = 25
)

// TransferBar renders the progress of one transfer on a single line:
//
//	|█████████████            | 52%
//
// It writes through a Console, so a quiet console hides it.
type TransferBar struct {
	console *Console
	active  bool
}

// NewTransferBar creates a bar writing to console
func NewTransferBar(console *Console) *TransferBar {
	return &TransferBar{console: console}
}

func (b *TransferBar) Start(path string, total int64) {
	b.active = true
}

func (b *TransferBar) Update(done, total int64) {
	if !b.active {
		return
	}
	b.console.Printf("\r%s", RenderBar(done, total))
}

func (b *TransferBar) Finish() {
	if !b.active {
		return
	}
	b.active = false
	b.console.Printf("\n")
}

// RenderBar formats one progress frame. Without a known total only the byte
// count is shown.
func RenderBar(done, total int64) string {
	if total <= 0 {
		return fmt.Sprintf("%s ", FormatBytes(done))
	}
	if done > total {
		done = total
	}
	filled := int(barWidth * done / total)
	percent := int(100 * done / total)
	return fmt.Sprintf("|%s%s| %d%% ",
		strings.Repeat(ProgressBar, filled),
		strings.Repeat(ProgressEmpty, barWidth-filled),
		percent)
}

// FormatBytes renders a byte count with a binary unit
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
