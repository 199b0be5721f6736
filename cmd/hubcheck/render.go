package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/petrijr/hubcheck"
)

var (
	pendingStyle = color.New(color.FgHiBlack)
	runningStyle = color.New(color.FgYellow, color.Bold)
	successStyle = color.New(color.FgGreen)
	errorStyle   = color.New(color.FgRed, color.Bold)
	headerStyle  = color.New(color.FgCyan, color.Bold)
	mutedStyle   = color.New(color.FgHiBlack)
)

const (
	glyphPending = "▵"
	glyphRunning = "★"
	glyphSuccess = "✓"
	glyphFailed  = "✘"
)

// formatStep renders one checklist line.
func formatStep(step hubcheck.Step) string {
	var glyph string
	style := pendingStyle
	switch step.Status {
	case hubcheck.StatusRunning:
		glyph, style = glyphRunning, runningStyle
	case hubcheck.StatusSuccess:
		glyph, style = glyphSuccess, successStyle
	case hubcheck.StatusFailed, hubcheck.StatusMismatch:
		glyph, style = glyphFailed, errorStyle
	default:
		glyph = glyphPending
	}

	line := fmt.Sprintf("%s %s  %s", style.Sprint(glyph), step.Key, step.Name)
	if step.Status == hubcheck.StatusMismatch {
		line += " " + errorStyle.Sprint("(mismatch)")
	}
	if step.Message != "" && step.Status != hubcheck.StatusRunning {
		line += " " + mutedStyle.Sprintf("- %s", step.Message)
	}
	return line
}

// checklist prints a line whenever a step changes status.
type checklist struct {
	out io.Writer

	mu   sync.Mutex
	seen map[string]hubcheck.Status
}

func newChecklist(out io.Writer) *checklist {
	return &checklist{out: out, seen: make(map[string]hubcheck.Status)}
}

func (c *checklist) observer() hubcheck.Observer {
	return hubcheck.StateFunc(c.render)
}

func (c *checklist) render(_ context.Context, s hubcheck.WorkflowState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, step := range s.Steps {
		if c.seen[step.Key] == step.Status {
			continue
		}
		c.seen[step.Key] = step.Status
		if step.Status == hubcheck.StatusPending {
			continue
		}
		fmt.Fprintln(c.out, formatStep(step))
	}
}

// printChecklist renders every step of s.
func printChecklist(out io.Writer, s hubcheck.WorkflowState) {
	for _, step := range s.Steps {
		fmt.Fprintln(out, formatStep(step))
	}
}
