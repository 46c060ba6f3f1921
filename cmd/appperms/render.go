package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/kazz187/appperms/internal/tracker"
)

// renderSnapshot formats a snapshot as plain text. The output is stable so
// two renderings can be diffed line by line.
func renderSnapshot(s *tracker.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) version %d", s.PackageName, s.AppLabel, s.VersionCode)
	if s.Stale {
		b.WriteString(" [stale: package no longer installed]")
	}
	b.WriteString("\n")
	if len(s.Groups) == 0 {
		b.WriteString("  no permission groups\n")
		return b.String()
	}
	for _, g := range s.Groups {
		renderGroup(&b, g)
	}
	return b.String()
}

func renderGroup(b *strings.Builder, g tracker.GroupView) {
	mark := " "
	if g.Granted {
		mark = "x"
	}
	fmt.Fprintf(b, "  [%s] %s (%s)\n", mark, g.Label, g.Name)
	if g.Description != "" {
		fmt.Fprintf(b, "      %s\n", g.Description)
	}
	for _, p := range g.Permissions {
		state := "denied"
		if p.Granted {
			state = "granted"
		}
		fmt.Fprintf(b, "      - %s: %s\n", p.Name, state)
	}
}

func unifiedDiff(before, after string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "before",
		ToFile:   "after",
		Context:  2,
	})
}

// printDiff writes a unified diff with added and removed lines colored.
func printDiff(w io.Writer, diff string) {
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			color.New(color.Bold).Fprint(w, line)
		case strings.HasPrefix(line, "+"):
			color.New(color.FgGreen).Fprint(w, line)
		case strings.HasPrefix(line, "-"):
			color.New(color.FgRed).Fprint(w, line)
		case strings.HasPrefix(line, "@@"):
			color.New(color.FgCyan).Fprint(w, line)
		default:
			fmt.Fprint(w, line)
		}
	}
}
