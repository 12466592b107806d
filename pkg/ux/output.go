// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the heuristics CLI.
//
// A Printer writes in one of three modes: rich (lipgloss colors and boxes,
// chosen for terminals), plain (unstyled text, chosen for pipes), or json
// (text helpers are silent and callers emit structured output via JSON).
package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Aleutian color palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Box       lipgloss.Style
	WarnBox   lipgloss.Style
	Highlight lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	WarnBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// =============================================================================
// Mode
// =============================================================================

// Mode selects how a Printer renders.
type Mode string

const (
	ModeRich  Mode = "rich"
	ModePlain Mode = "plain"
	ModeJSON  Mode = "json"
)

// ParseMode converts a --output flag value. "auto" and "" return ok=false
// so the caller can fall back to DetectMode.
func ParseMode(s string) (Mode, bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return "", false, nil
	case "rich", "text":
		return ModeRich, true, nil
	case "plain":
		return ModePlain, true, nil
	case "json":
		return ModeJSON, true, nil
	default:
		return "", false, fmt.Errorf("unknown output mode %q (want auto, rich, plain or json)", s)
	}
}

// DetectMode returns ModeRich when f is a terminal and ModePlain otherwise.
func DetectMode(f *os.File) Mode {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return ModeRich
	}
	return ModePlain
}

// =============================================================================
// Printer
// =============================================================================

// Printer writes styled output to w.
type Printer struct {
	w    io.Writer
	mode Mode
}

// NewPrinter creates a Printer.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	return &Printer{w: w, mode: mode}
}

// Mode returns the printer's mode.
func (p *Printer) Mode() Mode { return p.mode }

func (p *Printer) style(s lipgloss.Style, text string) string {
	if p.mode != ModeRich {
		return text
	}
	return s.Render(text)
}

func (p *Printer) println(text string) {
	if p.mode == ModeJSON {
		return
	}
	fmt.Fprintln(p.w, text)
}

// Title prints a heading.
func (p *Printer) Title(text string) {
	p.println(p.style(Styles.Title, text))
}

// Success prints a line prefixed with a check mark.
func (p *Printer) Success(text string) {
	p.println(p.style(Styles.Success, string(IconSuccess)) + " " + text)
}

// Warning prints a line prefixed with a warning sign.
func (p *Printer) Warning(text string) {
	p.println(p.style(Styles.Warning, string(IconWarning)) + " " + p.style(Styles.Warning, text))
}

// Error prints a line prefixed with a cross.
func (p *Printer) Error(text string) {
	p.println(p.style(Styles.Error, string(IconError)) + " " + p.style(Styles.Error, text))
}

// Info prints an indented informational line.
func (p *Printer) Info(text string) {
	p.println(p.style(Styles.Muted, "│") + " " + text)
}

// Muted prints secondary text.
func (p *Printer) Muted(text string) {
	p.println(p.style(Styles.Muted, text))
}

// KeyValue prints "key: value" with the key emphasized.
func (p *Printer) KeyValue(key string, value any) {
	p.println(fmt.Sprintf("%s %v", p.style(Styles.Bold, key+":"), value))
}

// Box prints content under title, boxed in rich mode.
func (p *Printer) Box(title, content string) {
	if p.mode != ModeRich {
		p.println(title + "\n" + content)
		return
	}
	p.println(Styles.Box.Width(72).Render(Styles.Title.Render(title) + "\n" + content))
}

// JSON writes v as indented JSON regardless of mode.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// Scores
// =============================================================================

// ScoreStyle picks the color band for a 0..100 score.
func ScoreStyle(score float64) lipgloss.Style {
	switch {
	case score >= 90:
		return Styles.Success
	case score >= 70:
		return Styles.Warning
	default:
		return Styles.Error
	}
}

// ScoreBar renders score out of maxScore as a bar of width cells followed by
// the score. Plain mode uses '#' and '.'.
func (p *Printer) ScoreBar(score, maxScore float64, width int) string {
	if maxScore <= 0 || width <= 0 {
		return fmt.Sprintf("%.0f", score)
	}
	pct := min(max(score/maxScore, 0), 1)
	filled := int(pct*float64(width) + 0.5)
	empty := width - filled

	if p.mode != ModeRich {
		return fmt.Sprintf("[%s%s] %3.0f", strings.Repeat("#", filled), strings.Repeat(".", empty), score)
	}
	style := ScoreStyle(pct * 100)
	bar := style.Render(strings.Repeat("█", filled)) + Styles.Muted.Render(strings.Repeat("░", empty))
	return fmt.Sprintf("%s %s", bar, style.Render(fmt.Sprintf("%3.0f", score)))
}
