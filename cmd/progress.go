package main

import (
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// buildStages describes how each knowledge base build stage is rendered.
// Stages with an empty unit are shown as a spinner.
var buildStages = map[string]struct {
	label string
	unit  string
}{
	"discover": {label: "🔍 Discovering pages..."},
	"load":     {label: "📄 Loading pages...", unit: "pages"},
	"embed":    {label: "💾 Embedding chunks...", unit: "chunks"},
}

// stageBar returns the progress display for a build stage, or nil for
// stages that finish too quickly to be worth one.
func stageBar(stage string, total int) *progressbar.ProgressBar {
	s, ok := buildStages[stage]
	switch {
	case !ok:
		return nil
	case s.unit == "" || total <= 0:
		return newSpinner(s.label)
	default:
		return newProgressBar(total, s.label, s.unit)
	}
}

func newProgressBar(total int, description, unit string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString(unit),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func newSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
