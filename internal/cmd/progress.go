// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"io"
	"os"

	"github.com/aibor/vmprobe/internal/probe"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// progressBar renders probe progress as a terminal progress bar.
type progressBar struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
}

var _ probe.Progress = (*progressBar)(nil)

func (p *progressBar) Start(probe string, total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionSetDescription(probe),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *progressBar) Done(subject string) {
	if p.bar == nil {
		return
	}

	p.bar.Describe(subject)
	_ = p.bar.Add(1)
}

func (p *progressBar) Finish() {
	if p.bar == nil {
		return
	}

	_ = p.bar.Finish()
	p.bar = nil
}

// newProgress returns a progress bar writing to the given file, if enabled
// and the file is a terminal. Otherwise it returns nil.
func newProgress(enabled bool, file *os.File) probe.Progress {
	if !enabled || file == nil || !term.IsTerminal(int(file.Fd())) {
		return nil
	}

	return &progressBar{writer: file}
}
