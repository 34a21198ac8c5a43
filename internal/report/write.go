// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package report

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type document struct {
	Checked int      `yaml:"checked"`
	Failed  bool     `yaml:"failed"`
	Defects []Defect `yaml:"defects"`
	Skips   []Skip   `yaml:"skips"`
}

// WriteYAML writes the [Report] as YAML document into the given writer.
func (r *Report) WriteYAML(w io.Writer) error {
	doc := document{
		Checked: len(r.Checked()),
		Failed:  r.Failed(),
		Defects: r.Defects(),
		Skips:   r.Skips(),
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}

	return nil
}

// WriteText writes a human readable summary of the [Report] into the given
// writer.
//
// Each defect is printed with the captured stderr indented below it, so a
// crash can be reproduced directly.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder

	defects := r.Defects()

	for _, d := range defects {
		fmt.Fprintf(&b, "FAIL %s %s: %s\n", d.Probe, d.Subject, d.Message)

		if d.Stderr != "" {
			for line := range strings.SplitSeq(strings.TrimRight(d.Stderr, "\n"), "\n") {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
	}

	for _, s := range r.Skips() {
		fmt.Fprintf(&b, "SKIP %s %s: %s\n", s.Probe, s.Subject, s.Reason)
	}

	fmt.Fprintf(&b, "%d checked, %d defects, %d skipped\n",
		len(r.Checked()), len(defects), len(r.Skips()))

	_, err := io.WriteString(w, b.String())
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	return nil
}
