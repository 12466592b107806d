// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		ok      bool
		wantErr bool
	}{
		{"", "", false, false},
		{"auto", "", false, false},
		{"JSON", ModeJSON, true, false},
		{"plain", ModePlain, true, false},
		{"rich", ModeRich, true, false},
		{"text", ModeRich, true, false},
		{"yaml", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestDetectMode_RegularFileIsPlain(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, ModePlain, DetectMode(f))
}

func TestPrinter_PlainMode(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModePlain)

	p.Title("Report")
	p.Success("done")
	p.Warning("careful")
	p.Error("broken")
	p.KeyValue("Overall", 85.5)
	p.Box("H1", "content")

	assert.Equal(t, "Report\n✓ done\n⚠ careful\n✗ broken\nOverall: 85.5\nH1\ncontent\n", buf.String())
}

func TestPrinter_JSONModeSilencesText(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeJSON)

	p.Title("ignored")
	p.Info("ignored")
	require.NoError(t, p.JSON(map[string]int{"score": 90}))

	assert.Equal(t, "{\n  \"score\": 90\n}\n", buf.String())
}

func TestScoreBar_Plain(t *testing.T) {
	p := NewPrinter(&bytes.Buffer{}, ModePlain)

	assert.Equal(t, "[########..]  80", p.ScoreBar(80, 100, 10))
	assert.Equal(t, "[..........]   0", p.ScoreBar(0, 100, 10))
	assert.Equal(t, "[##########] 120", p.ScoreBar(120, 100, 10))
	assert.Equal(t, "42", p.ScoreBar(42, 0, 10))
}

func TestScoreBar_RichContainsScore(t *testing.T) {
	p := NewPrinter(&bytes.Buffer{}, ModeRich)
	assert.Contains(t, p.ScoreBar(75, 100, 8), "75")
}

func TestScoreStyle(t *testing.T) {
	assert.Equal(t, Styles.Success, ScoreStyle(95))
	assert.Equal(t, Styles.Warning, ScoreStyle(75))
	assert.Equal(t, Styles.Error, ScoreStyle(40))
}
