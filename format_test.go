package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"zero", 0, "0 B"},
		{"bytes", 512, "512 B"},
		{"kilobytes", 1536, "1.5 KB"},
		{"megabytes", 5242880, "5.0 MB"},
		{"gigabytes", 1610612736, "1.5 GB"},
		{"terabytes", 1099511627776, "1.0 TB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatSize(tt.bytes))
		})
	}
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer

	printTable(&buf, []string{"PATH", "SIZE"}, [][]string{
		{"a.txt", "5 B"},
		{"docs/readme.md", "1.2 KB"},
	})

	want := "PATH            SIZE\n" +
		"a.txt           5 B\n" +
		"docs/readme.md  1.2 KB\n"
	assert.Equal(t, want, buf.String())
}

func TestStatusf(t *testing.T) {
	var buf bytes.Buffer

	statusf(&buf, false, "Uploaded: %s\n", "a.txt")
	statusf(&buf, true, "Uploaded: %s\n", "b.txt")

	assert.Equal(t, "Uploaded: a.txt\n", buf.String())
}
