package ingest

import (
	"fmt"
	"strings"
)

const (
	DefaultPassagesPerChunk = 11
	DefaultOverlap          = 1
)

// SplitPassages cuts content into chunks of perChunk passages, each chunk
// repeating the last overlap passages of the one before. A passage is a
// run of text between blank lines.
func SplitPassages(content string, perChunk, overlap int) ([]string, error) {
	if perChunk < 1 {
		return nil, fmt.Errorf("passages per chunk must be positive, got %d", perChunk)
	}
	if overlap < 0 || overlap >= perChunk {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", perChunk, overlap)
	}

	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}

	var passages []string
	for _, p := range strings.Split(strings.Join(lines, "\n"), "\n\n") {
		if p = strings.Trim(p, "\n"); p != "" {
			passages = append(passages, p)
		}
	}
	if len(passages) == 0 {
		return nil, nil
	}

	step := perChunk - overlap
	var chunks []string
	for start := 0; start < len(passages); start += step {
		end := min(start+perChunk, len(passages))
		chunks = append(chunks, strings.Join(passages[start:end], "\n\n"))
		if end == len(passages) {
			break
		}
	}
	return chunks, nil
}
