package ingest_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/navapbc/labs-referral-pilot/internal/ingest"
)

func passages(n int) string {
	var ps []string
	for i := 1; i <= n; i++ {
		ps = append(ps, fmt.Sprintf("  P%d line a  \n\tP%d line b", i, i))
	}
	return strings.Join(ps, "\n  \n")
}

func TestSplitPassages_Overlap(t *testing.T) {
	chunks, err := ingest.SplitPassages(passages(5), 2, 1)
	if err != nil {
		t.Fatalf("SplitPassages: %v", err)
	}
	want := [][]string{{"P1", "P2"}, {"P2", "P3"}, {"P3", "P4"}, {"P4", "P5"}}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %d, want %d: %q", len(chunks), len(want), chunks)
	}
	for i, w := range want {
		first := w[0] + " line a\n" + w[0] + " line b"
		if !strings.HasPrefix(chunks[i], first) {
			t.Errorf("chunk %d = %q, want prefix %q", i, chunks[i], first)
		}
		if !strings.HasSuffix(chunks[i], w[1]+" line b") {
			t.Errorf("chunk %d = %q, want suffix %s", i, chunks[i], w[1])
		}
	}
}

func TestSplitPassages_Defaults(t *testing.T) {
	chunks, err := ingest.SplitPassages(passages(25), ingest.DefaultPassagesPerChunk, ingest.DefaultOverlap)
	if err != nil {
		t.Fatalf("SplitPassages: %v", err)
	}
	// 1-11, 11-21, 21-25
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if !strings.HasPrefix(chunks[1], "P11 ") || !strings.HasPrefix(chunks[2], "P21 ") {
		t.Errorf("bad chunk starts: %q / %q", chunks[1][:4], chunks[2][:4])
	}
}

func TestSplitPassages_ShortDocument(t *testing.T) {
	chunks, err := ingest.SplitPassages("only one passage", 11, 1)
	if err != nil {
		t.Fatalf("SplitPassages: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != "only one passage" {
		t.Errorf("chunks = %q", chunks)
	}

	chunks, _ = ingest.SplitPassages(" \n\n \n", 11, 1)
	if len(chunks) != 0 {
		t.Errorf("blank document should yield no chunks: %q", chunks)
	}
}

func TestSplitPassages_BadParams(t *testing.T) {
	for _, c := range [][2]int{{0, 0}, {3, 3}, {3, -1}} {
		if _, err := ingest.SplitPassages("x", c[0], c[1]); err == nil {
			t.Errorf("SplitPassages(perChunk=%d, overlap=%d) should fail", c[0], c[1])
		}
	}
}
