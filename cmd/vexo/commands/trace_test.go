package commands

import (
	"strings"
	"testing"

	"github.com/vexolabs/vexo/pkg/discover"
)

func TestRenderTrace(t *testing.T) {
	chosen := discover.ScoredCandidate{
		Candidate: discover.Candidate{TrackID: "t2", Title: "Second", Artist: "B", Source: discover.SourceFallback},
		Score:     0.42,
		Rank:      2,
	}
	tr := discover.Trace{
		Composite:   "dim=128 norm=0.5000",
		Temperature: 0.3,
		K:           5,
		Top: []discover.TraceEntry{
			{TrackID: "t1", Title: "First", Score: 0.61, Reason: "played here before"},
			{TrackID: "t2", Title: "Second", Artist: "B", Score: 0.42, Reason: "from the fallback playlist"},
		},
	}

	out := renderTrace(chosen, tr)
	for _, want := range []string{"selection trace", "dim=128", "First", "Second / B", "temperature=0.30"} {
		if !strings.Contains(out, want) {
			t.Fatalf("render output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "chosen:") {
		t.Fatalf("render output missing chosen line:\n%s", out)
	}
}

func TestTrackLabel(t *testing.T) {
	if got := trackLabel("Title", "Artist", "id"); got != "Title / Artist" {
		t.Fatalf("trackLabel = %q", got)
	}
	if got := trackLabel("Title", "", "id"); got != "Title" {
		t.Fatalf("trackLabel = %q", got)
	}
	if got := trackLabel("", "", "id"); got != "id" {
		t.Fatalf("trackLabel = %q", got)
	}
}
