package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kozaktomas/facewatch/internal/facematch"
)

func TestPrintVersion(t *testing.T) {
	var buf bytes.Buffer
	printVersion(&buf, facematch.Profile{Model: "ArcFace", Detectors: []string{"opencv", "ssd"}, Threshold: 0.55})

	out := buf.String()
	for _, want := range []string{"facewatch dev", "Commit:  unknown", "Profile: ArcFace:opencv,ssd (threshold 0.55)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
