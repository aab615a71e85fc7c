package player

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vexolabs/vexo/pkg/audio"
)

// FileResolver resolves track ids to raw PCM files named "{id}.pcm"
// under a library directory. It exists for local setups and tests; a
// real deployment plugs in a network resolver instead.
type FileResolver struct {
	Dir string
}

func (r *FileResolver) Resolve(ctx context.Context, trackID string) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Track ids come from user input; keep lookups inside the library.
	name := filepath.Base(trackID) + ".pcm"
	path := filepath.Join(r.Dir, name)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open track %s: %w", trackID, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat track %s: %w", trackID, err)
	}

	samples := info.Size() / audio.BytesPerSample
	return &Stream{
		TrackID:  trackID,
		Duration: time.Duration(samples) * time.Second / audio.SampleRate,
		Source:   f,
	}, nil
}
