package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/vexolabs/vexo/pkg/discover"
)

// playlistDoc is the on-disk playlist format.
type playlistDoc struct {
	Playlists map[string][]playlistTrack `yaml:"playlists"`
}

type playlistTrack struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	Artist string `yaml:"artist"`
}

// FilePlaylist serves playlists from the config directory's
// playlist.yaml. The file is re-read on every lookup so edits take
// effect without a restart.
type FilePlaylist struct {
	Path string
}

// OpenPlaylist returns the playlist source for a config.
func (c *Config) OpenPlaylist() *FilePlaylist {
	return &FilePlaylist{Path: filepath.Join(c.Dir, playlistFile)}
}

// Tracks implements discover.Playlist.
func (p *FilePlaylist) Tracks(_ context.Context, playlistID string) ([]discover.TrackRef, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read playlist file: %w", err)
	}

	var doc playlistDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.Path, err)
	}

	tracks := doc.Playlists[playlistID]
	refs := make([]discover.TrackRef, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" {
			continue
		}
		refs = append(refs, discover.TrackRef{TrackID: t.ID, Title: t.Title, Artist: t.Artist})
	}
	return refs, nil
}
