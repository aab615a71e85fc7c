package commands

import (
	"fmt"
	"sync"

	"github.com/vexolabs/vexo/cmd/vexo/internal/config"
	"github.com/vexolabs/vexo/pkg/audio"
	"github.com/vexolabs/vexo/pkg/discover"
	"github.com/vexolabs/vexo/pkg/embed"
	"github.com/vexolabs/vexo/pkg/kv"
	"github.com/vexolabs/vexo/pkg/player"
	"github.com/vexolabs/vexo/pkg/taste"
)

// agent bundles the full stack behind one CLI invocation: storage,
// taste, discovery, and the playback host.
type agent struct {
	cfg    *config.Config
	db     kv.Store
	store  *taste.Store
	ledger *taste.Ledger
	pool   *discover.Pool
	host   *player.Host

	mu    sync.Mutex
	pipes map[string]*audio.Pipe
}

// openAgent builds the agent from the loaded configuration.
func openAgent() (*agent, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}

	db, err := kv.NewBadger(kv.BadgerOptions{Dir: cfg.DataDir})
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.DataDir, err)
	}

	store := taste.NewStore(db)
	ledger := taste.NewLedger(store)

	var embedder embed.Embedder
	if cfg.OpenAIAPIKey != "" {
		opts := []embed.Option{}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, embed.WithBaseURL(cfg.OpenAIBaseURL))
		}
		embedder = embed.NewOpenAI(cfg.OpenAIAPIKey, opts...)
	}

	pool := discover.NewPool(store, cfg.OpenPlaylist(), nil, embedder, discover.PoolConfig{
		FallbackPlaylist: cfg.FallbackPlaylist,
		ExclusionWindow:  cfg.ExclusionWindow,
		HistoryLimit:     cfg.HistoryWindow,
	})

	a := &agent{
		cfg:    cfg,
		db:     db,
		store:  store,
		ledger: ledger,
		pool:   pool,
		pipes:  make(map[string]*audio.Pipe),
	}
	a.host = player.NewHost(player.HostConfig{
		Store:       store,
		Ledger:      ledger,
		Pool:        pool,
		Resolver:    &player.FileResolver{Dir: cfg.LibraryDir},
		NewSink:     a.newPipe,
		Temperature: cfg.Temperature,
		TopK:        cfg.TopK,
		Playback: player.Config{
			PrefetchThreshold: cfg.PrefetchDuration(),
			ResolveTimeout:    cfg.ResolveDuration(),
			ResolveRetries:    cfg.ResolveRetries,
		},
	})
	return a, nil
}

// newPipe builds and remembers the per-guild audio pipe so the run loop
// can read frames out of it.
func (a *agent) newPipe(guildID string) player.AudioSink {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := audio.NewPipe(a.cfg.DefaultVolume)
	a.pipes[guildID] = p
	return p
}

// pipe returns the audio pipe for a guild, if one was created.
func (a *agent) pipe(guildID string) *audio.Pipe {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pipes[guildID]
}

// Close shuts the playback host down, then the database.
func (a *agent) Close() error {
	err := a.host.Close()
	if derr := a.db.Close(); err == nil {
		err = derr
	}
	return err
}
