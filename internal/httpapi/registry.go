package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MimeLyc/live-sub-translator/internal/cache"
	"github.com/MimeLyc/live-sub-translator/internal/pipeline"
	"github.com/MimeLyc/live-sub-translator/internal/provider"
	"github.com/MimeLyc/live-sub-translator/internal/settings"
	"github.com/MimeLyc/live-sub-translator/internal/subtitle"
	"github.com/MimeLyc/live-sub-translator/pkg/log"
)

const defaultProfile = "default"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoSettingsStore = errors.New("settings store is not configured")
)

// SettingsStore is the persisted per-profile settings map.
type SettingsStore interface {
	LoadSettings(ctx context.Context, profile string) (settings.Settings, error)
	PutSetting(ctx context.Context, profile string, key string, value json.RawMessage) (settings.Settings, error)
}

type RegistryConfig struct {
	Pipeline     pipeline.Options
	Throttle     time.Duration
	CacheMaxSize int
	CacheTTL     time.Duration
}

// SessionInfo describes a live session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Profile   string    `json:"profile"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

type liveSession struct {
	info    SessionInfo
	session *pipeline.Session
	overlay *Overlay
	feed    *subtitle.Feed
	cancel  context.CancelFunc
}

// Registry owns the live sessions of a server. Each session runs its own
// loop and caption sampler until it is closed or reaped.
type Registry struct {
	translator provider.Translator
	store      SettingsStore
	cfg        RegistryConfig
	base       context.Context

	mu       sync.Mutex
	sessions map[string]*liveSession
}

func NewRegistry(ctx context.Context, tr provider.Translator, store SettingsStore, cfg RegistryConfig) *Registry {
	return &Registry{
		translator: tr,
		store:      store,
		cfg:        cfg,
		base:       ctx,
		sessions:   make(map[string]*liveSession),
	}
}

func (r *Registry) loadSettings(ctx context.Context, profile string) (settings.Settings, error) {
	if r.store == nil {
		return settings.Default(), nil
	}
	return r.store.LoadSettings(ctx, profile)
}

func (r *Registry) Create(ctx context.Context, profile string) (SessionInfo, settings.Settings, error) {
	if profile == "" {
		profile = defaultProfile
	}
	st, err := r.loadSettings(ctx, profile)
	if err != nil {
		return SessionInfo{}, st, err
	}

	id := uuid.NewString()
	now := time.Now()
	overlay := NewOverlay()
	sess := pipeline.NewSession(
		r.translator,
		overlay,
		pipeline.WithOptions(r.cfg.Pipeline),
		pipeline.WithSettings(st),
		pipeline.WithCache(cache.New(cache.WithMaxSize(r.cfg.CacheMaxSize), cache.WithTTL(r.cfg.CacheTTL))),
		pipeline.WithLogger(log.GetLogger().Named("session "+id[:8])),
	)
	feed := subtitle.NewFeed()
	sessCtx, cancel := context.WithCancel(r.base)

	ls := &liveSession{
		info: SessionInfo{
			ID:        id,
			Profile:   profile,
			CreatedAt: now,
			LastSeen:  now,
		},
		session: sess,
		overlay: overlay,
		feed:    feed,
		cancel:  cancel,
	}

	go func() {
		if err := sess.Run(sessCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("session %s stopped: %v", id, err)
		}
	}()
	go subtitle.NewSampler(r.cfg.Throttle).Run(sessCtx, feed.Observe(sessCtx), sess.Observe)

	info := ls.info
	r.mu.Lock()
	r.sessions[id] = ls
	r.mu.Unlock()

	log.Info("session %s created for profile %s", id, profile)
	return info, st, nil
}

// get returns the session and marks it as used.
func (r *Registry) get(id string) (*liveSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	ls.info.LastSeen = time.Now()
	return ls, nil
}

func (r *Registry) describe(ls *liveSession) SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ls.info
}

func (r *Registry) Close(id string) error {
	r.mu.Lock()
	ls, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	r.stop(ls)
	log.Info("session %s closed", id)
	return nil
}

func (r *Registry) stop(ls *liveSession) {
	ls.feed.Close()
	ls.cancel()
	<-ls.session.Done()
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*liveSession, 0, len(r.sessions))
	for id, ls := range r.sessions {
		all = append(all, ls)
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	for _, ls := range all {
		r.stop(ls)
	}
}

func (r *Registry) List() []SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]SessionInfo, 0, len(r.sessions))
	for _, ls := range r.sessions {
		ret = append(ret, ls.info)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].CreatedAt.Before(ret[j].CreatedAt)
	})
	return ret
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Reap closes sessions unused for longer than idle. A session with an open
// overlay stream is never idle.
func (r *Registry) Reap(idle time.Duration) []string {
	cutoff := time.Now().Add(-idle)

	r.mu.Lock()
	var stale []*liveSession
	for id, ls := range r.sessions {
		if ls.info.LastSeen.After(cutoff) || ls.overlay.Subscribers() > 0 {
			continue
		}
		stale = append(stale, ls)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(stale))
	for _, ls := range stale {
		r.stop(ls)
		ids = append(ids, ls.info.ID)
	}
	sort.Strings(ids)
	if len(ids) > 0 {
		log.Info("reaped %d idle sessions", len(ids))
	}
	return ids
}

// PurgeCaches drops expired cache entries across all sessions.
func (r *Registry) PurgeCaches() int {
	r.mu.Lock()
	all := make([]*liveSession, 0, len(r.sessions))
	for _, ls := range r.sessions {
		all = append(all, ls)
	}
	r.mu.Unlock()

	total := 0
	for _, ls := range all {
		n, err := ls.session.PurgeCache()
		if err == nil {
			total += n
		}
	}
	return total
}

// ApplySetting persists one key for a profile and pushes the result to every
// live session of that profile.
func (r *Registry) ApplySetting(ctx context.Context, profile string, key string, value json.RawMessage) (settings.Settings, error) {
	if profile == "" {
		profile = defaultProfile
	}
	if r.store == nil {
		return settings.Default(), ErrNoSettingsStore
	}
	next, err := r.store.PutSetting(ctx, profile, key, value)
	if err != nil {
		return next, err
	}

	r.mu.Lock()
	targets := make([]*liveSession, 0)
	for _, ls := range r.sessions {
		if ls.info.Profile == profile {
			targets = append(targets, ls)
		}
	}
	r.mu.Unlock()

	for _, ls := range targets {
		ls.session.UpdateSettings(next)
	}
	return next, nil
}

func (r *Registry) Settings(ctx context.Context, profile string) (settings.Settings, error) {
	if profile == "" {
		profile = defaultProfile
	}
	return r.loadSettings(ctx, profile)
}
