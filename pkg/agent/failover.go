package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agencyswarm/claii/internal/observability"
	"github.com/agencyswarm/claii/internal/tracing"
	"github.com/rs/zerolog"
)

// ErrNoProfiles is returned when a failover provider has nothing to try.
var ErrNoProfiles = errors.New("at least one auth profile is required")

// FailoverOptions tunes retry and cooldown behavior.
type FailoverOptions struct {
	MaxRetries int           // attempts per profile, default 3
	BaseDelay  time.Duration // first backoff delay, doubled per attempt, default 1s
	Cooldown   time.Duration // per consecutive failure, default 1m
	Logger     zerolog.Logger
}

// FailoverProvider tries auth profiles in priority order, retrying transient
// errors on each and parking failing profiles in a cooldown.
type FailoverProvider struct {
	factory ProviderCreator
	opts    FailoverOptions
	logger  zerolog.Logger

	mu        sync.Mutex
	profiles  []AuthProfile
	providers map[string]LLMProvider
	active    string
}

// NewFailoverProvider creates a provider over profiles. A nil factory uses
// ProviderFactory.
func NewFailoverProvider(profiles []AuthProfile, factory ProviderCreator, opts FailoverOptions) (*FailoverProvider, error) {
	if len(profiles) == 0 {
		return nil, ErrNoProfiles
	}
	if factory == nil {
		factory = &ProviderFactory{}
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = time.Minute
	}

	sorted := append([]AuthProfile(nil), profiles...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	return &FailoverProvider{
		factory:   factory,
		opts:      opts,
		logger:    opts.Logger,
		profiles:  sorted,
		providers: make(map[string]LLMProvider),
		active:    sorted[0].Provider,
	}, nil
}

// Provider returns the provider of the profile that served the last call.
func (f *FailoverProvider) Provider() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Profiles returns a snapshot of the profiles with their failure state.
func (f *FailoverProvider) Profiles() []AuthProfile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]AuthProfile(nil), f.profiles...)
}

// Call sends the request to the first healthy profile.
func (f *FailoverProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	logger := tracing.LoggerFromContext(ctx, f.logger)
	var lastErr error

	for _, profile := range f.Profiles() {
		if profile.CooldownUntil != nil && time.Now().UnixMilli() < *profile.CooldownUntil {
			observability.SetProviderCooldown(profile.Provider, true)
			logger.Debug().Str("profile_id", profile.ID).Msg("Skipping profile in cooldown")
			continue
		}

		provider, err := f.providerFor(profile)
		if err != nil {
			lastErr = err
			logger.Warn().Str("profile_id", profile.ID).Err(err).Msg("Failed to create provider")
			continue
		}

		req := request
		if profile.Model != "" {
			req.Model = profile.Model
		}

		response, err := f.callWithRetry(ctx, provider, req)
		if err == nil {
			f.markSuccess(profile.ID)
			return response, nil
		}

		lastErr = err
		logger.Warn().Str("profile_id", profile.ID).Err(err).Msg("Auth profile failed")
		f.markFailure(profile.ID)

		if !IsRetryableError(err) {
			return nil, err
		}
	}

	if lastErr == nil {
		lastErr = errors.New("every profile is cooling down")
	}
	return nil, fmt.Errorf("all auth profiles failed: %w", lastErr)
}

func (f *FailoverProvider) providerFor(profile AuthProfile) (LLMProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.providers[profile.ID]; ok {
		return p, nil
	}
	p, err := f.factory.NewProvider(profile)
	if err != nil {
		return nil, err
	}
	f.providers[profile.ID] = p
	return p, nil
}

// callWithRetry calls the provider with exponential backoff.
func (f *FailoverProvider) callWithRetry(ctx context.Context, provider LLMProvider, request LLMRequest) (*LLMResponse, error) {
	var lastErr error

	for attempt := 0; attempt < f.opts.MaxRetries; attempt++ {
		response, err := provider.Call(ctx, request)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if !IsRetryableError(err) || attempt == f.opts.MaxRetries-1 {
			break
		}

		delay := f.opts.BaseDelay * time.Duration(1<<attempt)
		observability.RecordProviderRetry(provider.Provider())
		f.logger.Info().
			Str("provider", provider.Provider()).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying after error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

func (f *FailoverProvider) markSuccess(profileID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.profiles {
		if f.profiles[i].ID == profileID {
			f.profiles[i].FailureCount = 0
			f.profiles[i].CooldownUntil = nil
			f.active = f.profiles[i].Provider
			observability.SetProviderCooldown(f.profiles[i].Provider, false)
			return
		}
	}
}

func (f *FailoverProvider) markFailure(profileID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.profiles {
		if f.profiles[i].ID == profileID {
			f.profiles[i].FailureCount++
			until := time.Now().Add(f.opts.Cooldown * time.Duration(f.profiles[i].FailureCount)).UnixMilli()
			f.profiles[i].CooldownUntil = &until
			observability.SetProviderCooldown(f.profiles[i].Provider, true)
			return
		}
	}
}
