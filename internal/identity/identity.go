// Package identity adapts the identity/profile collaborator: the local
// display profile and the stable per-device client identifier that
// attributes "own" messages before and without login.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ledgerchat/internal/model"
	"ledgerchat/internal/repository/cache"
	"ledgerchat/internal/utils/log"
)

// Settings is the persistence used for the stable client id.
type Settings interface {
	GetSetting(key string) (string, bool, error)
	PutSetting(key, value string) error
}

type Service struct {
	host string
	http *http.Client

	settings Settings

	mu       sync.Mutex
	clientID string
	profile  *model.Profile
}

func NewService(host string, settings Settings) *Service {
	return &Service{
		host:     host,
		http:     &http.Client{Timeout: 10 * time.Second},
		settings: settings,
	}
}

// StableClientID returns the per-device identifier, generating and
// persisting one on first use. It survives sessions on the same device
// and is independent of login state.
func (s *Service) StableClientID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clientID != "" {
		return s.clientID, nil
	}
	stored, ok, err := s.settings.GetSetting(cache.SettingClientID)
	if err != nil {
		return "", fmt.Errorf("read client id: %w", err)
	}
	if ok && stored != "" {
		s.clientID = stored
		return stored, nil
	}

	id := uuid.NewString()
	if err := s.settings.PutSetting(cache.SettingClientID, id); err != nil {
		return "", fmt.Errorf("persist client id: %w", err)
	}
	s.clientID = id
	return id, nil
}

// LocalProfile returns the current display profile, fetching it once
// and serving the cached copy afterwards. Returns nil when the identity
// service has no profile for this client.
func (s *Service) LocalProfile(ctx context.Context) *model.Profile {
	s.mu.Lock()
	cached := s.profile
	s.mu.Unlock()
	if cached != nil {
		return cached
	}
	return s.RefreshProfile(ctx)
}

// RefreshProfile re-fetches the profile, e.g. on a PROFILE_UPDATED
// broadcast from a sibling tab. Fetch failures keep the previous copy.
func (s *Service) RefreshProfile(ctx context.Context) *model.Profile {
	clientID, err := s.StableClientID()
	if err != nil {
		log.Error("resolve client id", zap.Error(err))
		return nil
	}

	u := url.URL{
		Scheme: "http",
		Host:   s.host,
		Path:   fmt.Sprintf("/profiles/%s", clientID),
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return s.current()
	}
	resp, err := s.http.Do(req)
	if err != nil {
		log.Debug("profile fetch failed", zap.Error(err))
		return s.current()
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		s.mu.Lock()
		s.profile = nil
		s.mu.Unlock()
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return s.current()
	}

	var p model.Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		log.Debug("decode profile", zap.Error(err))
		return s.current()
	}

	s.mu.Lock()
	s.profile = &p
	s.mu.Unlock()
	return &p
}

// UpdateProfile pushes a new profile to the identity service and
// adopts it locally on success.
func (s *Service) UpdateProfile(ctx context.Context, p model.Profile) error {
	clientID, err := s.StableClientID()
	if err != nil {
		return err
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	u := url.URL{
		Scheme: "http",
		Host:   s.host,
		Path:   fmt.Sprintf("/profiles/%s", clientID),
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.String(), strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("update profile: status %d", resp.StatusCode)
	}

	s.mu.Lock()
	s.profile = &p
	s.mu.Unlock()
	return nil
}

// IsAuthenticated reports whether the identity service knows a profile
// for this client. The stable client id works either way.
func (s *Service) IsAuthenticated(ctx context.Context) bool {
	return s.LocalProfile(ctx) != nil
}

func (s *Service) current() *model.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}
