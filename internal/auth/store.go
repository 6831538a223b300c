package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	fderror "github.com/msto63/firedoc/foundation/core/error"
	fdlog "github.com/msto63/firedoc/foundation/core/log"
)

const (
	// DefaultRefreshMargin is how long before expiry a token is replaced
	DefaultRefreshMargin = 60 * time.Second
	// DefaultExchangeTimeout bounds a single token exchange
	DefaultExchangeTimeout = 30 * time.Second
	// DatastoreScope grants read/write access to the document store
	DatastoreScope = "https://www.googleapis.com/auth/datastore"
)

// Credential is a bearer token and the instant it stops being accepted
type Credential struct {
	AccessToken string
	ExpiresAt   time.Time
}

// ValidAt reports whether c can still be attached at now, keeping margin
// in reserve.
func (c Credential) ValidAt(now time.Time, margin time.Duration) bool {
	return c.AccessToken != "" && now.Add(margin).Before(c.ExpiresAt)
}

// Source hands out credentials and replaces one the server rejected
type Source interface {
	Credential(ctx context.Context) (Credential, error)
	ForceRefresh(ctx context.Context, stale string) (Credential, error)
}

// Option configures a Store
type Option func(*Store)

// WithScopes replaces the requested OAuth scopes
func WithScopes(scopes ...string) Option {
	return func(s *Store) {
		if len(scopes) > 0 {
			s.scopes = append([]string(nil), scopes...)
		}
	}
}

// WithTokenURL overrides the token endpoint from the key file
func WithTokenURL(url string) Option {
	return func(s *Store) {
		if url != "" {
			s.tokenURL = url
		}
	}
}

// WithRefreshMargin sets how early a token is refreshed
func WithRefreshMargin(margin time.Duration) Option {
	return func(s *Store) {
		if margin >= 0 {
			s.margin = margin
		}
	}
}

// WithHTTPClient sets the client used for the exchange
func WithHTTPClient(client *http.Client) Option {
	return func(s *Store) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithClock injects the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *fdlog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store caches the current credential of one service account. It is safe
// for concurrent use; the cached credential is the only mutable state.
type Store struct {
	account    *ServiceAccount
	scopes     []string
	tokenURL   string
	margin     time.Duration
	httpClient *http.Client
	now        func() time.Time
	logger     *fdlog.Logger

	mu   sync.Mutex
	cred Credential

	flight    singleflight.Group
	exchanges int64
}

// NewStore creates a Store for account
func NewStore(account *ServiceAccount, opts ...Option) (*Store, error) {
	if account == nil || account.key == nil {
		return nil, fderror.New("service account key is required").
			WithCode(fderror.CodeConfig).
			WithOperation("NewStore")
	}

	s := &Store{
		account:    account,
		scopes:     []string{DatastoreScope},
		tokenURL:   account.TokenURI,
		margin:     DefaultRefreshMargin,
		httpClient: &http.Client{Timeout: DefaultExchangeTimeout},
		now:        time.Now,
		logger:     fdlog.GetDefault().WithName("auth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tokenURL == "" {
		s.tokenURL = DefaultTokenURL
	}
	return s, nil
}

// Credential returns the cached credential while it is valid for at least
// the refresh margin, otherwise it refreshes and waits for the result.
func (s *Store) Credential(ctx context.Context) (Credential, error) {
	if c, ok := s.cached(); ok {
		return c, nil
	}
	return s.refresh(ctx)
}

// AccessToken returns only the token string of Credential
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	c, err := s.Credential(ctx)
	if err != nil {
		return "", err
	}
	return c.AccessToken, nil
}

// ForceRefresh discards the cached credential if it still holds stale and
// returns a fresh one. If another caller already replaced stale, that
// replacement is returned without a new exchange.
func (s *Store) ForceRefresh(ctx context.Context, stale string) (Credential, error) {
	s.mu.Lock()
	if stale == "" || s.cred.AccessToken == stale {
		s.cred = Credential{}
	}
	s.mu.Unlock()

	s.logger.Debug("forced credential refresh")
	return s.Credential(ctx)
}

// Token implements oauth2.TokenSource
func (s *Store) Token() (*oauth2.Token, error) {
	c, err := s.Credential(context.Background())
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: c.AccessToken,
		TokenType:   "Bearer",
		Expiry:      c.ExpiresAt,
	}, nil
}

// Current returns the cached credential without refreshing
func (s *Store) Current() Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred
}

// Exchanges reports how many token exchanges completed successfully
func (s *Store) Exchanges() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchanges
}

// Account returns the service account the store signs for
func (s *Store) Account() *ServiceAccount { return s.account }

func (s *Store) cached() (Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred.ValidAt(s.now(), s.margin) {
		return s.cred, true
	}
	return Credential{}, false
}

// refresh runs at most one exchange at a time. The exchange is detached from
// the caller's cancellation so one impatient waiter cannot fail the others.
func (s *Store) refresh(ctx context.Context) (Credential, error) {
	ch := s.flight.DoChan("token", func() (interface{}, error) {
		if c, ok := s.cached(); ok {
			return c, nil
		}

		exCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultExchangeTimeout)
		defer cancel()

		timer := s.logger.StartTimer("token exchange")
		c, err := s.exchange(exCtx)
		if err != nil {
			timer.StopWithError(err)
			return nil, err
		}
		timer.Stop()

		s.mu.Lock()
		s.cred = c
		s.exchanges++
		s.mu.Unlock()
		return c, nil
	})

	select {
	case <-ctx.Done():
		return Credential{}, fderror.Wrap(ctx.Err(), "waiting for credential refresh").
			WithCode(fderror.CodeDeadlineExceeded).
			WithOperation("Credential")
	case res := <-ch:
		if res.Err != nil {
			return Credential{}, res.Err
		}
		return res.Val.(Credential), nil
	}
}

// Static is a Source with a fixed token, for emulators and tests
type Static struct {
	Token string
}

func (s Static) Credential(context.Context) (Credential, error) {
	return Credential{AccessToken: s.Token, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s Static) ForceRefresh(ctx context.Context, _ string) (Credential, error) {
	return s.Credential(ctx)
}

func (s Static) AccessToken(context.Context) (string, error) { return s.Token, nil }
