package cmd

import (
	"context"

	"github.com/spf13/cobra"

	fderror "github.com/msto63/firedoc/foundation/core/error"
	fdlog "github.com/msto63/firedoc/foundation/core/log"
	"github.com/msto63/firedoc/internal/auth"
	"github.com/msto63/firedoc/internal/docstore"
	"github.com/msto63/firedoc/internal/tasks"
	coregrpc "github.com/msto63/firedoc/pkg/core/grpc"
	"github.com/msto63/firedoc/pkg/core/logging"
)

// emulatorProject names the project used against an emulator when none is configured
const emulatorProject = "demo-firedoc"

// session is the credential store, channel and client shared by one command run
type session struct {
	source  auth.Source
	store   *auth.Store // nil against an emulator
	channel *coregrpc.Channel
	client  *docstore.Client
}

// openSession builds the credential source from the key file, dials the
// endpoint and creates the document client. Against an insecure emulator
// endpoint without a key file a static token is used.
func openSession(ctx context.Context) (*session, error) {
	cfg := appConfig
	log := logging.New("session")
	s := &session{}

	switch {
	case cfg.Auth.ServiceAccountFile != "":
		account, err := auth.LoadServiceAccount(cfg.Auth.ServiceAccountFile)
		if err != nil {
			return nil, err
		}
		opts := []auth.Option{
			auth.WithScopes(cfg.Auth.Scopes...),
			auth.WithRefreshMargin(cfg.Auth.RefreshMargin.Duration),
			auth.WithLogger(logging.Root().WithName("auth")),
		}
		// the key file's own token endpoint wins over the configured default
		if account.TokenURI == "" {
			opts = append(opts, auth.WithTokenURL(cfg.Auth.TokenURL))
		}
		store, err := auth.NewStore(account, opts...)
		if err != nil {
			return nil, err
		}
		if cfg.Firestore.ProjectID == "" {
			cfg.Firestore.ProjectID = account.ProjectID
		}
		s.source, s.store = store, store
	case cfg.Firestore.Insecure:
		s.source = auth.Static{Token: "owner"}
		if cfg.Firestore.ProjectID == "" {
			cfg.Firestore.ProjectID = emulatorProject
		}
	default:
		return nil, fderror.New("auth.service_account_file is required").
			WithCode(fderror.CodeConfig).
			WithOperation("OpenSession")
	}

	if cfg.Firestore.ProjectID == "" {
		return nil, fderror.New("firestore.project_id is required").
			WithCode(fderror.CodeConfig).
			WithOperation("OpenSession")
	}

	cc := coregrpc.DefaultClientConfig(cfg.Firestore.Endpoint)
	cc.DomainName = cfg.Firestore.DomainName
	cc.RootsFile = cfg.Firestore.RootsFile
	cc.Insecure = cfg.Firestore.Insecure
	cc.ConnectTimeout = cfg.Firestore.ConnectTimeout.Duration

	log.Debug("connecting", "endpoint", cc.Target, "domain", cc.DomainName, "insecure", cc.Insecure)
	channel, err := coregrpc.Connect(ctx, cc)
	if err != nil {
		return nil, err
	}
	s.channel = channel

	client, err := docstore.New(docstore.Config{
		Parent:         cfg.Parent(),
		RequestTimeout: cfg.Firestore.RequestTimeout.Duration,
	}, channel, s.source, docstore.WithLogger(logging.New("docstore")))
	if err != nil {
		channel.Close()
		return nil, err
	}
	s.client = client
	return s, nil
}

func (s *session) tasks() *tasks.Repository {
	return tasks.New(s.client, tasks.WithPageSize(int32(appConfig.Firestore.PageSize)))
}

// identity names the caller: the service account email, or the static
// token used against an emulator
func (s *session) identity() string {
	if s.store != nil {
		return s.store.Account().ClientEmail
	}
	return "static emulator token"
}

func (s *session) Close() error {
	return s.channel.Close()
}

// withSession opens a session for the duration of fn
func withSession(cmd *cobra.Command, fn func(*session) error) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// retry runs an idempotent call under the caller retry policy. A retry on a
// channel that has left the ready state reconnects first.
func (s *session) retry(cmd *cobra.Command, fn func(context.Context) error) error {
	policy := docstore.DefaultRetryPolicy()
	policy.MaxTries = retries
	if policy.MaxTries == 0 {
		policy.MaxTries = 1
	}
	policy.Logger = logging.Root().WithName("retry")

	attempt := 0
	return docstore.Retry(cmd.Context(), policy, func(ctx context.Context) error {
		attempt++
		if attempt > 1 && !s.channel.Healthy() {
			if err := s.channel.Reconnect(ctx); err != nil {
				policy.Logger.Warn("reconnect failed", fdlog.Fields{"error": err.Error()})
			}
		}
		return fn(ctx)
	})
}
