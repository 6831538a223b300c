package emulator

import (
	fderror "github.com/msto63/firedoc/foundation/core/error"
	"github.com/msto63/firedoc/pkg/core/config"
	coregrpc "github.com/msto63/firedoc/pkg/core/grpc"
)

// Store backends accepted in configuration
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// OpenStore creates the backend named by cfg.Store
func OpenStore(cfg config.EmulatorConfig) (Store, error) {
	switch cfg.Store {
	case "", StoreMemory:
		return NewMemoryStore(), nil
	case StoreSQLite:
		path := cfg.Path
		if path == "" {
			path = DefaultSQLiteConfig().Path
		}
		store, err := NewSQLiteStore(SQLiteConfig{Path: path})
		if err != nil {
			return nil, fderror.Wrap(err, "open emulator store").
				WithCode(fderror.CodeConfig).
				WithDetail(fderror.DetailPath, path)
		}
		return store, nil
	default:
		return nil, fderror.Newf("unknown emulator store %q", cfg.Store).
			WithCode(fderror.CodeConfig).
			WithOperation("OpenStore")
	}
}

// NewGRPCServer wraps srv in a transport server configured from cfg. With
// RequireAuth set, calls without a bearer token are rejected; any token is
// accepted otherwise, since the emulator has no identity provider.
func NewGRPCServer(cfg config.EmulatorConfig, srv *Server) *coregrpc.Server {
	sc := coregrpc.DefaultServerConfig()
	if cfg.Host != "" {
		sc.Host = cfg.Host
	}
	if cfg.Port != 0 {
		sc.Port = cfg.Port
	}
	sc.RequireAuth = cfg.RequireAuth

	gs := coregrpc.NewServer(sc)
	srv.Register(gs)
	return gs
}
