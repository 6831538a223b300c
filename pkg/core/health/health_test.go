package health

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	coregrpc "github.com/msto63/firedoc/pkg/core/grpc"
)

func TestNewChecker(t *testing.T) {
	checker := NewChecker("test-checker", func(ctx context.Context) CheckResult {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "test passed",
		}
	})

	if checker.Name() != "test-checker" {
		t.Errorf("Name() = %v, want test-checker", checker.Name())
	}

	result := checker.Check(context.Background())
	if result.Status != StatusHealthy {
		t.Errorf("Status = %v, want healthy", result.Status)
	}
	if result.Message != "test passed" {
		t.Errorf("Message = %v, want 'test passed'", result.Message)
	}
}

func TestRegistry_RegisterAndCheck(t *testing.T) {
	registry := NewRegistry("firedoc", "1.0.0")

	checker1 := NewChecker("channel", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy, Message: "READY"}
	})
	checker2 := NewChecker("credential", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy, Message: "credential valid"}
	})

	registry.Register(checker1)
	registry.Register(checker2)

	report := registry.Check(context.Background())

	if report.Service != "firedoc" {
		t.Errorf("Service = %v, want firedoc", report.Service)
	}
	if report.Version != "1.0.0" {
		t.Errorf("Version = %v, want 1.0.0", report.Version)
	}
	if report.Status != StatusHealthy {
		t.Errorf("Status = %v, want healthy", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Errorf("Checks count = %v, want 2", len(report.Checks))
	}
}

func TestRegistry_RegisterFunc(t *testing.T) {
	registry := NewRegistry("firedoc", "1.0.0")

	registry.RegisterFunc("endpoint", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy, Message: "TCP check passed"}
	})

	report := registry.Check(context.Background())

	if len(report.Checks) != 1 {
		t.Errorf("Checks count = %v, want 1", len(report.Checks))
	}
	if report.Checks[0].Name != "endpoint" {
		t.Errorf("Check name = %v, want endpoint", report.Checks[0].Name)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	registry := NewRegistry("firedoc", "1.0.0")

	registry.RegisterFunc("temp", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})

	report1 := registry.Check(context.Background())
	if len(report1.Checks) != 1 {
		t.Errorf("Before unregister: Checks count = %v, want 1", len(report1.Checks))
	}

	registry.Unregister("temp")

	report2 := registry.Check(context.Background())
	if len(report2.Checks) != 0 {
		t.Errorf("After unregister: Checks count = %v, want 0", len(report2.Checks))
	}
}

func TestRegistry_OverallStatus_Unhealthy(t *testing.T) {
	registry := NewRegistry("firedoc", "1.0.0")

	registry.RegisterFunc("healthy-check", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})
	registry.RegisterFunc("unhealthy-check", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusUnhealthy}
	})

	report := registry.Check(context.Background())

	if report.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", report.Status)
	}
}

func TestRegistry_OverallStatus_Degraded(t *testing.T) {
	registry := NewRegistry("firedoc", "1.0.0")

	registry.RegisterFunc("healthy-check", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})
	registry.RegisterFunc("degraded-check", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusDegraded}
	})

	report := registry.Check(context.Background())

	if report.Status != StatusDegraded {
		t.Errorf("Status = %v, want degraded", report.Status)
	}
}

func TestRegistry_CheckWithTimeout(t *testing.T) {
	registry := NewRegistry("firedoc", "1.0.0")

	registry.RegisterFunc("fast-check", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})

	report := registry.CheckWithTimeout(5 * time.Second)

	if report.Status != StatusHealthy {
		t.Errorf("Status = %v, want healthy", report.Status)
	}
}

func TestRegistry_ConcurrentChecks(t *testing.T) {
	registry := NewRegistry("firedoc", "1.0.0")

	var counter int32

	for i := 0; i < 5; i++ {
		registry.RegisterFunc("check"+string(rune('A'+i)), func(ctx context.Context) CheckResult {
			atomic.AddInt32(&counter, 1)
			time.Sleep(10 * time.Millisecond) // Simulate work
			return CheckResult{Status: StatusHealthy}
		})
	}

	start := time.Now()
	report := registry.Check(context.Background())
	duration := time.Since(start)

	if atomic.LoadInt32(&counter) != 5 {
		t.Errorf("Counter = %v, want 5", counter)
	}

	// Checks should run concurrently, so total time should be close to 10ms, not 50ms
	if duration > 100*time.Millisecond {
		t.Errorf("Duration = %v, expected concurrent execution", duration)
	}

	if len(report.Checks) != 5 {
		t.Errorf("Checks count = %v, want 5", len(report.Checks))
	}
}

func TestRegistry_Uptime(t *testing.T) {
	registry := NewRegistry("firedoc", "1.0.0")

	time.Sleep(10 * time.Millisecond)

	report := registry.Check(context.Background())

	if report.Uptime < 10*time.Millisecond {
		t.Errorf("Uptime = %v, expected >= 10ms", report.Uptime)
	}
}

func TestAlwaysHealthy(t *testing.T) {
	checker := AlwaysHealthy("always-healthy")

	if checker.Name() != "always-healthy" {
		t.Errorf("Name() = %v, want always-healthy", checker.Name())
	}

	result := checker.Check(context.Background())
	if result.Status != StatusHealthy {
		t.Errorf("Status = %v, want healthy", result.Status)
	}
}

func TestRegistry_ChecksSortedByName(t *testing.T) {
	registry := NewRegistry("firedoc", "1.0.0")
	for _, name := range []string{"c", "a", "b"} {
		registry.Register(AlwaysHealthy(name))
	}

	report := registry.Check(context.Background())
	for i, want := range []string{"a", "b", "c"} {
		if report.Checks[i].Name != want {
			t.Errorf("Checks[%d] = %v, want %v", i, report.Checks[i].Name, want)
		}
	}
}

type fixedState connectivity.State

func (s fixedState) State() connectivity.State { return connectivity.State(s) }

func TestChannelCheck(t *testing.T) {
	tests := []struct {
		state connectivity.State
		want  Status
	}{
		{connectivity.Ready, StatusHealthy},
		{connectivity.Idle, StatusHealthy},
		{connectivity.Connecting, StatusDegraded},
		{connectivity.TransientFailure, StatusUnhealthy},
		{connectivity.Shutdown, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			result := ChannelCheck("channel", fixedState(tt.state)).Check(context.Background())
			if result.Status != tt.want {
				t.Errorf("Status = %v, want %v", result.Status, tt.want)
			}
			if result.Details["state"] != tt.state.String() {
				t.Errorf("Details[state] = %v", result.Details["state"])
			}
		})
	}
}

func TestCredentialCheck(t *testing.T) {
	tests := []struct {
		name   string
		expiry ExpiryFunc
		want   Status
	}{
		{"valid", func(context.Context) (time.Time, error) { return time.Now().Add(time.Hour), nil }, StatusHealthy},
		{"expiring", func(context.Context) (time.Time, error) { return time.Now().Add(30 * time.Second), nil }, StatusDegraded},
		{"expired", func(context.Context) (time.Time, error) { return time.Now().Add(-time.Second), nil }, StatusUnhealthy},
		{"exchange failed", func(context.Context) (time.Time, error) { return time.Time{}, errors.New("invalid_grant") }, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CredentialCheck("credential", tt.expiry, 2*time.Minute).Check(context.Background())
			if result.Status != tt.want {
				t.Errorf("Status = %v (%s), want %v", result.Status, result.Message, tt.want)
			}
		})
	}
}

func TestTCPCheck(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := lis.Addr().String()

	checker := TCPCheck("tcp-test", addr, time.Second)
	if checker.Name() != "tcp-test" {
		t.Errorf("Name() = %v, want tcp-test", checker.Name())
	}

	result := checker.Check(context.Background())
	if result.Status != StatusHealthy || result.Details["address"] != addr {
		t.Errorf("open port: %+v", result)
	}

	lis.Close()
	result = checker.Check(context.Background())
	if result.Status != StatusUnhealthy {
		t.Errorf("closed port: Status = %v, want unhealthy", result.Status)
	}
}

func TestGRPCCheck(t *testing.T) {
	cfg := coregrpc.DefaultServerConfig()
	cfg.EnableReflection = false
	cfg.RequireAuth = true
	srv := coregrpc.NewServer(cfg)

	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	// the health service answers without a bearer token
	result := GRPCCheck("server", conn, "", time.Second).Check(context.Background())
	if result.Status != StatusHealthy {
		t.Fatalf("server: %+v", result)
	}

	srv.SetServing("google.firestore.v1.Firestore", false)
	result = GRPCCheck("firestore", conn, "google.firestore.v1.Firestore", time.Second).Check(context.Background())
	if result.Status != StatusUnhealthy || result.Message != "NOT_SERVING" {
		t.Errorf("not serving: %+v", result)
	}

	result = GRPCCheck("unknown", conn, "no.such.Service", time.Second).Check(context.Background())
	if result.Status != StatusUnhealthy || result.Details["code"] != "NotFound" {
		t.Errorf("unknown service: %+v", result)
	}
}
