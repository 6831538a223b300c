package emulator

import (
	"context"
	"net"
	"testing"
	"time"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/msto63/firedoc/pkg/core/config"
)

func newTestServer() *Server {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return New(NewMemoryStore(),
		WithClock(func() time.Time { return fixed }),
		WithIDGenerator(func() string { return "generated" }),
	)
}

func create(t *testing.T, s *Server, id string, fields map[string]*firestorepb.Value) *firestorepb.Document {
	t.Helper()
	doc, err := s.CreateDocument(context.Background(), &firestorepb.CreateDocumentRequest{
		Parent:       root,
		CollectionId: "test",
		DocumentId:   id,
		Document:     &firestorepb.Document{Fields: fields},
	})
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	return doc
}

func TestServer_CreateAndGet(t *testing.T) {
	s := newTestServer()
	doc := create(t, s, "doc1", map[string]*firestorepb.Value{"name": strValue("chiba"), "done": boolValue(true)})

	if doc.GetName() != root+"/test/doc1" {
		t.Errorf("Name = %q", doc.GetName())
	}
	if doc.GetCreateTime() == nil || !doc.GetCreateTime().AsTime().Equal(doc.GetUpdateTime().AsTime()) {
		t.Errorf("times = %v / %v", doc.GetCreateTime(), doc.GetUpdateTime())
	}

	got, err := s.GetDocument(context.Background(), &firestorepb.GetDocumentRequest{Name: doc.GetName()})
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if !got.GetFields()["done"].GetBooleanValue() {
		t.Errorf("GetDocument() = %v", got)
	}

	masked, _ := s.GetDocument(context.Background(), &firestorepb.GetDocumentRequest{
		Name: doc.GetName(),
		Mask: &firestorepb.DocumentMask{FieldPaths: []string{"name"}},
	})
	if len(masked.GetFields()) != 1 || masked.GetFields()["name"] == nil {
		t.Errorf("masked fields = %v", masked.GetFields())
	}
}

func TestServer_GeneratedID(t *testing.T) {
	s := newTestServer()
	doc := create(t, s, "", nil)
	if doc.GetName() != root+"/test/generated" {
		t.Errorf("Name = %q", doc.GetName())
	}

	if id := NewDocumentID(); len(id) != 20 {
		t.Errorf("NewDocumentID() = %q", id)
	}
}

func TestServer_Errors(t *testing.T) {
	s := newTestServer()
	create(t, s, "doc1", nil)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"get missing", func() error {
			_, err := s.GetDocument(ctx, &firestorepb.GetDocumentRequest{Name: root + "/test/nope"})
			return err
		}, codes.NotFound},
		{"create taken", func() error {
			_, err := s.CreateDocument(ctx, &firestorepb.CreateDocumentRequest{Parent: root, CollectionId: "test", DocumentId: "doc1"})
			return err
		}, codes.AlreadyExists},
		{"create bad parent", func() error {
			_, err := s.CreateDocument(ctx, &firestorepb.CreateDocumentRequest{Parent: "nowhere", CollectionId: "test"})
			return err
		}, codes.InvalidArgument},
		{"create slash id", func() error {
			_, err := s.CreateDocument(ctx, &firestorepb.CreateDocumentRequest{Parent: root, CollectionId: "test", DocumentId: "a/b"})
			return err
		}, codes.InvalidArgument},
		{"create empty value", func() error {
			_, err := s.CreateDocument(ctx, &firestorepb.CreateDocumentRequest{
				Parent: root, CollectionId: "test",
				Document: &firestorepb.Document{Fields: map[string]*firestorepb.Value{"x": {}}},
			})
			return err
		}, codes.InvalidArgument},
		{"list no collection", func() error {
			_, err := s.ListDocuments(ctx, &firestorepb.ListDocumentsRequest{Parent: root})
			return err
		}, codes.InvalidArgument},
		{"list bad token", func() error {
			_, err := s.ListDocuments(ctx, &firestorepb.ListDocumentsRequest{Parent: root, CollectionId: "test", PageToken: "%%%"})
			return err
		}, codes.InvalidArgument},
		{"update missing", func() error {
			_, err := s.UpdateDocument(ctx, &firestorepb.UpdateDocumentRequest{
				Document:        &firestorepb.Document{Name: root + "/test/nope"},
				CurrentDocument: &firestorepb.Precondition{ConditionType: &firestorepb.Precondition_Exists{Exists: true}},
			})
			return err
		}, codes.NotFound},
		{"update must not exist", func() error {
			_, err := s.UpdateDocument(ctx, &firestorepb.UpdateDocumentRequest{
				Document:        &firestorepb.Document{Name: root + "/test/doc1"},
				CurrentDocument: &firestorepb.Precondition{ConditionType: &firestorepb.Precondition_Exists{Exists: false}},
			})
			return err
		}, codes.AlreadyExists},
		{"get bad name", func() error {
			_, err := s.GetDocument(ctx, &firestorepb.GetDocumentRequest{Name: root + "/test"})
			return err
		}, codes.InvalidArgument},
		{"unimplemented rpc", func() error {
			_, err := s.DeleteDocument(ctx, &firestorepb.DeleteDocumentRequest{Name: root + "/test/doc1"})
			return err
		}, codes.Unimplemented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := status.Code(tt.call()); got != tt.want {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServer_ListPagination(t *testing.T) {
	s := newTestServer()
	for _, id := range []string{"c", "a", "e", "b", "d"} {
		create(t, s, id, nil)
	}
	ctx := context.Background()

	var names []string
	token := ""
	pages := 0
	for {
		resp, err := s.ListDocuments(ctx, &firestorepb.ListDocumentsRequest{
			Parent: root, CollectionId: "test", PageSize: 2, PageToken: token,
		})
		if err != nil {
			t.Fatalf("ListDocuments() error = %v", err)
		}
		pages++
		for _, d := range resp.GetDocuments() {
			names = append(names, d.GetName()[len(root)+len("/test/"):])
		}
		token = resp.GetNextPageToken()
		if token == "" {
			break
		}
	}

	if pages != 3 || len(names) != 5 || names[0] != "a" || names[4] != "e" {
		t.Errorf("pages=%d names=%v", pages, names)
	}

	empty, err := s.ListDocuments(ctx, &firestorepb.ListDocumentsRequest{Parent: root, CollectionId: "none"})
	if err != nil || len(empty.GetDocuments()) != 0 || empty.GetNextPageToken() != "" {
		t.Errorf("empty list = %v, %v", empty, err)
	}
}

func TestServer_UpdateMask(t *testing.T) {
	s := newTestServer()
	created := create(t, s, "doc1", map[string]*firestorepb.Value{"name": strValue("chiba"), "done": boolValue(false), "old": strValue("x")})
	ctx := context.Background()

	updated, err := s.UpdateDocument(ctx, &firestorepb.UpdateDocumentRequest{
		Document: &firestorepb.Document{
			Name:   created.GetName(),
			Fields: map[string]*firestorepb.Value{"done": boolValue(true)},
		},
		UpdateMask: &firestorepb.DocumentMask{FieldPaths: []string{"done", "old"}},
	})
	if err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}

	f := updated.GetFields()
	if !f["done"].GetBooleanValue() || f["name"].GetStringValue() != "chiba" {
		t.Errorf("fields = %v", f)
	}
	if _, ok := f["old"]; ok {
		t.Error("masked field absent from the update must be removed")
	}

	replaced, _ := s.UpdateDocument(ctx, &firestorepb.UpdateDocumentRequest{
		Document: &firestorepb.Document{Name: created.GetName(), Fields: map[string]*firestorepb.Value{"only": boolValue(true)}},
	})
	if len(replaced.GetFields()) != 1 {
		t.Errorf("update without mask must replace fields: %v", replaced.GetFields())
	}
}

func TestOpenStore(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EmulatorConfig
		wantErr bool
	}{
		{"default", config.EmulatorConfig{}, false},
		{"memory", config.EmulatorConfig{Store: StoreMemory}, false},
		{"sqlite", config.EmulatorConfig{Store: StoreSQLite, Path: t.TempDir() + "/e.db"}, false},
		{"unknown", config.EmulatorConfig{Store: "redis"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := OpenStore(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("OpenStore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if store != nil {
				store.Close()
			}
		})
	}
}

func TestGRPCServer_RequireAuth(t *testing.T) {
	gs := NewGRPCServer(config.EmulatorConfig{RequireAuth: true}, newTestServer())
	lis := bufconn.Listen(1 << 20)
	go gs.Serve(lis)
	defer gs.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	client := firestorepb.NewFirestoreClient(conn)

	req := &firestorepb.ListDocumentsRequest{Parent: root, CollectionId: "test"}
	if _, err := client.ListDocuments(context.Background(), req); status.Code(err) != codes.Unauthenticated {
		t.Errorf("no token: %v, want Unauthenticated", err)
	}

	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer anything")
	if _, err := client.ListDocuments(ctx, req); err != nil {
		t.Errorf("with token: %v", err)
	}
}
