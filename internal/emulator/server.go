// Package emulator is an in-process Firestore-compatible document server.
//
// It implements the List, Get, Create and Update document RPCs over a
// pluggable Store, enough to develop and test against without a cloud
// project. Every other RPC answers Unimplemented.
package emulator

import (
	"context"
	"encoding/base64"
	"sort"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	fderror "github.com/msto63/firedoc/foundation/core/error"
	coregrpc "github.com/msto63/firedoc/pkg/core/grpc"
	"github.com/msto63/firedoc/pkg/core/logging"
)

const (
	// DefaultPageSize applies when a list request leaves page_size unset
	DefaultPageSize = 300
	maxIDLength     = 1500
)

// Option configures a Server
type Option func(*Server)

// WithClock injects the time source for create and update times
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the generator for server-assigned document ids
func WithIDGenerator(gen func() string) Option {
	return func(s *Server) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// Server implements firestorepb.FirestoreServer over a Store
type Server struct {
	firestorepb.UnimplementedFirestoreServer

	store Store
	now   func() time.Time
	newID func() string
	log   *logging.Logger

	// serializes read-modify-write in UpdateDocument
	writeMu sync.Mutex
}

// New creates a Server backed by store
func New(store Store, opts ...Option) *Server {
	s := &Server{
		store: store,
		now:   time.Now,
		newID: NewDocumentID,
		log:   logging.New("emulator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewDocumentID returns a random 20 character id, the length Firestore uses
func NewDocumentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

func (s *Server) ListDocuments(ctx context.Context, req *firestorepb.ListDocumentsRequest) (*firestorepb.ListDocumentsResponse, error) {
	if err := validParent(req.GetParent()); err != nil {
		return nil, err
	}
	if req.GetCollectionId() == "" {
		return nil, status.Error(codes.InvalidArgument, "collection_id is required")
	}
	if req.GetPageSize() < 0 {
		return nil, status.Error(codes.InvalidArgument, "page_size must not be negative")
	}

	docs, err := s.store.List(ctx, req.GetParent(), req.GetCollectionId())
	if err != nil {
		return nil, toStatus(err)
	}

	start := 0
	if tok := req.GetPageToken(); tok != "" {
		after, err := decodePageToken(tok)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "invalid page_token")
		}
		start = sort.Search(len(docs), func(i int) bool { return docs[i].GetName() > after })
	}

	size := int(req.GetPageSize())
	if size == 0 {
		size = DefaultPageSize
	}
	end := start + size
	if end > len(docs) {
		end = len(docs)
	}

	resp := &firestorepb.ListDocumentsResponse{Documents: make([]*firestorepb.Document, 0, end-start)}
	for _, doc := range docs[start:end] {
		resp.Documents = append(resp.Documents, applyMask(doc, req.GetMask()))
	}
	if end < len(docs) {
		resp.NextPageToken = encodePageToken(docs[end-1].GetName())
	}
	return resp, nil
}

func (s *Server) GetDocument(ctx context.Context, req *firestorepb.GetDocumentRequest) (*firestorepb.Document, error) {
	if err := validDocumentName(req.GetName()); err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, req.GetName())
	if err != nil {
		return nil, toStatus(err)
	}
	return applyMask(doc, req.GetMask()), nil
}

func (s *Server) CreateDocument(ctx context.Context, req *firestorepb.CreateDocumentRequest) (*firestorepb.Document, error) {
	if err := validParent(req.GetParent()); err != nil {
		return nil, err
	}
	if req.GetCollectionId() == "" {
		return nil, status.Error(codes.InvalidArgument, "collection_id is required")
	}

	id := req.GetDocumentId()
	if id == "" {
		id = s.newID()
	}
	if strings.Contains(id, "/") || len(id) > maxIDLength || id == "." || id == ".." {
		return nil, status.Errorf(codes.InvalidArgument, "invalid document id %q", id)
	}
	if err := validFields(req.GetDocument().GetFields()); err != nil {
		return nil, err
	}

	now := timestamppb.New(s.now())
	doc := &firestorepb.Document{
		Name:       req.GetParent() + "/" + req.GetCollectionId() + "/" + id,
		Fields:     req.GetDocument().GetFields(),
		CreateTime: now,
		UpdateTime: now,
	}
	if err := s.store.Create(ctx, doc); err != nil {
		return nil, toStatus(err)
	}

	s.log.Debug("document created", "name", doc.GetName())
	return applyMask(doc, req.GetMask()), nil
}

func (s *Server) UpdateDocument(ctx context.Context, req *firestorepb.UpdateDocumentRequest) (*firestorepb.Document, error) {
	in := req.GetDocument()
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "document is required")
	}
	if err := validDocumentName(in.GetName()); err != nil {
		return nil, err
	}
	if err := validFields(in.GetFields()); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	existing, err := s.store.Get(ctx, in.GetName())
	exists := err == nil
	if err != nil && !fderror.HasCode(err, fderror.CodeNotFound) {
		return nil, toStatus(err)
	}

	if pre := req.GetCurrentDocument(); pre != nil {
		if want, ok := pre.GetConditionType().(*firestorepb.Precondition_Exists); ok {
			if want.Exists && !exists {
				return nil, status.Errorf(codes.NotFound, "no document to update: %s", in.GetName())
			}
			if !want.Exists && exists {
				return nil, status.Errorf(codes.AlreadyExists, "document already exists: %s", in.GetName())
			}
		}
		if ts := pre.GetUpdateTime(); ts != nil && (!exists || !existing.GetUpdateTime().AsTime().Equal(ts.AsTime())) {
			return nil, status.Error(codes.FailedPrecondition, "update_time precondition failed")
		}
	}

	now := timestamppb.New(s.now())
	doc := &firestorepb.Document{Name: in.GetName(), UpdateTime: now, CreateTime: now}
	if exists {
		doc.CreateTime = existing.GetCreateTime()
	}

	if paths := req.GetUpdateMask().GetFieldPaths(); len(paths) > 0 {
		doc.Fields = mergeFields(existing.GetFields(), in.GetFields(), paths)
	} else {
		doc.Fields = in.GetFields()
	}

	if err := s.store.Put(ctx, doc); err != nil {
		return nil, toStatus(err)
	}
	return applyMask(doc, req.GetMask()), nil
}

// mergeFields applies the masked top-level fields of update onto base. A
// masked field missing from update is deleted.
func mergeFields(base, update map[string]*firestorepb.Value, paths []string) map[string]*firestorepb.Value {
	out := make(map[string]*firestorepb.Value, len(base)+len(paths))
	for k, v := range base {
		out[k] = v
	}
	for _, p := range paths {
		key := topLevel(p)
		if v, ok := update[key]; ok {
			out[key] = v
		} else {
			delete(out, key)
		}
	}
	return out
}

// applyMask keeps only the masked top-level fields of doc
func applyMask(doc *firestorepb.Document, mask *firestorepb.DocumentMask) *firestorepb.Document {
	paths := mask.GetFieldPaths()
	if len(paths) == 0 {
		return doc
	}
	out := &firestorepb.Document{
		Name:       doc.GetName(),
		CreateTime: doc.GetCreateTime(),
		UpdateTime: doc.GetUpdateTime(),
		Fields:     make(map[string]*firestorepb.Value, len(paths)),
	}
	for _, p := range paths {
		key := topLevel(p)
		if v, ok := doc.GetFields()[key]; ok {
			out.Fields[key] = v
		}
	}
	return out
}

func topLevel(fieldPath string) string {
	if i := strings.IndexByte(fieldPath, '.'); i >= 0 {
		return fieldPath[:i]
	}
	return fieldPath
}

func validParent(parent string) error {
	const marker = "/documents"
	i := strings.Index(parent, marker)
	if !strings.HasPrefix(parent, "projects/") || !strings.Contains(parent, "/databases/") || i < 0 {
		return status.Errorf(codes.InvalidArgument, "invalid parent %q", parent)
	}
	rest := parent[i+len(marker):]
	if rest == "" {
		return nil
	}
	// below the root the parent must be a document: collection/id pairs
	segs := strings.Split(strings.TrimPrefix(rest, "/"), "/")
	if !strings.HasPrefix(rest, "/") || len(segs)%2 != 0 {
		return status.Errorf(codes.InvalidArgument, "invalid parent %q", parent)
	}
	for _, seg := range segs {
		if seg == "" {
			return status.Errorf(codes.InvalidArgument, "invalid parent %q", parent)
		}
	}
	return nil
}

func validDocumentName(name string) error {
	parent, collection := splitName(name)
	if collection == "" || strings.HasSuffix(name, "/") {
		return status.Errorf(codes.InvalidArgument, "invalid document name %q", name)
	}
	return validParent(parent)
}

func validFields(fields map[string]*firestorepb.Value) error {
	for k, v := range fields {
		if k == "" {
			return status.Error(codes.InvalidArgument, "field name must not be empty")
		}
		if v.GetValueType() == nil {
			return status.Errorf(codes.InvalidArgument, "field %q has no value", k)
		}
	}
	return nil
}

func encodePageToken(lastName string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(lastName))
}

func decodePageToken(tok string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(tok)
	return string(b), err
}

// toStatus converts store errors into gRPC status errors
func toStatus(err error) error {
	switch fderror.GetCode(err) {
	case fderror.CodeNotFound:
		return status.Error(codes.NotFound, err.Error())
	case fderror.CodeAlreadyExists:
		return status.Error(codes.AlreadyExists, err.Error())
	case fderror.CodeInvalidArgument:
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// Register installs the Firestore service on gs
func (s *Server) Register(gs *coregrpc.Server) {
	firestorepb.RegisterFirestoreServer(gs.GRPCServer(), s)
}
