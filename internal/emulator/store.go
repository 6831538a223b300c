package emulator

import (
	"context"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/protobuf/proto"

	fderror "github.com/msto63/firedoc/foundation/core/error"
)

// Store persists documents keyed by their full resource name
type Store interface {
	Get(ctx context.Context, name string) (*firestorepb.Document, error)
	// Create fails with ALREADY_EXISTS when the name is taken
	Create(ctx context.Context, doc *firestorepb.Document) error
	// Put inserts or replaces
	Put(ctx context.Context, doc *firestorepb.Document) error
	// List returns the direct children of parent/collectionID ordered by name
	List(ctx context.Context, parent, collectionID string) ([]*firestorepb.Document, error)
	// Count returns the number of stored documents
	Count(ctx context.Context) (int, error)
	Close() error
}

func notFound(name string) *fderror.Error {
	return fderror.New("document not found").
		WithCode(fderror.CodeNotFound).
		WithDetail(fderror.DetailPath, name)
}

func alreadyExists(name string) *fderror.Error {
	return fderror.New("document already exists").
		WithCode(fderror.CodeAlreadyExists).
		WithDetail(fderror.DetailPath, name)
}

// splitName returns the parent and collection id of a document name
func splitName(name string) (parent, collectionID string) {
	i := strings.LastIndexByte(name, '/')
	if i < 0 {
		return "", ""
	}
	rest := name[:i]
	j := strings.LastIndexByte(rest, '/')
	if j < 0 {
		return "", rest
	}
	return rest[:j], rest[j+1:]
}

// MemoryStore keeps documents in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*firestorepb.Document
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*firestorepb.Document)}
}

func (s *MemoryStore) Get(_ context.Context, name string) (*firestorepb.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[name]
	if !ok {
		return nil, notFound(name)
	}
	return proto.Clone(doc).(*firestorepb.Document), nil
}

func (s *MemoryStore) Create(_ context.Context, doc *firestorepb.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.GetName()]; ok {
		return alreadyExists(doc.GetName())
	}
	s.docs[doc.GetName()] = proto.Clone(doc).(*firestorepb.Document)
	return nil
}

func (s *MemoryStore) Put(_ context.Context, doc *firestorepb.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.GetName()] = proto.Clone(doc).(*firestorepb.Document)
	return nil
}

func (s *MemoryStore) List(_ context.Context, parent, collectionID string) ([]*firestorepb.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*firestorepb.Document
	for name, doc := range s.docs {
		p, c := splitName(name)
		if p == parent && c == collectionID {
			out = append(out, proto.Clone(doc).(*firestorepb.Document))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out, nil
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *MemoryStore) Close() error { return nil }
