// Package docstore is a typed client for a Firestore-compatible document
// database reached over gRPC.
//
// Every call fetches the current credential, pins it on the request context
// and lets the bearer interceptor attach it. When the server answers
// Unauthenticated the client forces one credential refresh and retries the
// call exactly once; any other failure is classified and returned.
package docstore

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/grpc"

	fderror "github.com/msto63/firedoc/foundation/core/error"
	"github.com/msto63/firedoc/internal/auth"
	"github.com/msto63/firedoc/internal/value"
	coregrpc "github.com/msto63/firedoc/pkg/core/grpc"
	"github.com/msto63/firedoc/pkg/core/logging"
)

// Config holds the client settings
type Config struct {
	// Parent is the database root, e.g. projects/p/databases/(default)/documents
	Parent string
	// RequestTimeout bounds calls whose context has no deadline; zero disables it
	RequestTimeout time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.log = logger
		}
	}
}

// Client issues document RPCs. It is safe for concurrent use.
type Client struct {
	parent  string
	timeout time.Duration
	creds   auth.Source
	rpc     firestorepb.FirestoreClient
	log     *logging.Logger
}

// New creates a Client on cc, usually a *coregrpc.Channel
func New(cfg Config, cc grpc.ClientConnInterface, creds auth.Source, opts ...Option) (*Client, error) {
	parent := strings.TrimRight(cfg.Parent, "/")
	if parent == "" {
		return nil, fderror.New("database parent path is required").
			WithCode(fderror.CodeConfig).
			WithOperation("docstore.New")
	}
	if cc == nil || creds == nil {
		return nil, fderror.New("channel and credential source are required").
			WithCode(fderror.CodeConfig).
			WithOperation("docstore.New")
	}

	c := &Client{
		parent:  parent,
		timeout: cfg.RequestTimeout,
		creds:   creds,
		rpc:     firestorepb.NewFirestoreClient(coregrpc.Intercept(cc, coregrpc.BearerInterceptor(nil))),
		log:     logging.New("docstore"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Parent returns the database root the client resolves paths against
func (c *Client) Parent() string { return c.parent }

// ListDocuments returns one page of the collection. An empty collection
// yields an empty slice. pageSize <= 0 leaves the page size to the server.
// mask, when given, restricts the returned fields.
func (c *Client) ListDocuments(ctx context.Context, collectionPath string, pageSize int32, pageToken string, mask ...string) ([]Document, string, error) {
	ref, err := c.collectionRef(collectionPath)
	if err != nil {
		return nil, "", err
	}
	if pageSize < 0 {
		pageSize = 0
	}

	req := &firestorepb.ListDocumentsRequest{
		Parent:       ref.Parent,
		CollectionId: ref.CollectionID,
		PageSize:     pageSize,
		PageToken:    pageToken,
		Mask:         documentMask(mask),
	}

	var resp *firestorepb.ListDocumentsResponse
	err = c.invoke(ctx, "ListDocuments", ref.String(), func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.rpc.ListDocuments(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, "", err
	}

	docs, err := documentsFromProto(resp.GetDocuments())
	if err != nil {
		return nil, "", err
	}
	return docs, resp.GetNextPageToken(), nil
}

// GetDocument fetches one document. A missing document is NOT_FOUND.
func (c *Client) GetDocument(ctx context.Context, documentPath string, mask ...string) (Document, error) {
	name, err := c.documentName(documentPath)
	if err != nil {
		return Document{}, err
	}

	req := &firestorepb.GetDocumentRequest{Name: name, Mask: documentMask(mask)}

	var pb *firestorepb.Document
	err = c.invoke(ctx, "GetDocument", name, func(ctx context.Context) error {
		var callErr error
		pb, callErr = c.rpc.GetDocument(ctx, req)
		return callErr
	})
	if err != nil {
		return Document{}, err
	}
	return documentFromProto(pb)
}

// CreateDocument stores a new document. An empty documentID lets the store
// assign one; an id already in use is ALREADY_EXISTS.
func (c *Client) CreateDocument(ctx context.Context, collectionPath, documentID string, fields map[string]value.Value) (Document, error) {
	ref, err := c.collectionRef(collectionPath)
	if err != nil {
		return Document{}, err
	}
	if err := validDocumentID(documentID); err != nil {
		return Document{}, err
	}

	wire, err := value.EncodeFields(fields)
	if err != nil {
		return Document{}, err
	}

	req := &firestorepb.CreateDocumentRequest{
		Parent:       ref.Parent,
		CollectionId: ref.CollectionID,
		DocumentId:   documentID,
		Document:     &firestorepb.Document{Fields: wire},
	}

	var pb *firestorepb.Document
	err = c.invoke(ctx, "CreateDocument", ref.String(), func(ctx context.Context) error {
		var callErr error
		pb, callErr = c.rpc.CreateDocument(ctx, req)
		return callErr
	})
	if err != nil {
		return Document{}, err
	}
	return documentFromProto(pb)
}

// UpdateDocument writes fields to an existing document. With an update mask
// only the named fields change; without one the document is replaced. A
// missing document is NOT_FOUND.
func (c *Client) UpdateDocument(ctx context.Context, documentPath string, fields map[string]value.Value, updateMask ...string) (Document, error) {
	name, err := c.documentName(documentPath)
	if err != nil {
		return Document{}, err
	}

	wire, err := value.EncodeFields(fields)
	if err != nil {
		return Document{}, err
	}

	req := &firestorepb.UpdateDocumentRequest{
		Document:   &firestorepb.Document{Name: name, Fields: wire},
		UpdateMask: documentMask(updateMask),
		CurrentDocument: &firestorepb.Precondition{
			ConditionType: &firestorepb.Precondition_Exists{Exists: true},
		},
	}

	var pb *firestorepb.Document
	err = c.invoke(ctx, "UpdateDocument", name, func(ctx context.Context) error {
		var callErr error
		pb, callErr = c.rpc.UpdateDocument(ctx, req)
		return callErr
	})
	if err != nil {
		return Document{}, err
	}
	return documentFromProto(pb)
}

// invoke runs call with the current credential, retrying once with a forced
// refresh if the server reports Unauthenticated.
func (c *Client) invoke(ctx context.Context, op, target string, call func(context.Context) error) error {
	if c.timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
	}

	timer := c.log.StartTimer(op).WithField("path", target)

	cred, err := c.creds.Credential(ctx)
	if err != nil {
		timer.StopWithError(err)
		return err
	}

	err = call(coregrpc.WithAccessToken(ctx, cred.AccessToken))
	if isUnauthenticated(err) {
		c.log.Warn("credential rejected, refreshing", "op", op)
		cred, err = c.creds.ForceRefresh(ctx, cred.AccessToken)
		if err != nil {
			timer.StopWithError(err)
			return err
		}
		err = call(coregrpc.WithAccessToken(ctx, cred.AccessToken))
	}

	if err = classify(op, target, err); err != nil {
		timer.StopWithError(err)
		return err
	}
	timer.Stop()
	return nil
}

func documentMask(fields []string) *firestorepb.DocumentMask {
	if len(fields) == 0 {
		return nil
	}
	return &firestorepb.DocumentMask{FieldPaths: append([]string(nil), fields...)}
}
