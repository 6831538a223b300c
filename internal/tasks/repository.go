// Package tasks stores Task records as documents through the document client.
package tasks

import (
	"context"

	fderror "github.com/msto63/firedoc/foundation/core/error"
	"github.com/msto63/firedoc/internal/docstore"
	"github.com/msto63/firedoc/internal/record"
	"github.com/msto63/firedoc/internal/value"
	"github.com/msto63/firedoc/pkg/core/logging"
)

// DefaultCollection is the collection used when none is given
const DefaultCollection = "test"

// Repository reads and writes tasks
type Repository struct {
	client   *docstore.Client
	pageSize int32
	logger   *logging.Logger
}

// Option configures a Repository
type Option func(*Repository)

// WithPageSize sets the page size used by List; zero leaves it to the server
func WithPageSize(n int32) Option {
	return func(r *Repository) { r.pageSize = n }
}

// WithLogger replaces the repository logger
func WithLogger(logger *logging.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New builds a Repository on top of client
func New(client *docstore.Client, opts ...Option) *Repository {
	r := &Repository{client: client, logger: logging.New("tasks")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns the tasks of one page of a collection and the token of the
// next page, "" when the collection is exhausted.
func (r *Repository) List(ctx context.Context, collection, pageToken string) ([]record.Task, string, error) {
	collection = collectionOrDefault(collection)
	docs, next, err := r.client.ListDocuments(ctx, collection, r.pageSize, pageToken,
		record.TaskFieldName, record.TaskFieldDone)
	if err != nil {
		return nil, "", err
	}
	tasks := make([]record.Task, 0, len(docs))
	for _, doc := range docs {
		task, err := toTask(doc)
		if err != nil {
			return nil, "", err
		}
		tasks = append(tasks, task)
	}
	r.logger.Debug("listed tasks", "collection", collection, "count", len(tasks))
	return tasks, next, nil
}

// Get reads a single task
func (r *Repository) Get(ctx context.Context, collection, id string) (record.Task, error) {
	doc, err := r.client.GetDocument(ctx, documentPath(collection, id))
	if err != nil {
		return record.Task{}, err
	}
	return toTask(doc)
}

// Create stores task and returns it with the id the store settled on
func (r *Repository) Create(ctx context.Context, collection string, task record.Task) (record.Task, error) {
	doc, err := r.client.CreateDocument(ctx, collectionOrDefault(collection), task.DocumentID, record.FromRecord(&task))
	if err != nil {
		return record.Task{}, err
	}
	created, err := toTask(doc)
	if err != nil {
		return record.Task{}, err
	}
	r.logger.Info("created task", "id", created.DocumentID, "collection", collectionOrDefault(collection))
	return created, nil
}

// SetDone writes the done flag of an existing task and returns the stored result.
// A missing task is NOT_FOUND; the update never creates one.
func (r *Repository) SetDone(ctx context.Context, collection, id string, done bool) (record.Task, error) {
	if id == "" {
		return record.Task{}, fderror.New("task id is required").
			WithCode(fderror.CodeInvalidArgument).
			WithOperation("SetDone")
	}
	fields := map[string]value.Value{record.TaskFieldDone: value.Bool(done)}
	doc, err := r.client.UpdateDocument(ctx, documentPath(collection, id), fields, record.TaskFieldDone)
	if err != nil {
		return record.Task{}, err
	}
	return toTask(doc)
}

func toTask(doc docstore.Document) (record.Task, error) {
	task, err := record.TaskFromFields(doc.ID, doc.Fields)
	if err != nil {
		return record.Task{}, fderror.Wrap(err, "map task document").
			WithDetail(fderror.DetailPath, doc.Name)
	}
	return task, nil
}

func collectionOrDefault(collection string) string {
	if collection == "" {
		return DefaultCollection
	}
	return collection
}

func documentPath(collection, id string) string {
	return collectionOrDefault(collection) + "/" + id
}
