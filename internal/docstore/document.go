package docstore

import (
	"path"
	"time"

	"cloud.google.com/go/firestore/apiv1/firestorepb"

	fderror "github.com/msto63/firedoc/foundation/core/error"
	"github.com/msto63/firedoc/internal/value"
)

// Document is a read-only snapshot of a stored document
type Document struct {
	Name       string // full resource path
	ID         string // last path segment
	Fields     map[string]value.Value
	CreateTime time.Time
	UpdateTime time.Time
}

// Field returns the named field value
func (d Document) Field(name string) (value.Value, bool) {
	v, ok := d.Fields[name]
	return v, ok
}

func documentFromProto(pb *firestorepb.Document) (Document, error) {
	fields, err := value.DecodeFields(pb.GetFields())
	if err != nil {
		return Document{}, fderror.Wrap(err, "decode document "+pb.GetName()).
			WithDetail("document", pb.GetName())
	}

	doc := Document{
		Name:   pb.GetName(),
		ID:     path.Base(pb.GetName()),
		Fields: fields,
	}
	if ts := pb.GetCreateTime(); ts != nil {
		doc.CreateTime = ts.AsTime()
	}
	if ts := pb.GetUpdateTime(); ts != nil {
		doc.UpdateTime = ts.AsTime()
	}
	return doc, nil
}

func documentsFromProto(pbs []*firestorepb.Document) ([]Document, error) {
	docs := make([]Document, 0, len(pbs))
	for _, pb := range pbs {
		doc, err := documentFromProto(pb)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
