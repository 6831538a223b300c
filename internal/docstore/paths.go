package docstore

import (
	"strings"

	fderror "github.com/msto63/firedoc/foundation/core/error"
)

// CollectionRef names a collection below a parent resource
type CollectionRef struct {
	Parent       string
	CollectionID string
}

// String returns the full collection path
func (r CollectionRef) String() string { return r.Parent + "/" + r.CollectionID }

// relative strips the database root from p. Absolute paths outside the
// root resolve to "" and are rejected by segments.
func (c *Client) relative(p string) string {
	if strings.HasPrefix(p, c.parent+"/") {
		return p[len(c.parent)+1:]
	}
	if strings.HasPrefix(p, "projects/") {
		return ""
	}
	return p
}

// collectionRef resolves a collection path, relative to the database root or
// absolute. Every segment must be non-empty.
func (c *Client) collectionRef(p string) (CollectionRef, error) {
	segs, err := segments(c.relative(p), p)
	if err != nil {
		return CollectionRef{}, err
	}

	parent := c.parent
	if len(segs) > 1 {
		parent += "/" + strings.Join(segs[:len(segs)-1], "/")
	}
	return CollectionRef{Parent: parent, CollectionID: segs[len(segs)-1]}, nil
}

// documentName resolves a document path to its full resource name. A
// document path has at least a collection and an id segment.
func (c *Client) documentName(p string) (string, error) {
	segs, err := segments(c.relative(p), p)
	if err != nil {
		return "", err
	}
	if len(segs) < 2 {
		return "", invalidPath(p, "document path needs collection and document id")
	}
	return c.parent + "/" + strings.Join(segs, "/"), nil
}

func segments(rel, original string) ([]string, error) {
	if strings.TrimSpace(rel) == "" {
		return nil, invalidPath(original, "path is empty or outside the database")
	}
	segs := strings.Split(strings.Trim(rel, "/"), "/")
	for _, s := range segs {
		if strings.TrimSpace(s) == "" {
			return nil, invalidPath(original, "path has an empty segment")
		}
	}
	return segs, nil
}

// validDocumentID rejects ids that would change the path shape
func validDocumentID(id string) error {
	if strings.Contains(id, "/") {
		return invalidPath(id, "document id must not contain '/'")
	}
	return nil
}

func invalidPath(p, reason string) *fderror.Error {
	return fderror.New("invalid path: "+reason).
		WithCode(fderror.CodeInvalidArgument).
		WithOperation("ResolvePath").
		WithDetail(fderror.DetailPath, p).
		WithDetail(fderror.DetailReason, reason)
}
