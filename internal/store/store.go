// Package store provides the document stores the guidance pipeline searches.
package store

import (
	"context"
)

// RetrievedDocument is a single similarity-search hit. It is read-only to callers.
type RetrievedDocument struct {
	ID         string  `json:"id,omitempty"`
	Content    string  `json:"content"`
	SourceURL  string  `json:"source_url,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
}

// DocumentMatcher runs a similarity search bounded by a threshold and a result cap.
type DocumentMatcher interface {
	MatchDocuments(ctx context.Context, embedding []float32, threshold float64, count int) ([]RetrievedDocument, error)
}

type authKey struct{}

// WithAuthorization carries the caller's Authorization header so stores that
// enforce row-level policies can act on the caller's behalf.
func WithAuthorization(ctx context.Context, header string) context.Context {
	if header == "" {
		return ctx
	}
	return context.WithValue(ctx, authKey{}, header)
}

// AuthorizationFrom returns the header stored by WithAuthorization, or "".
func AuthorizationFrom(ctx context.Context) string {
	v, _ := ctx.Value(authKey{}).(string)
	return v
}
