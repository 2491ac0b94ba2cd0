// Package services contains the ingest pipeline, dedup/keyword admission,
// market aggregation and the read-side query service.
package services

import (
	"strings"

	"dealwatch/models"
)

// RejectReason says why a raw record was not admitted.
type RejectReason int

const (
	RejectNone RejectReason = iota
	RejectDuplicate
	RejectFiltered
)

// DedupFilter decides whether a raw record becomes a listing. It holds
// the set of already-known URLs (seeded from storage at the start of a
// run) and the lowercase keywords that exclude a listing by title.
type DedupFilter struct {
	seen     map[string]struct{}
	keywords []string
}

// NewDedupFilter builds a filter over the given known URLs. Keywords are
// matched case-insensitively as substrings of the title; empty keywords
// are dropped.
func NewDedupFilter(existingURLs map[string]struct{}, keywords []string) *DedupFilter {
	seen := make(map[string]struct{}, len(existingURLs))
	for u := range existingURLs {
		seen[u] = struct{}{}
	}

	var kws []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			kws = append(kws, kw)
		}
	}

	return &DedupFilter{seen: seen, keywords: kws}
}

// Admit checks one raw record. An admitted record's URL is recorded, so a
// second occurrence in the same batch is rejected as a duplicate. Records
// without a URL cannot be identified and are rejected as filtered.
func (f *DedupFilter) Admit(r *models.RawRecord) RejectReason {
	if r.URL == "" {
		return RejectFiltered
	}
	if _, dup := f.seen[r.URL]; dup {
		return RejectDuplicate
	}

	titleLower := strings.ToLower(r.Title)
	for _, kw := range f.keywords {
		if strings.Contains(titleLower, kw) {
			return RejectFiltered
		}
	}

	f.seen[r.URL] = struct{}{}
	return RejectNone
}
