// Package retrieval ranks an organization's knowledge-base entries against a
// free-text query using literal term overlap.
//
// Retrieval is split into two stages: a bounded candidate fetch (storage
// returns the most recent N entries for the tenant) and an in-process
// scoring pass. The scoring function is deliberately transparent — count of
// distinct query terms present as substrings — rather than statistical,
// because what matters here is predictability of what ends up in a prompt:
// an irrelevant reference wastes token budget and degrades generation.
package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/lumenlearn/lumen/internal/model"
)

// CandidateSource supplies the bounded candidate set for scoring.
// Implemented by *storage.DB.
type CandidateSource interface {
	RecentKnowledgeDocs(ctx context.Context, orgID uuid.UUID, limit int) ([]model.KnowledgeDoc, error)
}

// Match is one scored knowledge-base entry.
type Match struct {
	Doc   model.KnowledgeDoc
	Score int
}

// Index performs two-stage retrieval over a tenant's knowledge base.
type Index struct {
	source         CandidateSource
	candidateLimit int
	logger         *slog.Logger
	group          singleflight.Group
}

// DefaultCandidateLimit bounds the corpus scan per search. This is a
// deliberate scalability ceiling: scoring stays in-process and transparent,
// at the cost of never seeing entries older than the newest N.
const DefaultCandidateLimit = 200

// New creates an Index over the given candidate source.
// candidateLimit <= 0 uses DefaultCandidateLimit.
func New(source CandidateSource, candidateLimit int, logger *slog.Logger) *Index {
	if candidateLimit <= 0 {
		candidateLimit = DefaultCandidateLimit
	}
	return &Index{source: source, candidateLimit: candidateLimit, logger: logger}
}

// Search returns up to limit entries ranked by term overlap with query.
// It never fails: any candidate-fetch error is logged and yields an empty
// result, so a broken knowledge base degrades generation quality instead of
// failing the request.
func (ix *Index) Search(ctx context.Context, orgID uuid.UUID, query string, limit int) []Match {
	if limit <= 0 {
		return nil
	}

	// Concurrent searches for the same tenant share one candidate fetch.
	v, err, _ := ix.group.Do(orgID.String(), func() (any, error) {
		return ix.source.RecentKnowledgeDocs(ctx, orgID, ix.candidateLimit)
	})
	if err != nil {
		ix.logger.Warn("retrieval: candidate fetch failed, returning no matches",
			"org_id", orgID, "error", err)
		return nil
	}
	candidates := v.([]model.KnowledgeDoc)

	matches := ScoreCandidates(query, candidates)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// ScoreCandidates scores candidates against the query and returns non-zero
// matches sorted descending by score, stable on ties. Pure function: no
// I/O, deterministic for identical inputs.
//
// Scoring: the query is lower-cased and split on whitespace; each candidate
// scores one point per distinct query term that appears as a substring of
// its lower-cased title, content, or tags. No stemming, no frequency
// weighting.
func ScoreCandidates(query string, candidates []model.KnowledgeDoc) []Match {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(candidates))
	for _, doc := range candidates {
		haystack := strings.ToLower(doc.Title + " " + doc.Content + " " + strings.Join(doc.Tags, " "))
		score := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, Match{Doc: doc, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// queryTerms returns the distinct lower-cased whitespace-separated terms of
// query, preserving first-occurrence order.
func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]bool, len(fields))
	terms := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			terms = append(terms, f)
		}
	}
	return terms
}
