// Package search is the in-memory full-text index behind deal search.
//
// Documents are made of weighted fields (a title usually weighs more than a
// description). Terms are lowercased and folded to their unaccented form, so
// "Café" and "cafe" are the same term. An index is immutable once built and
// safe for concurrent readers; rebuild it to pick up catalog changes.
//
// A document's score for a query is the weighted share of query terms it
// contains:
//
//	score = Σ w(t) / (|Q| · maxWeight)
//
// where w(t) is the weight of the heaviest field holding term t. Scores are in
// (0, 1]; ties are broken by document ID so results are deterministic.
package search

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Field is one weighted piece of a document's text. A non-positive Weight
// counts as 1.
type Field struct {
	Text   string
	Weight float64
}

// Document is one searchable unit.
type Document struct {
	ID     string
	Fields []Field
}

// Result is a ranked document. Snippet is the document's first non-empty
// field with whitespace collapsed.
type Result struct {
	ID      string
	Snippet string
	Score   float64
}

// Index answers ranked queries.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// DefaultStopwords are words too common in deal copy to rank on.
var DefaultStopwords = []string{
	"a", "an", "and", "at", "by", "for", "from", "in", "of", "on", "or", "the", "to", "with",
}

// Option customizes NewIndex.
type Option func(*options)

type options struct {
	stop      map[string]struct{}
	minPrefix int
}

// WithStopwords drops the given words from documents and queries.
func WithStopwords(words []string) Option {
	return func(o *options) {
		for _, w := range words {
			for _, t := range terms(w, nil) {
				if o.stop == nil {
					o.stop = make(map[string]struct{})
				}
				o.stop[t] = struct{}{}
			}
		}
	}
}

// WithPrefixMatch lets a query term of at least n runes match longer indexed
// terms that start with it, at half the field weight. n <= 0 disables it.
func WithPrefixMatch(n int) Option {
	return func(o *options) { o.minPrefix = n }
}

type posting struct {
	doc    int
	weight float64
}

type index struct {
	opts     options
	ids      []string
	snippets []string
	norms    []float64
	postings map[string][]posting
	vocab    []string
}

// NewIndex builds an index over docs. Documents without a single indexable
// term are skipped.
func NewIndex(docs []Document, opts ...Option) Index {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	ix := &index{opts: o, postings: make(map[string][]posting)}

	for _, d := range docs {
		best := make(map[string]float64)
		var maxW float64
		var snippet string
		for _, f := range d.Fields {
			ts := terms(f.Text, o.stop)
			if len(ts) == 0 {
				continue
			}
			w := f.Weight
			if w <= 0 {
				w = 1
			}
			if snippet == "" {
				snippet = strings.Join(strings.Fields(f.Text), " ")
			}
			maxW = max(maxW, w)
			for _, t := range ts {
				best[t] = max(best[t], w)
			}
		}
		if len(best) == 0 {
			continue
		}

		n := len(ix.ids)
		ix.ids = append(ix.ids, d.ID)
		ix.snippets = append(ix.snippets, snippet)
		ix.norms = append(ix.norms, maxW)
		for t, w := range best {
			ix.postings[t] = append(ix.postings[t], posting{doc: n, weight: w})
		}
	}

	ix.vocab = make([]string, 0, len(ix.postings))
	for t := range ix.postings {
		ix.vocab = append(ix.vocab, t)
	}
	sort.Strings(ix.vocab)
	return ix
}

// Len returns the number of indexed documents.
func (ix *index) Len() int { return len(ix.ids) }

// TopK returns up to k documents matching at least one query term, best
// first. k <= 0 means 3.
func (ix *index) TopK(query string, k int) []Result {
	q := unique(terms(query, ix.opts.stop))
	if len(q) == 0 || len(ix.ids) == 0 {
		return nil
	}
	if k <= 0 {
		k = 3
	}

	gain := make(map[int]float64)
	for _, t := range q {
		for d, w := range ix.match(t) {
			gain[d] += w
		}
	}

	out := make([]Result, 0, len(gain))
	for d, g := range gain {
		out = append(out, Result{
			ID:      ix.ids[d],
			Snippet: ix.snippets[d],
			Score:   g / (float64(len(q)) * ix.norms[d]),
		})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].ID < out[b].ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// match returns, per document, the best weight with which t matches it.
func (ix *index) match(t string) map[int]float64 {
	got := make(map[int]float64)
	for _, p := range ix.postings[t] {
		got[p.doc] = p.weight
	}
	if ix.opts.minPrefix <= 0 || utf8.RuneCountInString(t) < ix.opts.minPrefix {
		return got
	}
	for i := sort.SearchStrings(ix.vocab, t); i < len(ix.vocab) && strings.HasPrefix(ix.vocab[i], t); i++ {
		if ix.vocab[i] == t {
			continue
		}
		for _, p := range ix.postings[ix.vocab[i]] {
			got[p.doc] = max(got[p.doc], p.weight/2)
		}
	}
	return got
}

// terms splits s into lowercase, accent-folded words of letters and digits,
// dropping stop words.
func terms(s string, stop map[string]struct{}) []string {
	folded, _, err := transform.String(foldAccents(), s)
	if err != nil {
		folded = s
	}
	words := strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := words[:0]
	for _, w := range words {
		if _, skip := stop[w]; !skip {
			out = append(out, w)
		}
	}
	return out
}

// foldAccents strips combining marks. Transformers carry state, so each call
// gets a fresh chain.
func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

func unique(ts []string) []string {
	seen := make(map[string]struct{}, len(ts))
	out := ts[:0]
	for _, t := range ts {
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
