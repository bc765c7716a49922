// Package search ranks candidate records against a free-text query by the
// earliest case-insensitive substring position across a fixed set of fields.
//
// Two clauses decide whether a candidate matches at all:
//
//   - any: the whole query occurs in one of the schema's base fields.
//   - pair: the query holds a space, and the text before the first space occurs
//     in the given-name field while the text after it occurs in the family-name
//     field.
//
// The score of a matched candidate is the lowest 1-based position among the
// terms of the clauses that hold. Results are ordered by score, then by key.
package search

import (
	"cmp"
	"context"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
)

// NoMatch is the positional score of a term that does not occur in its field.
// It is larger than any attainable position.
const NoMatch = 1_000_000_000

// chunkSize is the number of candidates scored by one goroutine.
const chunkSize = 512

// Field is a named text value on a candidate.
type Field struct {
	Name  string
	Value string
}

// Candidate is a read-only searchable record.
type Candidate struct {
	// Key is unique across the corpus and breaks score ties.
	Key    string
	Fields []Field
}

// Value returns the value of the named field, or "" if absent.
func (c Candidate) Value(name string) string {
	for _, f := range c.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Match is a scored candidate.
type Match struct {
	Candidate Candidate
	Score     int
	Matched   bool
}

// Schema designates which candidate fields take part in ranking.
type Schema struct {
	// Base fields are each matched against the whole query.
	Base []string

	// Given and Family are matched against the head and tail of a
	// "first last" query.
	Given  string
	Family string
}

// DefaultSchema is the schema used for user suggestions.
var DefaultSchema = Schema{
	Base:   []string{"username", "first_name", "last_name"},
	Given:  "first_name",
	Family: "last_name",
}

// Mode tells which clause a Term belongs to.
type Mode int

const (
	// ModeAny terms match on their own (OR across fields).
	ModeAny Mode = iota

	// ModePair terms only count when every ModePair term matched (AND).
	ModePair
)

// Term is a single (field, text, mode) scoring tuple.
type Term struct {
	Field string
	Text  string
	Mode  Mode
}

// Terms expands a query into the scoring tuples for schema. The query is
// trimmed; an empty query yields no terms. Only the first space splits a
// query into a pair.
func Terms(query string, schema Schema) []Term {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	terms := make([]Term, 0, len(schema.Base)+2)
	for _, f := range schema.Base {
		terms = append(terms, Term{Field: f, Text: query, Mode: ModeAny})
	}

	head, tail, ok := strings.Cut(query, " ")
	if ok && schema.Given != "" && schema.Family != "" {
		head = strings.TrimSpace(head)
		tail = strings.TrimSpace(tail)
		if head != "" && tail != "" {
			terms = append(terms,
				Term{Field: schema.Given, Text: head, Mode: ModePair},
				Term{Field: schema.Family, Text: tail, Mode: ModePair},
			)
		}
	}

	return terms
}

// Position returns the 1-based rune index in value of the first
// case-insensitive occurrence of term, or NoMatch. Matching happens on the
// folded text; the index is mapped back to the rune of value the match
// starts in, so folds that change length ("ß" to "ss") do not shift it.
func Position(value, term string) int {
	return position(cases.Fold(), value, term)
}

func position(fold cases.Caser, value, term string) int {
	if term == "" {
		return NoMatch
	}

	t := fold.String(term)
	if t == "" {
		return NoMatch
	}

	// starts[i] is the folded byte offset at which rune i of value begins.
	starts := make([]int, 0, len(value))
	var folded strings.Builder
	for _, r := range value {
		starts = append(starts, folded.Len())
		folded.WriteString(fold.String(string(r)))
	}

	i := strings.Index(folded.String(), t)
	if i < 0 {
		return NoMatch
	}

	n, found := slices.BinarySearch(starts, i)
	if !found {
		n--
	}
	return n + 1
}

// Score evaluates terms against c.
func Score(c Candidate, terms []Term) Match {
	return score(cases.Fold(), c, terms)
}

func score(fold cases.Caser, c Candidate, terms []Term) Match {
	best := NoMatch
	pairBest := NoMatch
	anyMatched := false
	pairTerms, pairHits := 0, 0

	for _, t := range terms {
		pos := position(fold, c.Value(t.Field), t.Text)

		switch t.Mode {
		case ModeAny:
			if pos != NoMatch {
				anyMatched = true
				best = min(best, pos)
			}
		case ModePair:
			pairTerms++
			if pos != NoMatch {
				pairHits++
				pairBest = min(pairBest, pos)
			}
		}
	}

	pairMatched := pairTerms > 0 && pairHits == pairTerms
	if pairMatched {
		best = min(best, pairBest)
	}

	return Match{
		Candidate: c,
		Score:     best,
		Matched:   anyMatched || pairMatched,
	}
}

// Search scores every candidate against query and returns the matched ones
// ordered by score ascending, then key ascending. An empty query matches
// nothing.
func Search(query string, candidates []Candidate, schema Schema) []Match {
	// Scoring never fails and Background is never cancelled.
	matches, _ := SearchContext(context.Background(), query, candidates, schema)
	return matches
}

// SearchContext is Search with cancellation. Candidates are scored in
// parallel chunks; the sort happens once every score is known.
func SearchContext(ctx context.Context, query string, candidates []Candidate, schema Schema) ([]Match, error) {
	terms := Terms(query, schema)
	if len(terms) == 0 || len(candidates) == 0 {
		return []Match{}, nil
	}

	scored := make([]Match, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for start := 0; start < len(candidates); start += chunkSize {
		end := min(start+chunkSize, len(candidates))
		g.Go(func() error {
			// cases.Caser is stateful, one per goroutine.
			fold := cases.Fold()
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				scored[i] = score(fold, candidates[i], terms)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(scored))
	for _, m := range scored {
		if m.Matched {
			matches = append(matches, m)
		}
	}

	slices.SortFunc(matches, compare)
	return matches, nil
}

func compare(a, b Match) int {
	if c := cmp.Compare(a.Score, b.Score); c != 0 {
		return c
	}
	return strings.Compare(a.Candidate.Key, b.Candidate.Key)
}

// Keys returns the candidate keys of matches in order.
func Keys(matches []Match) []string {
	keys := make([]string, len(matches))
	for i, m := range matches {
		keys[i] = m.Candidate.Key
	}
	return keys
}
