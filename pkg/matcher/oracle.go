// Package matcher links free-text senses to WordNet synsets with an
// external oracle. Results are kept in two append-only files: the match
// log (one JSON object per line) and the error log (word:pos lines) that a
// later remediation pass retries.
package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MaxIDs is the most synset ids one answer may contain.
const MaxIDs = 10

// ErrInvalidAnswer is returned for answers that cannot be used.
var ErrInvalidAnswer = errors.New("invalid oracle answer")

// Candidate is a synset the oracle may choose.
type Candidate struct {
	ID    string
	Gloss string
}

// Query asks which candidates define the word's senses.
type Query struct {
	Word       string
	POS        string
	Senses     []string
	Candidates []Candidate
}

// Oracle returns the candidate ids matching a query. Implementations may
// be non-deterministic and fallible; callers validate the result.
type Oracle interface {
	Match(ctx context.Context, q Query) ([]string, error)
}

// Validate checks ids against the candidates of the query. Any id outside
// the candidates, a duplicate, or more than MaxIDs ids invalidates the
// whole answer.
func Validate(ids []string, candidates []Candidate) error {
	if len(ids) > MaxIDs {
		return fmt.Errorf("%w: %d ids, at most %d allowed", ErrInvalidAnswer, len(ids), MaxIDs)
	}
	allowed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		allowed[c.ID] = true
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !allowed[id] {
			return fmt.Errorf("%w: %q is not a candidate", ErrInvalidAnswer, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: %q repeated", ErrInvalidAnswer, id)
		}
		seen[id] = true
	}
	return nil
}

type answer struct {
	Synsets []string `json:"synsets"`
}

// ParseAnswer decodes a {"synsets": [...]} reply, tolerating a markdown
// code fence around it.
func ParseAnswer(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	var a answer
	if err := json.Unmarshal([]byte(text), &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}
	if a.Synsets == nil {
		return []string{}, nil
	}
	return a.Synsets, nil
}

// Prompt renders the question sent to a text oracle.
func Prompt(q Query) string {
	var b strings.Builder
	b.WriteString("Match a dictionary headword to WordNet synsets.\n\n")
	fmt.Fprintf(&b, "Word: %s\nPart of speech: %s\n\nMeanings given for the word:\n", q.Word, q.POS)
	for _, s := range q.Senses {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	b.WriteString("\nCandidate synsets:\n")
	for _, c := range q.Candidates {
		fmt.Fprintf(&b, "- %s: %s\n", c.ID, c.Gloss)
	}
	fmt.Fprintf(&b, "\nReply with a JSON object {\"synsets\": [...]} listing at most %d candidate ids whose definition matches one of the meanings. "+
		"Use only ids from the candidate list. Reply {\"synsets\": []} if none match.\n", MaxIDs)
	return b.String()
}
