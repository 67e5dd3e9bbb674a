package matcher

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/anglish/wordbook/pkg/lexicon"
	"github.com/anglish/wordbook/pkg/logger"
)

// Matcher runs the oracle over unresolved senses. Calls are sequential so
// every log line is written before the next pair starts.
type Matcher struct {
	Oracle        Oracle
	Index         *CandidateIndex
	MatchLogPath  string
	ErrorLogPath  string
	MaxCandidates int
	// MaxCalls stops a run after that many oracle calls; 0 means no limit.
	MaxCalls int
	// Timeout bounds each oracle call; 0 means no limit.
	Timeout time.Duration
	Log     *logger.Logger
}

// RunStats counts the outcome of a run.
type RunStats struct {
	Pairs        int
	Done         int
	NoCandidates int
	Matched      int
	Failed       int
	Calls        int
}

// PendingPairs lists the (word, pos) pairs of entries that still carry
// unresolved senses, sorted by word then POS.
func PendingPairs(entries lexicon.CompiledEntries) []Pair {
	var out []Pair
	for _, w := range lexicon.SortedWords(entries) {
		entry := entries[w]
		poses := make([]string, 0, len(entry.POS))
		for pos, p := range entry.POS {
			if len(p.Unresolved()) > 0 {
				poses = append(poses, pos)
			}
		}
		sort.Strings(poses)
		for _, pos := range poses {
			out = append(out, Pair{Word: w, POS: pos})
		}
	}
	return out
}

// Run matches every pending pair not already in the match log or the
// error log. Failures go to the error log; they never stop the run. Only
// context cancellation and log I/O errors end it early.
func (m *Matcher) Run(ctx context.Context, entries lexicon.CompiledEntries) (RunStats, error) {
	var stats RunStats
	matches, err := ReadMatchLog(m.MatchLogPath, m.Log)
	if err != nil {
		return stats, err
	}
	failed, err := ReadErrorLog(m.ErrorLogPath, m.Log)
	if err != nil {
		return stats, err
	}
	known := make(map[Pair]bool, len(failed))
	for _, p := range failed {
		known[p] = true
	}

	matchLog, err := OpenMatchLog(m.MatchLogPath)
	if err != nil {
		return stats, err
	}
	defer matchLog.Close()
	errorLog, err := OpenErrorLog(m.ErrorLogPath)
	if err != nil {
		return stats, err
	}
	defer errorLog.Close()

	pairs := PendingPairs(entries)
	stats.Pairs = len(pairs)
	for _, p := range pairs {
		if matches.Has(p.Word, p.POS) || known[p] {
			stats.Done++
			continue
		}
		if m.MaxCalls > 0 && stats.Calls >= m.MaxCalls {
			m.Log.Info("oracle call limit reached", "calls", stats.Calls)
			break
		}
		ok, called, err := m.matchPair(ctx, entries, p, matchLog)
		if called {
			stats.Calls++
		}
		if err != nil {
			return stats, err
		}
		switch {
		case !called:
			stats.NoCandidates++
		case ok:
			stats.Matched++
		default:
			stats.Failed++
			if err := errorLog.Append(p); err != nil {
				return stats, err
			}
		}
	}
	m.Log.Info("sense matching finished",
		"pairs", stats.Pairs, "done", stats.Done, "matched", stats.Matched,
		"failed", stats.Failed, "no_candidates", stats.NoCandidates)
	return stats, nil
}

// Remediate retries the pairs of the error log that are not in the match
// log, then rewrites the error log with those that failed again.
func (m *Matcher) Remediate(ctx context.Context, entries lexicon.CompiledEntries) (RunStats, error) {
	var stats RunStats
	matches, err := ReadMatchLog(m.MatchLogPath, m.Log)
	if err != nil {
		return stats, err
	}
	pairs, err := ReadErrorLog(m.ErrorLogPath, m.Log)
	if err != nil {
		return stats, err
	}
	matchLog, err := OpenMatchLog(m.MatchLogPath)
	if err != nil {
		return stats, err
	}
	defer matchLog.Close()

	stats.Pairs = len(pairs)
	var remaining []Pair
	var runErr error
	for i, p := range pairs {
		if matches.Has(p.Word, p.POS) {
			stats.Done++
			continue
		}
		if ctx.Err() != nil || (m.MaxCalls > 0 && stats.Calls >= m.MaxCalls) {
			remaining = append(remaining, pairs[i:]...)
			runErr = ctx.Err()
			break
		}
		ok, called, err := m.matchPair(ctx, entries, p, matchLog)
		if called {
			stats.Calls++
		}
		if err != nil {
			remaining = append(remaining, pairs[i:]...)
			runErr = err
			break
		}
		switch {
		case !called:
			// The compiled entries no longer need this pair.
			stats.NoCandidates++
		case ok:
			stats.Matched++
		default:
			stats.Failed++
			remaining = append(remaining, p)
		}
	}
	if err := RewriteErrorLog(m.ErrorLogPath, remaining); err != nil {
		return stats, err
	}
	m.Log.Info("error log remediation finished",
		"pairs", stats.Pairs, "matched", stats.Matched, "failed", stats.Failed, "remaining", len(remaining))
	return stats, runErr
}

// matchPair queries the oracle for p. called is false when p has no
// unresolved senses or no candidates. ok reports a valid answer, which is
// appended to the match log. err is set only for cancellation and log
// write failures.
func (m *Matcher) matchPair(ctx context.Context, entries lexicon.CompiledEntries, p Pair, matchLog *MatchLog) (ok, called bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, false, err
	}
	entry := entries[p.Word]
	if entry == nil || entry.POS[p.POS] == nil {
		m.Log.Debug("pair not in compiled entries", "pair", p.String())
		return false, false, nil
	}
	senses := entry.POS[p.POS].Unresolved()
	if len(senses) == 0 {
		return false, false, nil
	}
	cands := m.Index.Candidates(p.POS, senses, m.MaxCandidates)
	if len(cands) == 0 {
		m.Log.Debug("no candidates", "pair", p.String())
		return false, false, nil
	}

	callCtx := ctx
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}
	ids, qerr := m.Oracle.Match(callCtx, Query{Word: p.Word, POS: p.POS, Senses: senses, Candidates: cands})
	if qerr == nil {
		qerr = Validate(ids, cands)
	}
	if qerr != nil {
		if ctx.Err() != nil && errors.Is(qerr, ctx.Err()) {
			return false, true, ctx.Err()
		}
		m.Log.Warn("sense match failed", "pair", p.String(), "error", qerr)
		return false, true, nil
	}
	if err := matchLog.Append(p.Word, p.POS, ids); err != nil {
		return false, true, err
	}
	m.Log.Debug("matched senses", "pair", p.String(), "synsets", ids)
	return true, true, nil
}
