// Package redact replaces secrets and network identifiers in free-form
// command text with numbered placeholder tokens before the text is stored or
// sent anywhere.
//
// Masking runs two ordered passes. The first finds NAME=VALUE assignments
// whose name contains a sensitive fragment (key, secret, token, password,
// passwd, auth) and replaces them one at a time, rescanning from the start
// after each replacement. The second replaces dotted-quad IPv4 addresses that
// do not overlap anything the first pass produced.
package redact

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Marker is the substring every token contains. A value that already contains
// it is treated as masked.
const Marker = "REDACTED"

var (
	secretPattern = regexp.MustCompile(`(?i)((?:export\s+)?\w*(?:key|secret|token|password|passwd|auth)\w*)\s*=\s*(["']?)([^"'\s]+)["']?`)
	ipv4Pattern   = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	tokenPattern  = regexp.MustCompile(`<` + Marker + `(?:_IP)?_(\d+)>`)
)

// span is a half-open byte range [start, end)
type span struct {
	start, end int
}

func (s span) overlaps(start, end int) bool {
	return start < s.end && s.start < end
}

// Engine masks text. Token numbers come from a counter that lives as long as
// the engine; a new engine starts again at zero. The counter skips past any
// token number already present in the text being masked.
type Engine struct {
	mu      sync.Mutex
	counter int
	issued  int
}

// New returns an engine whose counter starts at zero
func New() *Engine {
	return &Engine{}
}

// Count returns how many tokens the engine has issued
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.issued
}

// next returns the number for a new token, above existing
func (e *Engine) next(existing int) int {
	if e.counter <= existing {
		e.counter = existing + 1
	}
	n := e.counter
	e.counter++
	e.issued++
	return n
}

// peek returns the number next would hand out without consuming it
func (e *Engine) peek(existing int) int {
	return max(e.counter, existing+1)
}

// highestToken returns the largest token number in text, or -1
func highestToken(text string) int {
	highest := -1
	for _, m := range tokenPattern.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}

// Mask returns text with sensitive spans replaced by tokens. Text that does
// not match anything is returned unchanged.
func (e *Engine) Mask(text string) string {
	if text == "" {
		return ""
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	existing := highestToken(text)
	masked, spans := e.maskSecrets(text, existing)
	return e.maskAddresses(masked, spans, existing)
}

// maskSecrets runs the NAME=VALUE pass and returns the masked text along with
// the spans of every replacement it made, in final-text coordinates.
func (e *Engine) maskSecrets(text string, existing int) (string, []span) {
	var spans []span

	// Every iteration turns one unmasked assignment into a masked one, so the
	// number of iterations cannot exceed the number of assignments in text.
	for iterations := 0; iterations <= len(text); iterations++ {
		loc := firstUnmaskedAssignment(text)
		if loc == nil {
			break
		}

		start, end := loc[0], loc[1]
		name := text[loc[2]:loc[3]]
		replacement := fmt.Sprintf("%s=<%s_%d>", name, Marker, e.peek(existing))

		next := text[:start] + replacement + text[end:]
		if next == text {
			break
		}
		e.next(existing)
		text = next

		delta := len(replacement) - (end - start)
		spans = shiftSpans(spans, start, end, delta)
		spans = append(spans, span{start: start, end: start + len(replacement)})
	}

	return text, spans
}

// firstUnmaskedAssignment returns the submatch indexes of the leftmost
// assignment whose value is not already a token, or nil.
func firstUnmaskedAssignment(text string) []int {
	for _, loc := range secretPattern.FindAllStringSubmatchIndex(text, -1) {
		value := text[loc[6]:loc[7]]
		if strings.Contains(value, Marker) {
			continue
		}
		return loc
	}
	return nil
}

// shiftSpans moves spans that sit after a replaced region and drops spans
// that were swallowed by it.
func shiftSpans(spans []span, start, end, delta int) []span {
	out := spans[:0]
	for _, s := range spans {
		switch {
		case s.start >= end:
			out = append(out, span{start: s.start + delta, end: s.end + delta})
		case s.end <= start:
			out = append(out, s)
		}
	}
	return out
}

// maskAddresses replaces IPv4 addresses left to right, skipping any match
// that overlaps a pass-one replacement or a token already in the input.
func (e *Engine) maskAddresses(text string, excluded []span, existing int) string {
	matches := ipv4Pattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	for _, loc := range tokenPattern.FindAllStringIndex(text, -1) {
		excluded = append(excluded, span{start: loc[0], end: loc[1]})
	}
	sort.Slice(excluded, func(i, j int) bool { return excluded[i].start < excluded[j].start })

	var b strings.Builder
	last := 0
	for _, loc := range matches {
		if isExcluded(excluded, loc[0], loc[1]) {
			continue
		}
		b.WriteString(text[last:loc[0]])
		fmt.Fprintf(&b, "<%s_IP_%d>", Marker, e.next(existing))
		last = loc[1]
	}
	b.WriteString(text[last:])

	return b.String()
}

func isExcluded(spans []span, start, end int) bool {
	for _, s := range spans {
		if s.overlaps(start, end) {
			return true
		}
	}
	return false
}
