package auth

import "sync"

// TokenOrigin identifies where a pending identity token came from. When more
// than one origin holds a token for the same login attempt, the
// highest-priority origin wins.
type TokenOrigin int

const (
	// OriginExplicit is a token handed directly to the completion call.
	OriginExplicit TokenOrigin = iota
	// OriginQuery is a token lifted from the callback's query string.
	OriginQuery
	// OriginFragment is a token lifted from the callback's URL fragment,
	// posted back by the landing page.
	OriginFragment
	// OriginPersisted is a token recovered from an earlier interrupted
	// attempt.
	OriginPersisted
)

func (o TokenOrigin) String() string {
	switch o {
	case OriginExplicit:
		return "explicit"
	case OriginQuery:
		return "query"
	case OriginFragment:
		return "fragment"
	case OriginPersisted:
		return "persisted"
	default:
		return "unknown"
	}
}

type pendingToken struct {
	raw    string
	origin TokenOrigin
}

// TokenSource collects identity tokens that arrive over different delivery
// channels for the same login attempt and hands out the best one exactly
// once. A lower origin value outranks a higher one; within the same origin
// the latest offer wins.
type TokenSource struct {
	mu      sync.Mutex
	pending map[string]pendingToken
}

// NewTokenSource creates an empty token source.
func NewTokenSource() *TokenSource {
	return &TokenSource{pending: make(map[string]pendingToken)}
}

// Offer records a token for a login attempt. Empty tokens are ignored. An
// offer from a lower-priority origin never displaces one already held from a
// higher-priority origin.
func (s *TokenSource) Offer(sessionID, rawToken string, origin TokenOrigin) {
	if rawToken == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.pending[sessionID]; ok && existing.origin < origin {
		return
	}
	s.pending[sessionID] = pendingToken{raw: rawToken, origin: origin}
}

// Take removes and returns the best pending token for a login attempt.
func (s *TokenSource) Take(sessionID string) (string, TokenOrigin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.pending[sessionID]
	if !ok {
		return "", 0, false
	}
	delete(s.pending, sessionID)
	return token.raw, token.origin, true
}

// Peek reports whether a token is pending without consuming it.
func (s *TokenSource) Peek(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[sessionID]
	return ok
}
