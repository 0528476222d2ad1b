package hooks

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"foscam2mqtt/internal/models"
)

const (
	tokenLength   = 24
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// NoRoute is written for callbacks that cannot be mapped back to a live
	// token. It never verifies.
	NoRoute = "none"
)

// Router maps webhook tokens to actions.
//
// In plain mode the token is the action name and the mapping is fixed. In
// obfuscated mode every action owns exactly one random token at a time.
// Readers go through an immutable snapshot, writers are serialized.
type Router struct {
	obfuscate bool

	mu     sync.Mutex // serializes writers
	tokens atomic.Pointer[map[string]models.Action]
}

func NewRouter(obfuscate bool) *Router {
	r := &Router{obfuscate: obfuscate}
	empty := map[string]models.Action{}
	r.tokens.Store(&empty)
	return r
}

func (r *Router) Obfuscated() bool {
	return r.obfuscate
}

// Verify resolves a token. It never blocks on writers.
func (r *Router) Verify(token string) (models.Action, bool) {
	if !r.obfuscate {
		return models.ParseAction(token)
	}
	action, ok := (*r.tokens.Load())[token]
	return action, ok
}

// Current returns the live token of an action without rotating it.
func (r *Router) Current(action models.Action) (string, bool) {
	if !r.obfuscate {
		return string(action), true
	}
	for token, a := range *r.tokens.Load() {
		if a == action {
			return token, true
		}
	}
	return "", false
}

// Mint generates a token for action without registering it.
func (r *Router) Mint(action models.Action) string {
	if !r.obfuscate {
		return string(action)
	}
	return randomToken()
}

// Commit registers the given tokens, evicting the previous token of every
// action present in the set. Actions not in the set keep their token.
func (r *Router) Commit(issued map[models.Action]string) {
	if !r.obfuscate || len(issued) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.tokens.Load()
	next := make(map[string]models.Action, len(current)+len(issued))
	for token, action := range current {
		if _, rotated := issued[action]; rotated {
			continue
		}
		next[token] = action
	}
	for action, token := range issued {
		next[token] = action
	}
	r.tokens.Store(&next)
}

// Issue mints and registers a fresh token for action.
func (r *Router) Issue(action models.Action) string {
	token := r.Mint(action)
	r.Commit(map[models.Action]string{action: token})
	return token
}

// Len reports the number of live tokens.
func (r *Router) Len() int {
	if !r.obfuscate {
		return len(models.Actions)
	}
	return len(*r.tokens.Load())
}

func randomToken() string {
	// A fresh PCG per token, seeded from the runtime source. Tokens only
	// deter guessing, they are not secrets.
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	b := make([]byte, tokenLength)
	for i := range b {
		b[i] = tokenAlphabet[rng.IntN(len(tokenAlphabet))]
	}
	return string(b)
}
