package leave

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// tokenBytes is the entropy of an approval token (256 bits).
const tokenBytes = 32

// TokenScope resolves an approval token to the records it controls.
type TokenScope interface {
	ResolveByToken(ctx context.Context, token string) ([]Request, error)
}

// NewToken returns a fresh hex-encoded approval token.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewID returns a fresh record or group identifier.
func NewID() string {
	return uuid.NewString()
}

func tokenEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// groupIndexes returns the positions of the records controlled by token.
// Matches are restricted to the group of the first match so a token can
// never reach records outside the batch that issued it.
func groupIndexes(records []Request, token string) []int {
	if token == "" {
		return nil
	}
	first := -1
	for i := range records {
		if tokenEqual(records[i].Token, token) {
			first = i
			break
		}
	}
	if first < 0 {
		return nil
	}

	groupID := records[first].GroupID
	idx := []int{first}
	for i := first + 1; i < len(records); i++ {
		if records[i].GroupID == groupID && tokenEqual(records[i].Token, token) {
			idx = append(idx, i)
		}
	}
	return idx
}
