package oauth

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultNonceSalt is mixed into every nonce derived by a HashNoncer.
const DefaultNonceSalt = "adsf"

// DefaultNonceWindow is how many recently issued nonces a HashNoncer remembers.
const DefaultNonceWindow = 4096

// Noncer produces the oauth_nonce value of a request.
type Noncer interface {
	Nonce() string
}

// NoncerFunc adapts a function to the Noncer interface.
type NoncerFunc func() string

// Nonce calls f.
func (f NoncerFunc) Nonce() string { return f() }

// HashNoncer derives nonces as the hex MD5 of the current time plus a fixed salt.
// Uniqueness, not unpredictability, is what the server checks: it rejects an
// oauth_token seen twice with the same nonce. Nonces already handed out within the
// window are never returned again, even when the clock does not advance between
// calls. Safe for concurrent use.
type HashNoncer struct {
	salt string
	now  func() time.Time
	seen *lru.Cache[string, struct{}]
}

// NewHashNoncer returns a HashNoncer remembering the last window nonces.
func NewHashNoncer(salt string, window int) (*HashNoncer, error) {
	if window <= 0 {
		window = DefaultNonceWindow
	}
	seen, err := lru.New[string, struct{}](window)
	if err != nil {
		return nil, fmt.Errorf("create nonce cache: %w", err)
	}
	return &HashNoncer{
		salt: salt,
		now:  time.Now,
		seen: seen,
	}, nil
}

// Nonce returns a nonce not issued by n within its window.
func (n *HashNoncer) Nonce() string {
	stamp := strconv.FormatInt(n.now().UnixNano(), 10)
	for attempt := 0; ; attempt++ {
		input := stamp + n.salt
		if attempt > 0 {
			input += "#" + strconv.Itoa(attempt)
		}
		sum := md5.Sum([]byte(input))
		nonce := hex.EncodeToString(sum[:])
		if found, _ := n.seen.ContainsOrAdd(nonce, struct{}{}); !found {
			return nonce
		}
	}
}
