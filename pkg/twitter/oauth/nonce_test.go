package oauth

import (
	"regexp"
	"sync"
	"testing"
	"time"
)

var hexNonce = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestHashNoncerFormat(t *testing.T) {
	n, err := NewHashNoncer(DefaultNonceSalt, 0)
	if err != nil {
		t.Fatalf("NewHashNoncer() error = %v", err)
	}
	if got := n.Nonce(); !hexNonce.MatchString(got) {
		t.Errorf("nonce %q is not a hex md5 digest", got)
	}
}

func TestHashNoncerStoppedClock(t *testing.T) {
	n, err := NewHashNoncer(DefaultNonceSalt, 16)
	if err != nil {
		t.Fatalf("NewHashNoncer() error = %v", err)
	}
	fixed := time.Unix(1318622958, 0)
	n.now = func() time.Time { return fixed }

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		nonce := n.Nonce()
		if seen[nonce] {
			t.Fatalf("nonce %q repeated on call %d", nonce, i)
		}
		seen[nonce] = true
	}
}

func TestHashNoncerDependsOnTimeAndSalt(t *testing.T) {
	a, _ := NewHashNoncer("salt-a", 0)
	b, _ := NewHashNoncer("salt-b", 0)
	fixed := time.Unix(1700000000, 0)
	a.now = func() time.Time { return fixed }
	b.now = func() time.Time { return fixed }

	if a.Nonce() == b.Nonce() {
		t.Error("different salts must yield different nonces")
	}

	c, _ := NewHashNoncer("salt-a", 0)
	c.now = func() time.Time { return fixed.Add(time.Second) }
	d, _ := NewHashNoncer("salt-a", 0)
	d.now = func() time.Time { return fixed }
	if c.Nonce() == d.Nonce() {
		t.Error("different times must yield different nonces")
	}
}

func TestHashNoncerConcurrent(t *testing.T) {
	n, err := NewHashNoncer(DefaultNonceSalt, 0)
	if err != nil {
		t.Fatalf("NewHashNoncer() error = %v", err)
	}
	fixed := time.Unix(1700000000, 0)
	n.now = func() time.Time { return fixed }

	const workers = 64
	results := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = n.Nonce()
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, workers)
	for _, nonce := range results {
		if seen[nonce] {
			t.Fatalf("nonce %q issued twice", nonce)
		}
		seen[nonce] = true
	}
}

func TestNoncerFunc(t *testing.T) {
	var n Noncer = NoncerFunc(func() string { return "fixed" })
	if n.Nonce() != "fixed" {
		t.Error("NoncerFunc did not return its value")
	}
}
