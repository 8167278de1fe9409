package classify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirchapp/menu-pipeline/internal/model"
)

func TestFingerprint_Stable(t *testing.T) {
	a := Fingerprint("some page content")
	b := Fingerprint("some page content")
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestFingerprint_DistinguishesContent(t *testing.T) {
	assert.NotEqual(t, Fingerprint("menu page one"), Fingerprint("menu page two"))
}

func TestFingerprint_BoundedPrefix(t *testing.T) {
	prefix := strings.Repeat("a", fingerprintPrefix)
	// Content differing only past the prefix hashes identically.
	assert.Equal(t, Fingerprint(prefix+"tail one"), Fingerprint(prefix+"tail two"))
	// Content differing within the prefix does not.
	assert.NotEqual(t, Fingerprint("x"+prefix), Fingerprint("y"+prefix))
}

func TestResultCache_TTLExpiry(t *testing.T) {
	cache := newResultCache(time.Minute)

	current := time.Unix(1700000000, 0)
	cache.now = func() time.Time { return current }

	cls := model.Classification{Score: 80, Confidence: 0.9, IsMenu: true}
	cache.set("key", cls)

	got, ok := cache.get("key")
	require.True(t, ok)
	assert.Equal(t, cls, got)

	current = current.Add(59 * time.Second)
	_, ok = cache.get("key")
	assert.True(t, ok)

	current = current.Add(2 * time.Second)
	_, ok = cache.get("key")
	assert.False(t, ok)

	// The expired entry is evicted, not merely hidden.
	cache.mu.Lock()
	_, present := cache.entries["key"]
	cache.mu.Unlock()
	assert.False(t, present)
}

func TestResultCache_MissingKey(t *testing.T) {
	cache := newResultCache(time.Minute)
	_, ok := cache.get("never-set")
	assert.False(t, ok)
}
