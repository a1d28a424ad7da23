package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type bansPayload struct {
	Bans []string `json:"bans"`
}

func TestCache_SetReportsChange(t *testing.T) {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	c := NewCache(func() time.Time { return at })

	require.True(t, c.Set(Bans, bansPayload{Bans: []string{"203.0.113.9"}}))
	require.False(t, c.Set(Bans, bansPayload{Bans: []string{"203.0.113.9"}}))
	require.True(t, c.Set(Bans, bansPayload{}))

	got, ok := Typed[bansPayload](c, Bans)
	require.True(t, ok)
	require.Empty(t, got.Bans)

	fetched, ok := c.FetchedAt(Bans)
	require.True(t, ok)
	require.Equal(t, at, fetched)
}

func TestCache_UnknownKindIgnored(t *testing.T) {
	c := NewCache(nil)
	require.False(t, c.Set(Kind("nope"), 1))
	_, ok := c.Get(Kind("nope"))
	require.False(t, ok)
}

func TestCache_TypedMismatch(t *testing.T) {
	c := NewCache(nil)
	c.Set(Config, map[string]any{"a": 1})
	_, ok := Typed[bansPayload](c, Config)
	require.False(t, ok)
	_, ok = Typed[bansPayload](c, Events)
	require.False(t, ok)
}

func TestKinds(t *testing.T) {
	require.Len(t, Kinds(), 8)
	for _, k := range Kinds() {
		require.True(t, k.Valid())
	}
}
