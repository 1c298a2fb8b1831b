package credential

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredential_Malformed(t *testing.T) {
	tests := []struct {
		name string
		cred Credential
		want bool
	}{
		{name: "empty", cred: Credential{}, want: false},
		{name: "flag with email", cred: Credential{Authenticated: true, Email: "a@uni.edu"}, want: false},
		{name: "flag without email", cred: Credential{Authenticated: true}, want: true},
		{name: "flag with blank email", cred: Credential{Authenticated: true, Email: "  "}, want: true},
		{name: "email without flag", cred: Credential{Email: "a@uni.edu"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cred.Malformed())
		})
	}
}

func TestMemoryCache_StoreLoadClear(t *testing.T) {
	ctx := context.Background()
	cache := NewMemory()

	cred, err := cache.Load(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, cred.Authenticated)

	want := Credential{Authenticated: true, Email: "admin@uni.edu", Provider: ProviderDemo}
	require.NoError(t, cache.Store(ctx, "b1", want))

	got, err := cache.Load(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	other, err := cache.Load(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, Credential{}, other)

	require.NoError(t, cache.Clear(ctx, "b1"))
	got, err = cache.Load(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, Credential{}, got)
}

func TestMemoryCache_WatchIsScopedToBrowser(t *testing.T) {
	ctx := context.Background()
	cache := NewMemory()

	var b1, b2 int
	unsub := cache.Watch("b1", func() { b1++ })
	cache.Watch("b2", func() { b2++ })

	require.NoError(t, cache.Store(ctx, "b1", Credential{Authenticated: true, Email: "x@uni.edu"}))
	require.NoError(t, cache.Clear(ctx, "b1"))
	// clearing an absent credential is not a change
	require.NoError(t, cache.Clear(ctx, "b1"))

	assert.Equal(t, 2, b1)
	assert.Equal(t, 0, b2)

	unsub()
	require.NoError(t, cache.Store(ctx, "b1", Credential{}))
	assert.Equal(t, 2, b1)
}
