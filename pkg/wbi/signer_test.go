package wbi

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 64 distinct URL-safe characters so permutation positions are observable
// and the fixture survives the filename-stem extraction intact.
const testOrigin = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ-_"

// fetcherFor returns a KeyFetcher whose filename stems concatenate to origin.
func fetcherFor(origin string, calls *int32) KeyFetcher {
	return func(ctx context.Context) (string, string, error) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		img := "https://i0.hdslb.com/bfs/wbi/" + origin[:32] + ".png"
		sub := "https://i0.hdslb.com/bfs/wbi/" + origin[32:] + ".png"
		return img, sub, nil
	}
}

func TestDeriveMixinKey(t *testing.T) {
	img := "https://i0.hdslb.com/bfs/wbi/" + testOrigin[:32] + ".png"
	sub := "https://i0.hdslb.com/bfs/wbi/" + testOrigin[32:] + ".png"

	key, err := DeriveMixinKey(img, sub)
	require.NoError(t, err)

	// Hand-applied permutation table over testOrigin.
	assert.Equal(t, "KLi2R8nwfOavW3JzrH5Nx9GjtseDcCFd", key)
	assert.Len(t, key, 32)
}

func TestDeriveMixinKeyShortOrigin(t *testing.T) {
	_, err := DeriveMixinKey("https://x/abc.png", "https://x/def.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "origin too short")
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "hello world", Sanitize("h!e'l(l)o* world"))
	assert.Equal(t, "", Sanitize("!'()*"))
	assert.Equal(t, "untouched", Sanitize("untouched"))
}

func TestEncodeParams(t *testing.T) {
	got := EncodeParams(map[string]string{
		"type": "1",
		"oid":  "12345",
		"mode": "2",
	})
	// Keys sorted, '&'-joined.
	assert.Equal(t, "mode=2&oid=12345&type=1", got)
}

func TestEncodeParamsEscaping(t *testing.T) {
	got := EncodeParams(map[string]string{
		"pagination_str": `{"offset":"abc def"}`,
	})
	// encodeURIComponent semantics: '{' '"' ':' and space percent-encoded,
	// space never '+'.
	assert.Equal(t, "pagination_str=%7B%22offset%22%3A%22abc%20def%22%7D", got)
}

func TestSignDeterminism(t *testing.T) {
	fixed := time.Unix(1717000000, 0)
	signer := NewSigner(fetcherFor(testOrigin, nil), WithClock(func() time.Time { return fixed }))

	params := map[string]string{"oid": "99", "type": "1"}
	first, err := signer.Sign(context.Background(), params)
	require.NoError(t, err)
	second, err := signer.Sign(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, first["w_rid"], second["w_rid"])
	assert.Equal(t, "1717000000", first["wts"])

	// The signature is MD5(canonical query + mixin key).
	sum := md5.Sum([]byte(EncodeParams(map[string]string{
		"oid": "99", "type": "1", "wts": "1717000000",
	}) + "KLi2R8nwfOavW3JzrH5Nx9GjtseDcCFd"))
	assert.Equal(t, hex.EncodeToString(sum[:]), first["w_rid"])

	// Input map is untouched.
	assert.Len(t, params, 2)
}

func TestSignChangesWithAnyInput(t *testing.T) {
	fixed := time.Unix(1717000000, 0)
	signer := NewSigner(fetcherFor(testOrigin, nil), WithClock(func() time.Time { return fixed }))

	base, err := signer.Sign(context.Background(), map[string]string{"oid": "99"})
	require.NoError(t, err)

	changedParam, err := signer.Sign(context.Background(), map[string]string{"oid": "100"})
	require.NoError(t, err)
	assert.NotEqual(t, base["w_rid"], changedParam["w_rid"])

	// Different timestamp, same params.
	later := NewSigner(fetcherFor(testOrigin, nil), WithClock(func() time.Time { return fixed.Add(time.Second) }))
	changedTime, err := later.Sign(context.Background(), map[string]string{"oid": "99"})
	require.NoError(t, err)
	assert.NotEqual(t, base["w_rid"], changedTime["w_rid"])

	// Different secret, same params and timestamp.
	otherOrigin := "9876543210abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ-_"
	otherKey := NewSigner(fetcherFor(otherOrigin, nil), WithClock(func() time.Time { return fixed }))
	changedKey, err := otherKey.Sign(context.Background(), map[string]string{"oid": "99"})
	require.NoError(t, err)
	assert.NotEqual(t, base["w_rid"], changedKey["w_rid"])
}

func TestMixinKeyCachedUntilTTL(t *testing.T) {
	var calls int32
	now := time.Unix(1717000000, 0)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	signer := NewSigner(fetcherFor(testOrigin, &calls), WithClock(clock), WithTTL(10*time.Minute))

	for i := 0; i < 5; i++ {
		_, err := signer.Sign(context.Background(), map[string]string{"oid": "1"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// Past the TTL: exactly one refresh.
	mu.Lock()
	now = now.Add(11 * time.Minute)
	mu.Unlock()

	_, err := signer.Sign(context.Background(), map[string]string{"oid": "1"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestResetForcesRederivation(t *testing.T) {
	var calls int32
	signer := NewSigner(fetcherFor(testOrigin, &calls))

	_, err := signer.Sign(context.Background(), map[string]string{"oid": "1"})
	require.NoError(t, err)
	signer.Reset()
	_, err = signer.Sign(context.Background(), map[string]string{"oid": "1"})
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestConcurrentFirstUseSingleFetch(t *testing.T) {
	var calls int32
	slowFetch := func(ctx context.Context) (string, string, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return fetcherFor(testOrigin, nil)(ctx)
	}
	signer := NewSigner(slowFetch)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := signer.Sign(context.Background(), map[string]string{"oid": "1"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
