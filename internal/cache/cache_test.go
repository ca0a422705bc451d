package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministic(t *testing.T) {
	payload := map[string]any{
		"messages":    []any{map[string]any{"role": "user", "content": "hi"}},
		"temperature": 0.7,
		"max_tokens":  128,
	}
	require.Equal(t, Fingerprint("m1", payload), Fingerprint("m1", payload))
}

func TestFingerprintModelSensitive(t *testing.T) {
	payload := map[string]any{"prompt": "hello"}
	require.NotEqual(t, Fingerprint("m1", payload), Fingerprint("m2", payload))
}

func TestFingerprintParamSensitive(t *testing.T) {
	a := map[string]any{"prompt": "hello", "temperature": 0.1}
	b := map[string]any{"prompt": "hello", "temperature": 0.2}
	require.NotEqual(t, Fingerprint("m1", a), Fingerprint("m1", b))
}

func TestFingerprintIgnoresStreamFlag(t *testing.T) {
	a := map[string]any{"prompt": "hello", "stream": true}
	b := map[string]any{"prompt": "hello", "stream": false}
	require.Equal(t, Fingerprint("m1", a), Fingerprint("m1", b))
}

func TestFingerprintSeparatesAdjacentFields(t *testing.T) {
	a := map[string]any{"ab": "c"}
	b := map[string]any{"a": "bc"}
	require.NotEqual(t, Fingerprint("m1", a), Fingerprint("m1", b))
}
