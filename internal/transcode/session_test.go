package transcode

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func runSession(t *testing.T, mode Mode, chunks ...[]byte) (string, []map[string]any) {
	t.Helper()
	var out strings.Builder
	s := NewSession(Config{
		ID:      "cmpl-test",
		Created: 1700000000,
		Model:   "test-model",
		Mode:    mode,
		Emit: func(frame []byte) error {
			out.Write(frame)
			return nil
		},
	})
	for _, chunk := range chunks {
		require.NoError(t, s.Write(chunk))
	}
	require.NoError(t, s.Flush())
	return out.String(), parseFrames(t, out.String())
}

// parseFrames splits raw SSE output into decoded JSON bodies, excluding the
// sentinel event.
func parseFrames(t *testing.T, raw string) []map[string]any {
	t.Helper()
	var frames []map[string]any
	for _, part := range strings.Split(raw, "\n\n") {
		if part == "" {
			continue
		}
		require.True(t, strings.HasPrefix(part, "data: "), "frame missing event prefix: %q", part)
		payload := strings.TrimPrefix(part, "data: ")
		if payload == "[DONE]" {
			continue
		}
		var body map[string]any
		require.NoError(t, json.Unmarshal([]byte(payload), &body), "frame body: %q", payload)
		frames = append(frames, body)
	}
	return frames
}

func deltaContent(t *testing.T, frame map[string]any) (string, bool) {
	t.Helper()
	choices := frame["choices"].([]any)
	require.Len(t, choices, 1)
	delta := choices[0].(map[string]any)["delta"].(map[string]any)
	content, ok := delta["content"].(string)
	return content, ok
}

func finishReason(t *testing.T, frame map[string]any) any {
	t.Helper()
	choices := frame["choices"].([]any)
	require.Len(t, choices, 1)
	return choices[0].(map[string]any)["finish_reason"]
}

func TestSplitCloseTagAcrossChunks(t *testing.T) {
	raw, frames := runSession(t, ModeChat,
		[]byte("reasoning...</thi"),
		[]byte("nk>data: {\"response\":\"Hi\"}\ndata: [DONE]\n"),
	)

	require.Len(t, frames, 2)
	content, ok := deltaContent(t, frames[0])
	require.True(t, ok)
	require.Equal(t, "Hi", content)
	require.Nil(t, finishReason(t, frames[0]))

	require.Equal(t, "stop", finishReason(t, frames[1]))
	_, ok = deltaContent(t, frames[1])
	require.False(t, ok, "terminating frame must carry an empty delta")

	require.True(t, strings.HasSuffix(raw, "data: [DONE]\n\n"))
	require.NotContains(t, raw, "reasoning")
	require.NotContains(t, raw, "think")
}

func TestCompletionModeFrameShape(t *testing.T) {
	_, frames := runSession(t, ModeCompletion,
		[]byte("</think>data: {\"response\":\"42\"}\ndata: [DONE]\n"),
	)

	require.Len(t, frames, 2)
	require.Equal(t, "text_completion", frames[0]["object"])
	choices := frames[0]["choices"].([]any)
	choice := choices[0].(map[string]any)
	require.Equal(t, "42", choice["text"])
	require.Nil(t, choice["logprobs"])
	require.Nil(t, choice["finish_reason"])

	require.Equal(t, "stop", finishReason(t, frames[1]))
}

func TestMultipleFragmentsArriveInOrder(t *testing.T) {
	_, frames := runSession(t, ModeChat,
		[]byte("</think>data: {\"response\":\"Hel\"}\ndata: {\"response\":\"lo\"}\ndata: [DONE]\n"),
	)

	require.Len(t, frames, 3)
	first, _ := deltaContent(t, frames[0])
	second, _ := deltaContent(t, frames[1])
	require.Equal(t, "Hel", first)
	require.Equal(t, "lo", second)
}

func TestChunkBoundaryInvariance(t *testing.T) {
	input := []byte("thinking about émojis 🤔 and tags</think>data: {\"response\":\"héllo \"}\ndata: {\"response\":\"wörld 🌍\"}\ndata: [DONE]\n")

	whole, _ := runSession(t, ModeChat, input)

	var single [][]byte
	for i := range input {
		single = append(single, input[i:i+1])
	}
	bytewise, _ := runSession(t, ModeChat, single...)
	require.Equal(t, whole, bytewise)

	for _, size := range []int{2, 3, 5, 7, 13} {
		var chunks [][]byte
		for i := 0; i < len(input); i += size {
			end := i + size
			if end > len(input) {
				end = len(input)
			}
			chunks = append(chunks, input[i:end])
		}
		chunked, _ := runSession(t, ModeChat, chunks...)
		require.Equal(t, whole, chunked, "chunk size %d", size)
	}
}

func TestTerminationEmittedExactlyOnce(t *testing.T) {
	var out strings.Builder
	s := NewSession(Config{Mode: ModeChat, Emit: func(frame []byte) error {
		out.Write(frame)
		return nil
	}})

	require.NoError(t, s.Write([]byte("</think>data: {\"response\":\"a\"}\ndata: [DONE]\n")))
	afterDone := out.String()
	require.Equal(t, 1, strings.Count(afterDone, "data: [DONE]"))
	require.True(t, s.Finished())

	// Late input and repeated flushes change nothing.
	require.NoError(t, s.Write([]byte("data: {\"response\":\"late\"}\n")))
	require.NoError(t, s.Flush())
	require.NoError(t, s.Flush())
	require.Equal(t, afterDone, out.String())
}

func TestIdempotentFlushWithoutSentinel(t *testing.T) {
	var out strings.Builder
	s := NewSession(Config{Mode: ModeChat, Emit: func(frame []byte) error {
		out.Write(frame)
		return nil
	}})
	require.NoError(t, s.Write([]byte("</think>data: {\"response\":\"a\"}\n")))

	require.NoError(t, s.Flush())
	once := out.String()
	require.NoError(t, s.Flush())
	require.Equal(t, once, out.String())
	require.Equal(t, 1, strings.Count(once, "data: [DONE]"))
	require.Contains(t, once, "\"finish_reason\":\"stop\"")
}

func TestCompletionFlushWithoutSentinelStillTerminates(t *testing.T) {
	raw, frames := runSession(t, ModeCompletion, []byte("</think>data: {\"response\":\"a\"}\n"))
	require.Len(t, frames, 2)
	require.Equal(t, "stop", finishReason(t, frames[1]))
	require.True(t, strings.HasSuffix(raw, "data: [DONE]\n\n"))
}

func TestMarkerNeverFound(t *testing.T) {
	raw, frames := runSession(t, ModeChat, []byte("only reasoning, no close tag, no events"))
	require.Len(t, frames, 1)
	require.Equal(t, "stop", finishReason(t, frames[0]))
	require.NotContains(t, raw, "reasoning")
}

func TestMalformedEventLineIsSkipped(t *testing.T) {
	var out strings.Builder
	s := NewSession(Config{Mode: ModeChat, Emit: func(frame []byte) error {
		out.Write(frame)
		return nil
	}})
	require.NoError(t, s.Write([]byte("</think>data: {not json\ndata: {\"response\":\"ok\"}\ndata: [DONE]\n")))

	frames := parseFrames(t, out.String())
	require.Len(t, frames, 2)
	content, _ := deltaContent(t, frames[0])
	require.Equal(t, "ok", content)
	require.Equal(t, uint64(1), s.Skipped())
}

func TestNonEventLinesAreIgnored(t *testing.T) {
	_, frames := runSession(t, ModeChat,
		[]byte("</think>noise without prefix\ndata: {\"response\":\"x\"}\ndata: [DONE]\n"),
	)
	require.Len(t, frames, 2)
	content, _ := deltaContent(t, frames[0])
	require.Equal(t, "x", content)
}

func TestChatFragmentFallbackChain(t *testing.T) {
	cases := []struct {
		name string
		line string
		want string
	}{
		{"string payload", `data: {"response":"plain"}`, "plain"},
		{"object text field", `data: {"response":{"text":"from text"}}`, "from text"},
		{"object content field", `data: {"response":{"content":"from content"}}`, "from content"},
		{"object fallback", `data: {"response":{"other":1}}`, `{"other":1}`},
		{"missing field", `data: {"unrelated":true}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, frames := runSession(t, ModeChat, []byte("</think>"+tc.line+"\ndata: [DONE]\n"))
			require.Len(t, frames, 2)
			content, _ := deltaContent(t, frames[0])
			require.Equal(t, tc.want, content)
		})
	}
}

func TestEmitErrorPropagates(t *testing.T) {
	sinkErr := errors.New("client gone")
	calls := 0
	s := NewSession(Config{Mode: ModeChat, Emit: func(frame []byte) error {
		calls++
		return sinkErr
	}})
	err := s.Write([]byte("</think>data: {\"response\":\"a\"}\n"))
	require.ErrorIs(t, err, sinkErr)
	require.Equal(t, 1, calls)
}
