package agent

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// chunkedReader yields one predefined chunk per Read call, regardless of the
// caller's buffer size, to simulate arbitrary transport fragmentation.
type chunkedReader struct {
	chunks []string
	pos    int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.chunks) {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[r.pos])
	r.pos++
	return n, nil
}

func collectDeltas(t *testing.T, chunks []string) (*streamRelay, []string) {
	t.Helper()
	var deltas []string
	relay := newStreamRelay(func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err := relay.Consume(&chunkedReader{chunks: chunks}); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	return relay, deltas
}

func TestStreamRelayForwardsContentDeltas(t *testing.T) {
	chunks := []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n",
		"data: [DONE]\n\n",
	}

	relay, deltas := collectDeltas(t, chunks)

	if got := relay.Content(); got != "Hello" {
		t.Errorf("Expected content %q, got %q", "Hello", got)
	}
	if len(deltas) != 2 || deltas[0] != "Hel" || deltas[1] != "lo" {
		t.Errorf("Expected deltas [Hel lo], got %v", deltas)
	}
}

func TestStreamRelayFrameSplitAcrossChunks(t *testing.T) {
	// One SSE record arrives cut mid-JSON; the residue buffer must stitch it.
	chunks := []string{
		"data: {\"choices\":[{\"delta\":{\"con",
		"tent\":\"whole\"}}]}\n\ndata: [DONE]\n\n",
	}

	relay, deltas := collectDeltas(t, chunks)

	if got := relay.Content(); got != "whole" {
		t.Errorf("Expected content %q, got %q", "whole", got)
	}
	if len(deltas) != 1 {
		t.Errorf("Expected exactly one delta, got %v", deltas)
	}
}

func TestStreamRelaySkipsMalformedFrames(t *testing.T) {
	chunks := []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n",
		"data: {not json at all\n\n",
		": keep-alive comment\n\n",
		"event: noise\n\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n",
		"data: [DONE]\n\n",
	}

	relay, _ := collectDeltas(t, chunks)

	if got := relay.Content(); got != "ab" {
		t.Errorf("Expected content %q after malformed frame, got %q", "ab", got)
	}
}

func TestStreamRelayStopsForwardingAfterDone(t *testing.T) {
	chunks := []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"before\"}}]}\n\n",
		"data: [DONE]\n\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"after\"}}]}\n\n",
	}

	relay, deltas := collectDeltas(t, chunks)

	if got := relay.Content(); got != "before" {
		t.Errorf("Expected frames after [DONE] to be ignored, got content %q", got)
	}
	if len(deltas) != 1 {
		t.Errorf("Expected one delta, got %v", deltas)
	}
}

func TestStreamRelayAccumulatesInterleavedToolCalls(t *testing.T) {
	// Two tool calls whose argument fragments interleave by index. Index
	// identity decides which call each fragment extends; final order is
	// ascending index.
	chunks := []string{
		"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_a\",\"function\":{\"name\":\"create_task\",\"arguments\":\"{\\\"tit\"}}]}}]}\n\n",
		"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":1,\"id\":\"call_b\",\"function\":{\"name\":\"trigger_ocr\",\"arguments\":\"{\\\"docum\"}}]}}]}\n\n",
		"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"le\\\":\\\"x\\\"}\"}}]}}]}\n\n",
		"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":1,\"function\":{\"arguments\":\"entId\\\":\\\"d1\\\"}\"}}]}}]}\n\n",
		"data: [DONE]\n\n",
	}

	relay, _ := collectDeltas(t, chunks)

	calls := relay.ToolCalls()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 tool calls, got %d", len(calls))
	}
	if calls[0].ID != "call_a" || calls[0].Name != "create_task" {
		t.Errorf("Unexpected first call: %+v", calls[0])
	}
	if calls[0].Arguments != `{"title":"x"}` {
		t.Errorf("Expected merged arguments %q, got %q", `{"title":"x"}`, calls[0].Arguments)
	}
	if calls[1].ID != "call_b" || calls[1].Arguments != `{"documentId":"d1"}` {
		t.Errorf("Unexpected second call: %+v", calls[1])
	}
}

func TestStreamRelayFinalRecordWithoutNewline(t *testing.T) {
	chunks := []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"tail\"}}]}",
	}

	relay, _ := collectDeltas(t, chunks)

	if got := relay.Content(); got != "tail" {
		t.Errorf("Expected trailing record to be processed at EOF, got %q", got)
	}
}

func TestStreamRelayPropagatesEmitError(t *testing.T) {
	emitErr := errors.New("client gone")
	relay := newStreamRelay(func(string) error { return emitErr })

	body := strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
	if err := relay.Consume(body); !errors.Is(err, emitErr) {
		t.Errorf("Expected emit error to propagate, got %v", err)
	}
}
