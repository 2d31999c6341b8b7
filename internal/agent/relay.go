package agent

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/romanwi-dev/pl-descent-navigator/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const streamDonePayload = "[DONE]"

// streamRelay consumes a chunked chat-completion response framed as
// newline-delimited SSE records. Content deltas are forwarded to emit in
// arrival order; tool-call fragments are accumulated by index and merged
// only once the stream ends. One malformed frame never aborts the stream.
type streamRelay struct {
	emit    func(delta string) error
	residue string
	content strings.Builder
	calls   *toolCallAccumulator
	done    bool
}

func newStreamRelay(emit func(delta string) error) *streamRelay {
	return &streamRelay{
		emit:  emit,
		calls: newToolCallAccumulator(),
	}
}

// Consume reads the upstream body to completion. Read errors propagate;
// emit errors propagate so the caller can stop writing to a dropped client.
// After the [DONE] sentinel nothing more is forwarded, but the body is
// drained until the transport ends.
func (r *streamRelay) Consume(body io.Reader) error {
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if perr := r.processChunk(string(buf[:n])); perr != nil {
				return perr
			}
		}
		if err == io.EOF {
			// A final record without a trailing newline is complete now.
			if r.residue != "" {
				line := r.residue
				r.residue = ""
				return r.processLine(line)
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// processChunk splits on newlines, holding back the last (possibly partial)
// line as residue for the next chunk.
func (r *streamRelay) processChunk(chunk string) error {
	data := r.residue + chunk
	lines := strings.Split(data, "\n")
	r.residue = lines[len(lines)-1]
	for _, line := range lines[:len(lines)-1] {
		if err := r.processLine(line); err != nil {
			return err
		}
	}
	return nil
}

func (r *streamRelay) processLine(line string) error {
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" {
		return nil
	}
	// Comment lines keep the connection alive; they carry no data.
	if strings.HasPrefix(line, ":") {
		return nil
	}
	if !strings.HasPrefix(line, "data: ") {
		return nil
	}
	payload := strings.TrimPrefix(line, "data: ")
	if strings.TrimSpace(payload) == streamDonePayload {
		r.done = true
		return nil
	}
	if r.done {
		return nil
	}

	var frame openai.ChatCompletionStreamResponse
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		// One malformed frame must not abort delivery of the rest.
		return nil
	}
	if len(frame.Choices) == 0 {
		return nil
	}
	delta := frame.Choices[0].Delta

	if delta.Content != "" {
		r.content.WriteString(delta.Content)
		if err := r.emit(delta.Content); err != nil {
			return err
		}
	}
	for _, tc := range delta.ToolCalls {
		r.calls.merge(tc)
	}
	return nil
}

// Content returns the full accumulated assistant text.
func (r *streamRelay) Content() string {
	return r.content.String()
}

// ToolCalls returns the merged tool calls in ascending fragment-index order.
func (r *streamRelay) ToolCalls() []domain.ToolCall {
	return r.calls.finalize()
}

// toolCallAccumulator merges streamed tool-call fragments. The upstream
// protocol keys fragments by index: the ID and name arrive on the first
// fragment for an index, and argument text arrives as raw JSON pieces that
// are concatenated verbatim. Fragments for different indexes may interleave;
// index identity, not arrival order, decides which call a fragment extends.
type toolCallAccumulator struct {
	byIndex map[int]*domain.ToolCall
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{byIndex: make(map[int]*domain.ToolCall)}
}

func (a *toolCallAccumulator) merge(tc openai.ToolCall) {
	index := 0
	if tc.Index != nil {
		index = *tc.Index
	}
	call, ok := a.byIndex[index]
	if !ok {
		call = &domain.ToolCall{}
		a.byIndex[index] = call
	}
	if tc.ID != "" {
		call.ID = tc.ID
	}
	if tc.Function.Name != "" {
		call.Name = tc.Function.Name
	}
	call.Arguments += tc.Function.Arguments
}

func (a *toolCallAccumulator) finalize() []domain.ToolCall {
	if len(a.byIndex) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(a.byIndex))
	for index := range a.byIndex {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	calls := make([]domain.ToolCall, 0, len(indexes))
	for _, index := range indexes {
		call := a.byIndex[index]
		// Fragments that never produced an identified call are dropped.
		if call.ID == "" || call.Name == "" {
			continue
		}
		calls = append(calls, *call)
	}
	return calls
}
