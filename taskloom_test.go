package taskloom

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskloom/taskloom/config"
	"github.com/taskloom/taskloom/core"
	"github.com/taskloom/taskloom/model"
	"github.com/taskloom/taskloom/tool"
)

// sequenceModel returns canned response batches in call order, repeating the
// last one when exhausted.
type sequenceModel struct {
	mu     sync.Mutex
	script [][]model.Response
}

func (m *sequenceModel) Generate(_ context.Context, _ model.Request) <-chan model.Response {
	m.mu.Lock()
	var batch []model.Response
	if len(m.script) > 0 {
		batch = m.script[0]
		if len(m.script) > 1 {
			m.script = m.script[1:]
		}
	}
	m.mu.Unlock()

	out := make(chan model.Response, len(batch)+1)
	for _, r := range batch {
		out <- r
	}
	close(out)
	return out
}

func (m *sequenceModel) Info() model.Info {
	return model.Info{Name: "sequence", Provider: "test", SupportsTools: true}
}

func TestChatSyncRoundTrip(t *testing.T) {
	llm := &sequenceModel{script: [][]model.Response{
		{{Content: `{"decision": "RESPOND_DIRECTLY", "reasoning": "greeting"}`, Finish: "stop"}},
		{{Content: "Hello there!", Finish: "stop"}},
	}}

	loom, err := New(func(o *Options) { o.Model = llm })
	require.NoError(t, err)

	answer, err := loom.ChatSync(context.Background(), "chat-1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", answer)
}

func TestChatEmitsOrderedEvents(t *testing.T) {
	llm := &sequenceModel{script: [][]model.Response{
		{{Content: `{"decision": "RESPOND_DIRECTLY", "reasoning": "greeting"}`, Finish: "stop"}},
		{{Content: "Hello there!", Finish: "stop"}},
	}}

	loom, err := New(func(o *Options) { o.Model = llm })
	require.NoError(t, err)

	var last core.EventType
	count := 0
	for ev := range loom.Chat(context.Background(), "chat-1", "hi") {
		last = ev.Type
		count++
	}
	assert.Greater(t, count, 1)
	assert.Equal(t, core.EventFinal, last)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = "carrier-pigeon"

	_, err := New(func(o *Options) { o.Config = cfg })
	require.Error(t, err)
}

func TestNewBuildsFileBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.Backend = "file"
	cfg.Memory.Path = filepath.Join(t.TempDir(), "sessions.json")

	llm := &sequenceModel{script: [][]model.Response{
		{{Content: `{"decision": "RESPOND_DIRECTLY", "reasoning": "ok"}`, Finish: "stop"}},
		{{Content: "saved", Finish: "stop"}},
	}}
	loom, err := New(func(o *Options) {
		o.Config = cfg
		o.Model = llm
	})
	require.NoError(t, err)

	_, err = loom.ChatSync(context.Background(), "chat-1", "remember this")
	require.NoError(t, err)
	require.NoError(t, loom.ClearHistory(context.Background(), "chat-1"))
}

func TestRegisterToolsAndDescribe(t *testing.T) {
	loom, err := New(func(o *Options) {
		o.Model = &sequenceModel{}
		o.Tools = []tool.Tool{tool.NewCurrentTimeTool()}
	})
	require.NoError(t, err)

	require.NoError(t, loom.RegisterTool(tool.NewDatetimeInfoTool()))
	assert.Error(t, loom.RegisterTool(tool.NewCurrentTimeTool()), "duplicate names are rejected")

	defs := loom.Tools()
	require.Len(t, defs, 2)
	assert.Equal(t, "get_current_time", defs[0].Name)
	assert.Equal(t, "get_datetime_info", defs[1].Name)
}
