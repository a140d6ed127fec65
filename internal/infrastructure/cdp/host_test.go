package cdp

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/grafana/sobek"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"

	"github.com/bnema/browserbridge/internal/application/port"
)

type posted struct {
	tasks []func()
}

func (p *posted) post(fn func()) { p.tasks = append(p.tasks, fn) }

func (p *posted) run() {
	tasks := p.tasks
	p.tasks = nil
	for _, fn := range tasks {
		fn()
	}
}

func TestShimScript_DefinesHandlers(t *testing.T) {
	rt := sobek.New()
	require.NoError(t, rt.Set("window", rt.GlobalObject()))

	type msg struct{ channel, payload string }
	var got []msg
	require.NoError(t, rt.Set(bindingName, func(call sobek.FunctionCall) sobek.Value {
		obj := call.Argument(0).ToObject(rt)
		got = append(got, msg{obj.Get("channel").String(), obj.Get("payload").String()})
		return sobek.Undefined()
	}))

	_, err := rt.RunString(shimScript([]string{"phpApp", "other"}))
	require.NoError(t, err)

	_, err = rt.RunString(`
		window.webkit.messageHandlers.phpApp.postMessage("Hello from JavaScript!");
		window.cef.messageHandlers.other.postMessage({ok: true});
		window.cef.messageHandlers.other.postMessage();
	`)
	require.NoError(t, err)
	assert.Equal(t, []msg{
		{"phpApp", "Hello from JavaScript!"},
		{"other", `{"ok":true}`},
		{"other", ""},
	}, got)

	// Re-applying with fewer channels withdraws the rest.
	_, err = rt.RunString(shimScript([]string{"phpApp"}))
	require.NoError(t, err)
	v, err := rt.RunString(`typeof window.webkit.messageHandlers.other + "," + typeof window.webkit.messageHandlers.phpApp`)
	require.NoError(t, err)
	assert.Equal(t, "undefined,object", v.String())
}

func TestShimScript_EscapesNames(t *testing.T) {
	script := shimScript([]string{`we"ird`})
	assert.Contains(t, script, `["we\"ird"]`)
}

func TestContentURL(t *testing.T) {
	decode := func(u string) string {
		const prefix = "data:text/html;charset=utf-8;base64,"
		require.True(t, strings.HasPrefix(u, prefix))
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(u, prefix))
		require.NoError(t, err)
		return string(raw)
	}

	assert.Equal(t, "<p>hi</p>", decode(contentURL("<p>hi</p>", "")))
	assert.Equal(t, "<p>hi</p>", decode(contentURL("<p>hi</p>", blankURI)))
	assert.Equal(t, `<base href="https://app.local/?a=1&amp;b=2"><p>hi</p>`,
		decode(contentURL("<p>hi</p>", "https://app.local/?a=1&b=2")))
}

func TestToScriptResult(t *testing.T) {
	t.Run("value", func(t *testing.T) {
		res := toScriptResult(&proto.RuntimeEvaluateResult{
			Result: &proto.RuntimeRemoteObject{Type: proto.RuntimeRemoteObjectTypeNumber, Value: gson.New(2)},
		}, nil)
		require.True(t, res.OK())
		assert.EqualValues(t, 2, res.Value)
		assert.Equal(t, "2", res.JSON)
	})

	t.Run("undefined", func(t *testing.T) {
		res := toScriptResult(&proto.RuntimeEvaluateResult{
			Result: &proto.RuntimeRemoteObject{Type: proto.RuntimeRemoteObjectTypeUndefined},
		}, nil)
		assert.True(t, res.OK())
		assert.Nil(t, res.Value)
		assert.Empty(t, res.JSON)
	})

	t.Run("null", func(t *testing.T) {
		res := toScriptResult(&proto.RuntimeEvaluateResult{
			Result: &proto.RuntimeRemoteObject{
				Type:    proto.RuntimeRemoteObjectTypeObject,
				Subtype: proto.RuntimeRemoteObjectSubtypeNull,
			},
		}, nil)
		assert.True(t, res.OK())
		assert.Equal(t, "null", res.JSON)
	})

	t.Run("exception", func(t *testing.T) {
		res := toScriptResult(&proto.RuntimeEvaluateResult{
			ExceptionDetails: &proto.RuntimeExceptionDetails{
				Text:         "Uncaught",
				LineNumber:   0,
				ColumnNumber: 4,
				Exception: &proto.RuntimeRemoteObject{
					Description: "ReferenceError: nope is not defined\n    at <anonymous>:1:5",
				},
			},
		}, nil)
		var scriptErr *port.ScriptError
		require.ErrorAs(t, res.Err, &scriptErr)
		assert.Equal(t, "ReferenceError: nope is not defined", scriptErr.Message)
		assert.Equal(t, 1, scriptErr.Line)
		assert.Equal(t, 5, scriptErr.Column)
	})

	t.Run("transport error", func(t *testing.T) {
		cause := errors.New("context deadline exceeded")
		res := toScriptResult(nil, cause)
		assert.ErrorIs(t, res.Err, cause)
	})
}

func TestHost_BeforeStart(t *testing.T) {
	p := &posted{}
	h, err := New(context.Background(), Options{Post: p.post})
	require.NoError(t, err)

	require.NoError(t, h.SetDataFolder("/tmp/profile"))
	require.NoError(t, h.AddChannel("app"))
	assert.Equal(t, []string{"app"}, h.Channels())
	h.RemoveChannel("app")
	assert.Empty(t, h.Channels())

	assert.ErrorIs(t, h.Navigate(context.Background(), "https://example.com"), port.ErrNotReady)
	assert.ErrorIs(t, h.LoadContent(context.Background(), "<p></p>", ""), port.ErrNotReady)

	var res port.ScriptResult
	called := false
	h.ExecuteScript(context.Background(), "1+1", func(r port.ScriptResult) {
		res = r
		called = true
	})
	assert.False(t, called, "result must be posted, not delivered inline")
	p.run()
	require.True(t, called)
	assert.ErrorIs(t, res.Err, port.ErrNotReady)

	require.NoError(t, h.Subscribe(nopEvents{}))
	assert.ErrorIs(t, h.Subscribe(nopEvents{}), port.ErrAlreadySubscribed)

	h.Close()
	assert.ErrorIs(t, h.AddChannel("late"), port.ErrHostClosed)
}

type loadRecorder struct {
	nopEvents
	loads []port.LoadEvent
}

func (r *loadRecorder) OnLoadChanged(e port.LoadEvent) { r.loads = append(r.loads, e) }

func TestHost_SubmittingWorkNeverBlocks(t *testing.T) {
	p := &posted{}
	h, err := New(context.Background(), Options{Post: p.post})
	require.NoError(t, err)
	events := &loadRecorder{}
	require.NoError(t, h.Subscribe(events))
	// Started with no worker draining the queue, as when a slow evaluation
	// holds it.
	h.started = true

	const scripts = 500
	var results []port.ScriptResult
	submitted := make(chan error, 1)
	go func() {
		for i := 0; i < scripts; i++ {
			h.ExecuteScript(context.Background(), "1", func(r port.ScriptResult) {
				results = append(results, r)
			})
		}
		submitted <- h.Navigate(context.Background(), "https://example.com")
	}()

	select {
	case err := <-submitted:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("submitting work blocked the caller")
	}
	assert.Equal(t, scripts+1, h.ops.len())

	// A worker whose context already ended aborts the backlog.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.work(ctx)
	assert.Zero(t, h.ops.len())

	p.run()
	require.Len(t, results, scripts)
	for _, res := range results {
		assert.ErrorIs(t, res.Err, ErrBrowserGone)
	}
	assert.Equal(t, []port.LoadEvent{port.LoadFailed}, events.loads)

	// Later work fails fast instead of waiting on a dead worker.
	var late port.ScriptResult
	h.ExecuteScript(context.Background(), "2", func(r port.ScriptResult) { late = r })
	p.run()
	assert.ErrorIs(t, late.Err, ErrBrowserGone)
	assert.ErrorIs(t, h.Navigate(context.Background(), "https://example.com"), ErrBrowserGone)
	assert.ErrorIs(t, h.LoadContent(context.Background(), "<p></p>", ""), ErrBrowserGone)
}

func TestOpQueue(t *testing.T) {
	q := newOpQueue()
	var ran []int
	for i := 0; i < 3; i++ {
		i := i
		require.True(t, q.push(op{run: func(context.Context) { ran = append(ran, i) }}))
	}
	for _, o := range q.drain() {
		o.run(context.Background())
	}
	assert.Equal(t, []int{0, 1, 2}, ran)

	require.True(t, q.push(op{run: func(context.Context) {}}))
	assert.Len(t, q.stop(), 1)
	assert.False(t, q.push(op{run: func(context.Context) {}}))
	assert.Zero(t, q.len())
}

func TestNew_RequiresPost(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.Error(t, err)
}

type nopEvents struct{}

func (nopEvents) OnScriptMessage(string, string) {}
func (nopEvents) OnLoadChanged(port.LoadEvent)   {}
