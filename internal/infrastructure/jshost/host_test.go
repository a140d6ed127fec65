package jshost

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/browserbridge/internal/app/messaging"
	"github.com/bnema/browserbridge/internal/application/port"
)

// taskQueue stands in for the main loop. Tasks may be posted from any
// goroutine and run only when the test pumps.
type taskQueue struct {
	mu    sync.Mutex
	tasks []func()
}

func (q *taskQueue) post(fn func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
}

func (q *taskQueue) next() func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil
	}
	fn := q.tasks[0]
	q.tasks = q.tasks[1:]
	return fn
}

// pump runs tasks until the queue is empty.
func (q *taskQueue) pump() {
	for fn := q.next(); fn != nil; fn = q.next() {
		fn()
	}
}

func (q *taskQueue) pumpUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		q.pump()
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

type message struct {
	channel string
	payload string
}

type eventRecorder struct {
	messages []message
	loads    []port.LoadEvent
}

func (r *eventRecorder) OnScriptMessage(channel, payload string) {
	r.messages = append(r.messages, message{channel, payload})
}

func (r *eventRecorder) OnLoadChanged(event port.LoadEvent) {
	r.loads = append(r.loads, event)
}

func (r *eventRecorder) lastLoad() port.LoadEvent {
	if len(r.loads) == 0 {
		return -1
	}
	return r.loads[len(r.loads)-1]
}

func newTestHost(t *testing.T, opts Options) (*Host, *taskQueue, *eventRecorder) {
	t.Helper()
	q := &taskQueue{}
	opts.Post = q.post
	h, err := New(context.Background(), opts)
	require.NoError(t, err)
	rec := &eventRecorder{}
	require.NoError(t, h.Subscribe(rec))
	t.Cleanup(h.Close)
	return h, q, rec
}

func eval(t *testing.T, h *Host, q *taskQueue, code string) port.ScriptResult {
	t.Helper()
	var (
		res  port.ScriptResult
		done bool
	)
	h.ExecuteScript(context.Background(), code, func(r port.ScriptResult) {
		res = r
		done = true
	})
	q.pump()
	require.True(t, done, "script callback did not run")
	return res
}

func TestHost_LoadContentLifecycle(t *testing.T) {
	h, q, rec := newTestHost(t, Options{})
	require.NoError(t, h.AddChannel("phpApp"))

	page := `<html><head><title>Demo</title></head><body>
<script>window.webkit.messageHandlers.phpApp.postMessage("Hello from JavaScript!")</script>
</body></html>`
	require.NoError(t, h.LoadContent(context.Background(), page, ""))

	assert.Equal(t, []port.LoadEvent{port.LoadStarted}, rec.loads)
	assert.True(t, h.IsLoading())

	q.pump()

	assert.Equal(t, []port.LoadEvent{port.LoadStarted, port.LoadCommitted, port.LoadFinished}, rec.loads)
	assert.Equal(t, []message{{"phpApp", "Hello from JavaScript!"}}, rec.messages)
	assert.Equal(t, "Demo", h.Title())
	assert.Equal(t, blankURI, h.URI())
	assert.False(t, h.IsLoading())
}

func TestHost_PostMessageEncoding(t *testing.T) {
	h, q, rec := newTestHost(t, Options{})
	require.NoError(t, h.AddChannel("app"))

	eval(t, h, q, `
		window.cef.messageHandlers.app.postMessage({action: "greet", items: [1, 2]});
		window.webkit.messageHandlers.app.postMessage(42);
		window.webkit.messageHandlers.app.postMessage();
		window.webkit.messageHandlers.app.postMessage("");
	`)
	q.pump()

	assert.Equal(t, []message{
		{"app", `{"action":"greet","items":[1,2]}`},
		{"app", "42"},
		{"app", ""},
		{"app", ""},
	}, rec.messages)
}

func TestHost_MessagesArriveOnLaterTask(t *testing.T) {
	h, q, rec := newTestHost(t, Options{})
	require.NoError(t, h.AddChannel("app"))

	var seenDuringScript int
	h.ExecuteScript(context.Background(), `window.webkit.messageHandlers.app.postMessage("x")`,
		func(port.ScriptResult) { seenDuringScript = len(rec.messages) })
	q.pump()

	assert.Equal(t, 0, seenDuringScript)
	assert.Len(t, rec.messages, 1)
}

func TestHost_ChannelsSurviveNavigation(t *testing.T) {
	h, q, _ := newTestHost(t, Options{})
	require.NoError(t, h.AddChannel("app"))

	require.NoError(t, h.LoadContent(context.Background(), "<p>one</p>", ""))
	q.pump()
	require.NoError(t, h.LoadContent(context.Background(), "<p>two</p>", ""))
	q.pump()

	res := eval(t, h, q, `typeof window.webkit.messageHandlers.app.postMessage`)
	assert.Equal(t, "function", res.Value)

	h.RemoveChannel("app")
	res = eval(t, h, q, `typeof window.webkit.messageHandlers.app`)
	assert.Equal(t, "undefined", res.Value)
	assert.Empty(t, h.Channels())
}

func TestHost_ExecuteScriptResults(t *testing.T) {
	h, q, _ := newTestHost(t, Options{})

	called := false
	h.ExecuteScript(context.Background(), "1+1", func(port.ScriptResult) { called = true })
	assert.False(t, called, "ExecuteScript must not run synchronously")
	q.pump()
	assert.True(t, called)

	res := eval(t, h, q, "1+1")
	require.True(t, res.OK())
	assert.EqualValues(t, 2, res.Value)
	assert.Equal(t, "2", res.JSON)

	res = eval(t, h, q, "({a: [1, 2], b: 'x'})")
	assert.JSONEq(t, `{"a":[1,2],"b":"x"}`, res.JSON)

	res = eval(t, h, q, "undefined")
	assert.True(t, res.OK())
	assert.Nil(t, res.Value)
	assert.Empty(t, res.JSON)

	res = eval(t, h, q, "throw new Error('boom')")
	var scriptErr *port.ScriptError
	require.ErrorAs(t, res.Err, &scriptErr)
	assert.Contains(t, scriptErr.Message, "boom")

	res = eval(t, h, q, "nope()")
	require.ErrorAs(t, res.Err, &scriptErr)
	assert.Contains(t, scriptErr.Message, "ReferenceError")

	res = eval(t, h, q, "syntax error here(")
	assert.Error(t, res.Err)
}

func TestHost_ScriptTimeout(t *testing.T) {
	h, q, _ := newTestHost(t, Options{ScriptTimeout: 50 * time.Millisecond})

	res := eval(t, h, q, "while (true) {}")
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, ErrScriptTimeout)

	res = eval(t, h, q, "'still alive'")
	require.NoError(t, res.Err)
	assert.Equal(t, "still alive", res.Value)
}

func TestHost_Timers(t *testing.T) {
	h, q, rec := newTestHost(t, Options{})
	require.NoError(t, h.AddChannel("app"))

	eval(t, h, q, `
		var post = function(m) { window.webkit.messageHandlers.app.postMessage(m); };
		var cancelled = setTimeout(post, 1, "cancelled");
		clearTimeout(cancelled);
		setTimeout(post, 5, "fired");
	`)

	q.pumpUntil(t, func() bool { return len(rec.messages) > 0 })
	time.Sleep(20 * time.Millisecond)
	q.pump()

	assert.Equal(t, []message{{"app", "fired"}}, rec.messages)
}

func TestHost_TimersStopOnNavigation(t *testing.T) {
	h, q, rec := newTestHost(t, Options{})
	require.NoError(t, h.AddChannel("app"))

	eval(t, h, q, `setTimeout(function() { window.webkit.messageHandlers.app.postMessage("late"); }, 20)`)
	require.NoError(t, h.LoadContent(context.Background(), "<p>next</p>", ""))
	q.pump()

	time.Sleep(40 * time.Millisecond)
	q.pump()
	assert.Empty(t, rec.messages)
}

func TestHost_StaleMessagesDropped(t *testing.T) {
	h, q, rec := newTestHost(t, Options{})
	require.NoError(t, h.AddChannel("app"))

	h.ExecuteScript(context.Background(), `window.webkit.messageHandlers.app.postMessage("old page")`, nil)
	require.NoError(t, h.LoadContent(context.Background(), "<p>new</p>", ""))
	q.pump()

	assert.Empty(t, rec.messages)
}

func TestHost_ScriptForReplacedDocument(t *testing.T) {
	h, q, rec := newTestHost(t, Options{})
	require.NoError(t, h.AddChannel("app"))

	// The load commits before the script task runs.
	require.NoError(t, h.LoadContent(context.Background(), "<title>New</title>", ""))
	var (
		res  port.ScriptResult
		done bool
	)
	h.ExecuteScript(context.Background(), `window.webkit.messageHandlers.app.postMessage("old page")`, func(r port.ScriptResult) {
		res = r
		done = true
	})
	q.pump()

	require.True(t, done)
	assert.ErrorIs(t, res.Err, ErrDocumentReplaced)
	assert.Empty(t, rec.messages)

	res = eval(t, h, q, "document.title")
	require.True(t, res.OK())
	assert.Equal(t, `"New"`, res.JSON)
}

func TestHost_Console(t *testing.T) {
	var lines []string
	h, q, _ := newTestHost(t, Options{Console: func(level, msg string) {
		lines = append(lines, level+": "+msg)
	}})

	eval(t, h, q, `console.log("n =", 3, {a: 1}); console.error("bad"); alert("hey")`)

	assert.Equal(t, []string{`log: n = 3 {"a":1}`, "error: bad", "alert: hey"}, lines)
}

func TestHost_DOM(t *testing.T) {
	h, q, _ := newTestHost(t, Options{})

	page := `<html><head><title> Bridge Demo </title></head><body>
<p id="status">idle</p><ul><li>a</li><li>b</li></ul>
<script>
document.getElementById("status").textContent = "Loaded: " + document.title;
document.body.style.backgroundColor = "lightblue";
</script>
</body></html>`
	require.NoError(t, h.LoadContent(context.Background(), page, "https://app.local/"))
	q.pump()

	assert.Equal(t, "Bridge Demo", h.Title())

	res := eval(t, h, q, `document.getElementById("status").textContent`)
	assert.Equal(t, "Loaded: Bridge Demo", res.Value)

	res = eval(t, h, q, `document.getElementsByTagName("li").length`)
	assert.EqualValues(t, 2, res.Value)

	res = eval(t, h, q, `document.getElementById("missing") === null`)
	assert.Equal(t, true, res.Value)

	res = eval(t, h, q, `document.querySelector("#status") === document.getElementById("status")`)
	assert.Equal(t, true, res.Value)

	res = eval(t, h, q, `var ul = document.querySelector("ul"); ul.innerHTML = "<li>only</li>"; ul.innerHTML`)
	assert.Equal(t, "<li>only</li>", res.Value)

	res = eval(t, h, q, `document.title = "Renamed"; location.href + " " + document.readyState`)
	assert.Equal(t, "https://app.local/ complete", res.Value)
	assert.Equal(t, "Renamed", h.Title())
}

func TestHost_NavigateDataAndFileURIs(t *testing.T) {
	h, q, rec := newTestHost(t, Options{})

	require.NoError(t, h.Navigate(context.Background(), "data:text/html,%3Ctitle%3EPlain%3C%2Ftitle%3E"))
	q.pump()
	assert.Equal(t, "Plain", h.Title())

	encoded := base64.StdEncoding.EncodeToString([]byte("<title>Encoded</title>"))
	require.NoError(t, h.Navigate(context.Background(), "data:text/html;base64,"+encoded))
	q.pump()
	assert.Equal(t, "Encoded", h.Title())

	path := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(path, []byte("<title>From Disk</title>"), 0o600))
	require.NoError(t, h.Navigate(context.Background(), "file://"+path))
	q.pumpUntil(t, func() bool { return rec.lastLoad() == port.LoadFinished && h.Title() == "From Disk" })
	assert.Equal(t, "file://"+path, h.URI())

	require.NoError(t, h.Navigate(context.Background(), "file:///does/not/exist.html"))
	q.pumpUntil(t, func() bool { return rec.lastLoad() == port.LoadFailed })
	assert.Equal(t, "From Disk", h.Title(), "failed load keeps the previous document")
}

func TestHost_NavigateRejects(t *testing.T) {
	h, _, _ := newTestHost(t, Options{})

	assert.ErrorIs(t, h.Navigate(context.Background(), "ftp://example.com"), ErrUnsupportedScheme)
	assert.ErrorIs(t, h.Navigate(context.Background(), "about:config"), ErrUnsupportedScheme)
	assert.ErrorIs(t, h.Navigate(context.Background(), "https://example.com"), ErrRemoteDisabled)
	assert.Error(t, h.Navigate(context.Background(), "data:text/html"))

	h.Close()
	assert.ErrorIs(t, h.Navigate(context.Background(), blankURI), port.ErrHostClosed)
	assert.ErrorIs(t, h.AddChannel("app"), port.ErrHostClosed)
}

func TestHost_RemoteDocuments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page", http.StatusFound)
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<title>Remote</title>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	h, q, rec := newTestHost(t, Options{AllowRemote: true, HTTPClient: srv.Client()})

	require.NoError(t, h.Navigate(context.Background(), srv.URL+"/start"))
	q.pumpUntil(t, func() bool { return rec.lastLoad() == port.LoadFinished })

	assert.Equal(t, []port.LoadEvent{
		port.LoadStarted, port.LoadRedirected, port.LoadCommitted, port.LoadFinished,
	}, rec.loads)
	assert.Equal(t, srv.URL+"/page", h.URI())
	assert.Equal(t, "Remote", h.Title())

	require.NoError(t, h.Navigate(context.Background(), srv.URL+"/missing"))
	q.pumpUntil(t, func() bool { return rec.lastLoad() == port.LoadFailed })
	assert.Equal(t, "Remote", h.Title())
}

func dataPage(title string) string {
	return "data:text/html,%3Ctitle%3E" + title + "%3C%2Ftitle%3E"
}

func TestHost_History(t *testing.T) {
	h, q, _ := newTestHost(t, Options{})
	ctx := context.Background()

	for _, title := range []string{"A", "B", "C"} {
		require.NoError(t, h.Navigate(ctx, dataPage(title)))
		q.pump()
	}

	state := h.State()
	assert.True(t, state.CanGoBack)
	assert.False(t, state.CanGoFwd)

	require.NoError(t, h.GoBack(ctx))
	q.pump()
	assert.Equal(t, "B", h.Title())

	require.NoError(t, h.GoBack(ctx))
	q.pump()
	assert.Equal(t, "A", h.Title())
	assert.ErrorIs(t, h.GoBack(ctx), ErrNoHistory)

	require.NoError(t, h.GoForward(ctx))
	q.pump()
	assert.Equal(t, "B", h.Title())

	require.NoError(t, h.Navigate(ctx, dataPage("D")))
	q.pump()
	assert.False(t, h.State().CanGoFwd, "navigating drops forward entries")
	assert.ErrorIs(t, h.GoForward(ctx), ErrNoHistory)

	require.NoError(t, h.GoBack(ctx))
	q.pump()
	assert.Equal(t, "B", h.Title())
}

func TestHost_ReloadAndStop(t *testing.T) {
	h, q, rec := newTestHost(t, Options{})
	ctx := context.Background()
	require.NoError(t, h.AddChannel("app"))

	page := `<script>window.webkit.messageHandlers.app.postMessage("loaded")</script>`
	require.NoError(t, h.LoadContent(ctx, page, ""))
	q.pump()
	require.NoError(t, h.Reload(ctx))
	q.pump()
	assert.Len(t, rec.messages, 2)

	require.NoError(t, h.Navigate(ctx, dataPage("Next")))
	require.NoError(t, h.Stop(ctx))
	assert.Equal(t, port.LoadFailed, rec.lastLoad())
	q.pump()

	assert.False(t, h.IsLoading())
	assert.Equal(t, blankURI, h.URI())
	assert.Equal(t, port.LoadFailed, rec.lastLoad())

	// The surviving document still delivers messages.
	eval(t, h, q, `window.webkit.messageHandlers.app.postMessage("after stop")`)
	q.pump()
	assert.Equal(t, "after stop", rec.messages[len(rec.messages)-1].payload)
}

func TestHost_ZoomAndDataFolder(t *testing.T) {
	h, _, _ := newTestHost(t, Options{})

	assert.Equal(t, 1.0, h.State().ZoomLevel)
	require.NoError(t, h.SetZoomLevel(context.Background(), 1.5))
	assert.Equal(t, 1.5, h.State().ZoomLevel)
	assert.ErrorIs(t, h.SetZoomLevel(context.Background(), 0), ErrInvalidZoom)

	require.NoError(t, h.SetDataFolder("/tmp/bridge"))
	assert.Equal(t, "/tmp/bridge", h.DataFolder())
}

func TestHost_SubscribeOnce(t *testing.T) {
	h, _, _ := newTestHost(t, Options{})
	assert.ErrorIs(t, h.Subscribe(&eventRecorder{}), port.ErrAlreadySubscribed)
}

func TestHost_WithBridge(t *testing.T) {
	q := &taskQueue{}
	h, err := New(context.Background(), Options{Post: q.post})
	require.NoError(t, err)
	t.Cleanup(h.Close)

	b, err := messaging.NewBridge(context.Background(), h, messaging.WithDataFolder(t.TempDir()))
	require.NoError(t, err)
	assert.NotEmpty(t, h.DataFolder())

	var got []string
	require.NoError(t, b.RegisterHandlerFunc("phpApp", func(_ context.Context, p messaging.Payload) error {
		got = append(got, p.String())
		return nil
	}))

	page := `<button id="b">send</button>
<script>window.webkit.messageHandlers.phpApp.postMessage("hello")</script>`
	require.NoError(t, b.LoadHTML(page, ""))
	assert.False(t, b.IsReady())
	q.pump()

	assert.True(t, b.IsReady())
	assert.Equal(t, []string{"hello"}, got)

	var res port.ScriptResult
	b.RunScriptWithResult("1+1", func(r port.ScriptResult) { res = r })
	q.pump()
	require.True(t, res.OK())
	assert.Equal(t, "2", res.JSON)

	b.RunScript(`window.webkit.messageHandlers.phpApp.postMessage(JSON.stringify({n: 1}))`)
	q.pump()
	assert.Equal(t, []string{"hello", `{"n":1}`}, got)
}
