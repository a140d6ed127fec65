package jshost

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grafana/sobek"
	"golang.org/x/net/html"

	"github.com/bnema/browserbridge/internal/application/port"
)

const (
	blankURI         = "about:blank"
	minIntervalDelay = 10 * time.Millisecond
)

// bootstrapJS installs window/self and the messageHandlers objects. post is
// captured in the closure so page script cannot reach the raw binding.
const bootstrapJS = `(function(g, post) {
	g.window = g;
	g.self = g;
	var handlers = {};
	g.webkit = { messageHandlers: handlers };
	g.cef = { messageHandlers: handlers };
	function encode(data) {
		if (typeof data === "string") return data;
		if (data === undefined) return "";
		return JSON.stringify(data);
	}
	return {
		install: function(name) {
			handlers[name] = { postMessage: function(data) { post(name, encode(data)); } };
		},
		remove: function(name) { delete handlers[name]; }
	};
})`

// document is one loaded page: a sobek runtime plus its parsed element tree.
type document struct {
	host *Host
	gen  uint64
	uri  string

	rt        *sobek.Runtime
	root      *html.Node
	titleText string
	docObj    *sobek.Object

	stringify sobek.Callable
	install   sobek.Callable
	remove    sobek.Callable

	timers      map[int64]*time.Timer
	nextTimerID int64
	elements    map[*html.Node]*sobek.Object
	disposed    bool

	interruptMu sync.Mutex
	running     bool
}

func (h *Host) newDocument(uri string, gen uint64, root *html.Node) (*document, error) {
	if root == nil {
		var err error
		root, err = html.Parse(strings.NewReader(""))
		if err != nil {
			return nil, fmt.Errorf("parse blank document: %w", err)
		}
	}

	d := &document{
		host:     h,
		gen:      gen,
		uri:      uri,
		rt:       sobek.New(),
		root:     root,
		timers:   make(map[int64]*time.Timer),
		elements: make(map[*html.Node]*sobek.Object),
	}
	d.titleText = strings.TrimSpace(textContent(findFirst(root, "title")))

	if err := d.bootstrap(); err != nil {
		return nil, err
	}
	for name := range h.channels {
		if err := d.installChannel(name); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *document) bootstrap() error {
	rt := d.rt

	jsonObj := rt.Get("JSON").ToObject(rt)
	stringify, ok := sobek.AssertFunction(jsonObj.Get("stringify"))
	if !ok {
		return errors.New("jshost: JSON.stringify unavailable")
	}
	d.stringify = stringify

	fnVal, err := rt.RunString(bootstrapJS)
	if err != nil {
		return fmt.Errorf("jshost: bootstrap: %w", err)
	}
	fn, ok := sobek.AssertFunction(fnVal)
	if !ok {
		return errors.New("jshost: bootstrap did not return a function")
	}

	post := func(call sobek.FunctionCall) sobek.Value {
		d.host.postMessage(d.gen, call.Argument(0).String(), call.Argument(1).String())
		return sobek.Undefined()
	}
	api, err := fn(sobek.Undefined(), rt.GlobalObject(), rt.ToValue(post))
	if err != nil {
		return fmt.Errorf("jshost: bootstrap: %w", err)
	}
	apiObj := api.ToObject(rt)
	d.install, _ = sobek.AssertFunction(apiObj.Get("install"))
	d.remove, _ = sobek.AssertFunction(apiObj.Get("remove"))
	if d.install == nil || d.remove == nil {
		return errors.New("jshost: bootstrap returned an incomplete api")
	}

	d.installConsole()
	d.installTimers()
	d.installDocument()
	return nil
}

func (d *document) installChannel(name string) error {
	if _, err := d.install(sobek.Undefined(), d.rt.ToValue(name)); err != nil {
		return fmt.Errorf("jshost: install channel %q: %w", name, err)
	}
	return nil
}

func (d *document) removeChannel(name string) {
	_, _ = d.remove(sobek.Undefined(), d.rt.ToValue(name))
}

func (d *document) installConsole() {
	rt := d.rt
	console := rt.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		lvl := level
		_ = console.Set(lvl, func(call sobek.FunctionCall) sobek.Value {
			d.host.consoleOut(lvl, d.formatArgs(call.Arguments))
			return sobek.Undefined()
		})
	}
	_ = rt.Set("console", console)
	_ = rt.Set("alert", func(call sobek.FunctionCall) sobek.Value {
		d.host.consoleOut("alert", call.Argument(0).String())
		return sobek.Undefined()
	})
}

func (d *document) formatArgs(args []sobek.Value) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if obj, ok := arg.(*sobek.Object); ok {
			if _, isFn := sobek.AssertFunction(obj); !isFn {
				if js, ok := d.toJSON(arg); ok {
					parts = append(parts, js)
					continue
				}
			}
		}
		parts = append(parts, arg.String())
	}
	return strings.Join(parts, " ")
}

func (d *document) installTimers() {
	rt := d.rt
	_ = rt.Set("setTimeout", func(call sobek.FunctionCall) sobek.Value {
		return d.schedule(call, false)
	})
	_ = rt.Set("setInterval", func(call sobek.FunctionCall) sobek.Value {
		return d.schedule(call, true)
	})
	clear := func(call sobek.FunctionCall) sobek.Value {
		id := call.Argument(0).ToInteger()
		if t, ok := d.timers[id]; ok {
			t.Stop()
			delete(d.timers, id)
		}
		return sobek.Undefined()
	}
	_ = rt.Set("clearTimeout", clear)
	_ = rt.Set("clearInterval", clear)
}

func (d *document) schedule(call sobek.FunctionCall, repeat bool) sobek.Value {
	fn, ok := sobek.AssertFunction(call.Argument(0))
	if !ok {
		panic(d.rt.NewTypeError("timer callback must be a function"))
	}
	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	if repeat && delay < minIntervalDelay {
		delay = minIntervalDelay
	}
	var args []sobek.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}

	d.nextTimerID++
	id := d.nextTimerID
	d.arm(id, fn, args, delay, repeat)
	return d.rt.ToValue(id)
}

func (d *document) arm(id int64, fn sobek.Callable, args []sobek.Value, delay time.Duration, repeat bool) {
	d.timers[id] = time.AfterFunc(delay, func() {
		d.host.post(func() {
			if d.disposed {
				return
			}
			if _, live := d.timers[id]; !live {
				return
			}
			if repeat {
				d.arm(id, fn, args, delay, repeat)
			} else {
				delete(d.timers, id)
			}
			if _, err := d.guarded(func() (sobek.Value, error) {
				return fn(sobek.Undefined(), args...)
			}); err != nil {
				d.host.consoleOut("error", "uncaught in timer: "+toScriptError(err).Message)
			}
		})
	})
}

// guarded runs fn with the script timeout armed.
func (d *document) guarded(fn func() (sobek.Value, error)) (sobek.Value, error) {
	if d.disposed {
		return nil, port.ErrHostClosed
	}

	var timer *time.Timer
	if limit := d.host.scriptTimeout; limit > 0 {
		d.interruptMu.Lock()
		d.running = true
		d.interruptMu.Unlock()

		rt := d.rt
		timer = time.AfterFunc(limit, func() {
			d.interruptMu.Lock()
			defer d.interruptMu.Unlock()
			if d.running {
				rt.Interrupt(ErrScriptTimeout)
			}
		})
	}

	v, err := fn()

	if timer != nil {
		timer.Stop()
		d.interruptMu.Lock()
		d.running = false
		d.interruptMu.Unlock()
		d.rt.ClearInterrupt()
	}
	return v, err
}

func (d *document) evaluate(code string) port.ScriptResult {
	v, err := d.guarded(func() (sobek.Value, error) {
		return d.rt.RunString(code)
	})
	if err != nil {
		return port.ScriptResult{Err: toScriptError(err)}
	}
	if v == nil || sobek.IsUndefined(v) {
		return port.ScriptResult{}
	}
	res := port.ScriptResult{Value: v.Export()}
	if js, ok := d.toJSON(v); ok {
		res.JSON = js
	}
	return res
}

func (d *document) toJSON(v sobek.Value) (string, bool) {
	out, err := d.stringify(sobek.Undefined(), v)
	if err != nil || out == nil || sobek.IsUndefined(out) {
		return "", false
	}
	return out.String(), true
}

func toScriptError(err error) *port.ScriptError {
	var interrupted *sobek.InterruptedError
	if errors.As(err, &interrupted) {
		se := &port.ScriptError{Message: fmt.Sprintf("interrupted: %v", interrupted.Value())}
		if cause, ok := interrupted.Value().(error); ok {
			se.Cause = cause
		}
		return se
	}

	var exc *sobek.Exception
	if errors.As(err, &exc) {
		msg := exc.Error()
		if v := exc.Value(); v != nil {
			msg = v.String()
		}
		return &port.ScriptError{Message: msg, Cause: err}
	}

	var se *port.ScriptError
	if errors.As(err, &se) {
		return se
	}
	return &port.ScriptError{Message: err.Error(), Cause: err}
}

func (d *document) title() string {
	return d.titleText
}

// dispose stops pending timers. The runtime is dropped with the document.
func (d *document) dispose() {
	d.disposed = true
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
}
