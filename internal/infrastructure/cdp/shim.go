package cdp

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/go-rod/rod/lib/proto"

	"github.com/bnema/browserbridge/internal/application/port"
)

// bindingName is the page function exposed through Runtime.addBinding.
const bindingName = "__browserbridgePost"

const blankURI = "about:blank"

// shimScript builds the script that defines window.webkit.messageHandlers and
// window.cef.messageHandlers for exactly the given channels. It is idempotent
// so it serves both as the new-document script and as a live update.
func shimScript(channels []string) string {
	names := append([]string(nil), channels...)
	sort.Strings(names)
	list, _ := json.Marshal(names)
	binding, _ := json.Marshal(bindingName)

	return fmt.Sprintf(`(function(names, binding) {
	var handlers = (window.webkit && window.webkit.messageHandlers) || {};
	window.webkit = window.webkit || {};
	window.webkit.messageHandlers = handlers;
	window.cef = window.cef || {};
	window.cef.messageHandlers = handlers;
	function encode(data) {
		if (typeof data === "string") return data;
		if (data === undefined) return "";
		return JSON.stringify(data);
	}
	Object.keys(handlers).forEach(function(name) {
		if (names.indexOf(name) < 0) delete handlers[name];
	});
	names.forEach(function(name) {
		handlers[name] = { postMessage: function(data) {
			window[binding]({ channel: name, payload: encode(data) });
		} };
	});
})(%s, %s);`, list, binding)
}

// contentURL wraps markup in a data: URL so a content load goes through the
// regular navigation events. A non-blank base is applied with a <base> tag.
func contentURL(markup, baseURI string) string {
	if baseURI != "" && baseURI != blankURI {
		markup = `<base href="` + html.EscapeString(baseURI) + `">` + markup
	}
	return "data:text/html;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(markup))
}

// toScriptResult converts a Runtime.evaluate reply.
func toScriptResult(res *proto.RuntimeEvaluateResult, err error) port.ScriptResult {
	if err != nil {
		return port.ScriptResult{Err: &port.ScriptError{Message: err.Error(), Cause: err}}
	}
	if res == nil {
		return port.ScriptResult{}
	}
	if ex := res.ExceptionDetails; ex != nil {
		msg := ex.Text
		if ex.Exception != nil && ex.Exception.Description != "" {
			msg = ex.Exception.Description
		}
		return port.ScriptResult{Err: &port.ScriptError{
			Message: firstLine(msg),
			Line:    ex.LineNumber + 1,
			Column:  ex.ColumnNumber + 1,
		}}
	}

	obj := res.Result
	if obj == nil || obj.Type == proto.RuntimeRemoteObjectTypeUndefined {
		return port.ScriptResult{}
	}
	if obj.Value.Nil() {
		if obj.Subtype == proto.RuntimeRemoteObjectSubtypeNull {
			return port.ScriptResult{JSON: "null"}
		}
		// Non-serializable values (functions, symbols) come back by description.
		return port.ScriptResult{Value: obj.Description}
	}
	return port.ScriptResult{Value: obj.Value.Val(), JSON: obj.Value.JSON("", "")}
}

// firstLine drops the stack trace V8 appends to exception descriptions.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
