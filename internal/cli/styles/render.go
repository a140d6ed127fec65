package styles

import (
	"fmt"
	"strings"

	"github.com/bnema/browserbridge/internal/application/port"
)

const keyWidth = 16

// RenderMessage formats a message received on channel.
func (t *Theme) RenderMessage(channel, payload string) string {
	return fmt.Sprintf("%s %s", t.Channel.Render("["+channel+"]"), t.Normal.Render(payload))
}

// RenderConsole formats console output from page script.
func (t *Theme) RenderConsole(level, message string) string {
	tag := t.Subtle.Render("console." + level)
	switch level {
	case "error", "alert":
		return tag + " " + t.ErrorStyle.Render(message)
	case "warn":
		return tag + " " + t.WarningStyle.Render(message)
	default:
		return tag + " " + t.Normal.Render(message)
	}
}

// RenderResult formats the outcome of a script evaluation. Values are shown
// as JSON; undefined results render as "undefined".
func (t *Theme) RenderResult(res port.ScriptResult) string {
	if res.Err != nil {
		return t.RenderError(res.Err)
	}
	if res.JSON == "" {
		return t.Subtle.Render("undefined")
	}
	return t.Highlight.Render(res.JSON)
}

// RenderError formats an error line.
func (t *Theme) RenderError(err error) string {
	return t.ErrorStyle.Render("error: " + err.Error())
}

// RenderKeyValues formats aligned key/value rows in the given order.
func (t *Theme) RenderKeyValues(rows [][2]string) string {
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.Key.Render(row[0]))
		b.WriteString(t.Normal.Render(row[1]))
	}
	return b.String()
}
