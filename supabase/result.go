package supabase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Result is the single shape every PostgREST and auth response is reduced to
// before any caller looks at it.
type Result struct {
	Rows []map[string]interface{}
	// Err is non-empty when the service reported a failure
	Err string
}

// OK reports whether the response carried no error
func (r Result) OK() bool {
	return r.Err == ""
}

// First returns the first row, if any
func (r Result) First() (map[string]interface{}, bool) {
	if len(r.Rows) == 0 {
		return nil, false
	}
	return r.Rows[0], true
}

// scalarKey holds the value of a response that was a bare JSON scalar
const scalarKey = "value"

// Normalize reduces a raw response to a Result. It accepts a JSON array of
// objects, a single object, an object wrapping rows in "data", a bare scalar
// (as returned by RPCs with scalar results) and an empty body. Non-2xx
// statuses become an error with the service's message when one is present.
func Normalize(status int, body []byte) Result {
	body = bytes.TrimSpace(body)

	if status < 200 || status >= 300 {
		return Result{Err: errorMessage(status, body)}
	}
	if len(body) == 0 {
		return Result{}
	}

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Result{Err: fmt.Sprintf("undecodable response: %v", err)}
	}

	switch v := raw.(type) {
	case nil:
		return Result{}
	case []interface{}:
		return Result{Rows: rowsFrom(v)}
	case map[string]interface{}:
		if data, ok := v["data"]; ok && len(v) <= 2 {
			if msg, ok := v["error"].(string); ok && msg != "" {
				return Result{Err: msg}
			}
			switch d := data.(type) {
			case nil:
				return Result{}
			case []interface{}:
				return Result{Rows: rowsFrom(d)}
			case map[string]interface{}:
				return Result{Rows: []map[string]interface{}{d}}
			default:
				return Result{Rows: []map[string]interface{}{{scalarKey: d}}}
			}
		}
		if msg, ok := errorEnvelope(v); ok {
			return Result{Err: msg}
		}
		return Result{Rows: []map[string]interface{}{v}}
	default:
		return Result{Rows: []map[string]interface{}{{scalarKey: v}}}
	}
}

func rowsFrom(items []interface{}) []map[string]interface{} {
	rows := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		switch it := item.(type) {
		case map[string]interface{}:
			rows = append(rows, it)
		case nil:
		default:
			rows = append(rows, map[string]interface{}{scalarKey: it})
		}
	}
	return rows
}

// errorEnvelope recognises a PostgREST error object delivered with a success
// status, which is how RPC responses arrive once the status is gone.
func errorEnvelope(obj map[string]interface{}) (string, bool) {
	code, hasCode := obj["code"].(string)
	msg, hasMsg := obj["message"].(string)
	if !hasCode || !hasMsg {
		return "", false
	}
	for key := range obj {
		switch key {
		case "code", "message", "details", "hint":
		default:
			return "", false
		}
	}
	return fmt.Sprintf("%s: %s", code, msg), true
}

func errorMessage(status int, body []byte) string {
	var payload map[string]interface{}
	if json.Unmarshal(body, &payload) == nil {
		for _, key := range []string{"message", "msg", "error_description", "error"} {
			if msg, ok := payload[key].(string); ok && msg != "" {
				return fmt.Sprintf("%d: %s", status, msg)
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("%d: %s", status, text)
	}
	return fmt.Sprintf("status %d", status)
}

// boolField reads a boolean column. Only a JSON true counts; anything else,
// including the string "true", is false.
func boolField(row map[string]interface{}, keys ...string) bool {
	for _, key := range keys {
		if v, ok := row[key]; ok {
			b, isBool := v.(bool)
			return isBool && b
		}
	}
	return false
}

func stringField(row map[string]interface{}, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}
