package gbis

import (
	"bytes"
	"encoding/json"
	"strings"
)

// The transit API wraps payloads in one of two envelope shapes, depending on
// the service and its mood:
//
//	{"comMsgHeader": {...,"returnCode":"0"}, "msgBody": {"busLocationList": ...}}
//	{"response": {"msgHeader": {"resultCode":0}, "msgBody": {"busLocationList": ...}}}
//
// The item list field inside msgBody is named per endpoint and holds either a
// single object or an array. A missing body, a non-zero result code, or an
// envelope that does not parse at all is "no data", never an error: the
// caller's cycle must not abort because one endpoint returned garbage.

type msgHeader struct {
	ResultCode    json.Number `json:"resultCode"`
	ResultMessage string      `json:"resultMessage"`
}

type comMsgHeader struct {
	ReturnCode json.Number `json:"returnCode"`
	ErrMsg     string      `json:"errMsg"`
}

type envelope struct {
	ComMsgHeader *comMsgHeader              `json:"comMsgHeader"`
	MsgBody      map[string]json.RawMessage `json:"msgBody"`
	Response     *struct {
		MsgHeader *msgHeader                 `json:"msgHeader"`
		MsgBody   map[string]json.RawMessage `json:"msgBody"`
	} `json:"response"`
}

func okResultCode(code json.Number) bool {
	s := code.String()
	return s == "0" || s == "00"
}

// decodeItems unwraps the envelope and unmarshals the item list into dst,
// which must be a pointer to a slice. It returns false when the envelope
// carries no data, leaving dst untouched.
func decodeItems(data []byte, dst interface{}) (bool, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		// Garbled envelope, treat as no data.
		return false, nil
	}

	var body map[string]json.RawMessage
	switch {
	case env.MsgBody != nil:
		if env.ComMsgHeader != nil && !okResultCode(env.ComMsgHeader.ReturnCode) {
			return false, nil
		}
		body = env.MsgBody
	case env.Response != nil && env.Response.MsgBody != nil:
		if env.Response.MsgHeader != nil && !okResultCode(env.Response.MsgHeader.ResultCode) {
			return false, nil
		}
		body = env.Response.MsgBody
	default:
		return false, nil
	}

	items := extractItems(body)
	if items == nil {
		return false, nil
	}

	if err := json.Unmarshal(items, dst); err != nil {
		return false, err
	}
	return true, nil
}

// extractItems locates the item list inside a msgBody and normalizes a
// single-object payload to a one-element JSON array. Preference order:
// a field whose name mentions "list" or "item", then any object or array
// field, matching how loosely the upstream names these.
func extractItems(body map[string]json.RawMessage) json.RawMessage {
	var fallback json.RawMessage

	for key, raw := range body {
		lower := strings.ToLower(key)
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] == '"' {
			// Scalar metadata field such as a version string.
			continue
		}
		if strings.Contains(lower, "list") || strings.Contains(lower, "item") {
			return normalizeToArray(trimmed)
		}
		if fallback == nil && (trimmed[0] == '{' || trimmed[0] == '[') {
			fallback = trimmed
		}
	}

	if fallback != nil {
		return normalizeToArray(fallback)
	}
	return nil
}

func normalizeToArray(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] == '[' {
		return trimmed
	}
	wrapped := make([]byte, 0, len(trimmed)+2)
	wrapped = append(wrapped, '[')
	wrapped = append(wrapped, trimmed...)
	wrapped = append(wrapped, ']')
	return wrapped
}
