package predictor

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const responseSchema = `{
  "type": "object",
  "required": ["size", "pdi"],
  "properties": {
    "size": {"type": "number"},
    "pdi": {"type": "number"}
  }
}`

var responseLoader = gojsonschema.NewStringLoader(responseSchema)

const maxOutputEcho = 256

// decodeResponse parses the last non-empty line of the routine's stdout.
// An "error" member yields a ModelError regardless of the other members.
func decodeResponse(stdout []byte) (Result, error) {
	line := lastLine(stdout)
	if line == "" {
		return Result{}, &ParseError{Reason: "empty output"}
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &members); err != nil {
		return Result{}, &ParseError{Output: truncate(line), Reason: "not a json object"}
	}
	if raw, ok := members["error"]; ok {
		return Result{}, &ModelError{Message: errorMessage(raw)}
	}

	res, err := gojsonschema.Validate(responseLoader, gojsonschema.NewStringLoader(line))
	if err != nil {
		return Result{}, &ParseError{Output: truncate(line), Reason: err.Error()}
	}
	if !res.Valid() {
		reasons := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			reasons = append(reasons, e.String())
		}
		return Result{}, &ParseError{Output: truncate(line), Reason: strings.Join(reasons, "; ")}
	}

	var out Result
	if err := json.Unmarshal(members["size"], &out.Size); err != nil {
		return Result{}, &ParseError{Output: truncate(line), Reason: "size: " + err.Error()}
	}
	if err := json.Unmarshal(members["pdi"], &out.PdI); err != nil {
		return Result{}, &ParseError{Output: truncate(line), Reason: "pdi: " + err.Error()}
	}
	out.SizeConfidence = confidence(members["sizeConfidence"])
	out.PdIConfidence = confidence(members["pdiConfidence"])
	return out, nil
}

// confidence returns nil for anything that is not a finite JSON number, such as null or "-".
func confidence(raw json.RawMessage) *float64 {
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil || v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}

func errorMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func lastLine(b []byte) string {
	lines := bytes.Split(bytes.TrimSpace(b), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(string(lines[i])); l != "" {
			return l
		}
	}
	return ""
}

func truncate(s string) string {
	if len(s) <= maxOutputEcho {
		return s
	}
	return s[:maxOutputEcho] + "..."
}
