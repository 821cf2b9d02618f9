package llm

import "encoding/json"

// decodeLooseJSON unmarshals model output that should be a JSON object
// but may be wrapped in prose or code fences. It first tries the raw
// text, then the span between the first '{' and the last '}'.
func decodeLooseJSON(raw string, out any) bool {
	if json.Unmarshal([]byte(raw), out) == nil {
		return true
	}
	first := -1
	last := -1
	for i, r := range raw {
		if r == '{' {
			first = i
			break
		}
	}
	for i := len(raw) - 1; i >= 0; i-- {
		if raw[i] == '}' {
			last = i
			break
		}
	}
	if first >= 0 && last > first {
		return json.Unmarshal([]byte(raw[first:last+1]), out) == nil
	}
	return false
}
