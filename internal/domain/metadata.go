package domain

import "encoding/json"

// Metadata is the structured payload participants publish about themselves.
// Unknown keys are preserved by the server but ignored here.
type Metadata struct {
	Username string `json:"username"`
}

// EncodeUsernameMetadata builds the metadata document announcing a display name.
func EncodeUsernameMetadata(username string) (string, error) {
	b, err := json.Marshal(Metadata{Username: username})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UsernameFromMetadata extracts the "username" field from a metadata document.
// Empty, malformed or non-string values report ok=false.
func UsernameFromMetadata(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", false
	}
	field, ok := doc["username"]
	if !ok {
		return "", false
	}
	var username string
	if err := json.Unmarshal(field, &username); err != nil {
		return "", false
	}
	return username, true
}
