package signal

import "time"

// Chat is an inbound chat message. From is empty when the server could not
// attribute it.
type Chat struct {
	From string `json:"from,omitempty"`
	Text string `json:"text"`
	// TS is milliseconds since the Unix epoch.
	TS int64 `json:"ts"`
}

func (c Chat) Time() time.Time {
	if c.TS == 0 {
		return time.Now()
	}
	return time.UnixMilli(c.TS)
}

const TypeChat = "chat"

// SendChat sends a chat message to the room, subject to the chat rate limit.
func (c *Client) SendChat(text string) error {
	if c.limiter != nil && !c.limiter.Allow(TypeChat) {
		c.logger.Warn().Msg("chat rate limited")
		return ErrRateLimited
	}
	return c.sendJSON(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{
		Type: TypeChat,
		Text: text,
	})
}

// SendMetadata replaces our participant metadata.
func (c *Client) SendMetadata(metadata string) error {
	return c.sendJSON(struct {
		Type     string `json:"type"`
		Metadata string `json:"metadata"`
	}{
		Type:     "metadata",
		Metadata: metadata,
	})
}
