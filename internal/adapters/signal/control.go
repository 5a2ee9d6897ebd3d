package signal

const (
	TypePong  = "pong"
	TypeError = "error"
)

// ErrorMessage is the server's refusal of a request.
type ErrorMessage struct {
	Error string `json:"error"`
}

// Ping asks the server for an application-level pong.
func (c *Client) Ping() error {
	return c.sendJSON(map[string]string{"type": "ping"})
}
