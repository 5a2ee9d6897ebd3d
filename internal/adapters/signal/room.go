package signal

// Member is a room participant as the server describes it.
type Member struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Metadata string `json:"metadata,omitempty"`
}

// RoomState answers a join with our identity and everyone already present.
type RoomState struct {
	Room    string   `json:"room"`
	Self    Member   `json:"self"`
	Members []Member `json:"members"`
}

// MemberEvent carries member_joined, member_left and member_updated.
type MemberEvent struct {
	User Member `json:"user"`
}

const (
	TypeRoomState     = "room_state"
	TypeMemberJoined  = "member_joined"
	TypeMemberLeft    = "member_left"
	TypeMemberUpdated = "member_updated"
)

// Join asks to enter room. The reply is a room_state or an error message.
func (c *Client) Join(room, name, token, metadata string) error {
	c.logger.Info().Str("room", room).Str("name", name).Msg("join")
	return c.sendJSON(struct {
		Type     string `json:"type"`
		Room     string `json:"room"`
		Name     string `json:"name,omitempty"`
		Token    string `json:"token,omitempty"`
		Metadata string `json:"metadata,omitempty"`
	}{
		Type:     "join",
		Room:     room,
		Name:     name,
		Token:    token,
		Metadata: metadata,
	})
}

// Leave exits the room; the socket stays open until Close.
func (c *Client) Leave() error {
	c.logger.Info().Msg("leave")
	return c.sendJSON(map[string]string{"type": "leave"})
}
