package signal

import "github.com/pion/webrtc/v4"

const (
	TypeOffer     = "offer"
	TypeAnswer    = "answer"
	TypeCandidate = "candidate"
)

// SDP carries an offer or an answer.
type SDP struct {
	SDP string `json:"sdp"`
}

type Candidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

func (c Candidate) Init() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	}
}

func (c *Client) SendOffer(sdp string) error {
	return c.sendJSON(map[string]string{"type": TypeOffer, "sdp": sdp})
}

func (c *Client) SendAnswer(sdp string) error {
	return c.sendJSON(map[string]string{"type": TypeAnswer, "sdp": sdp})
}

func (c *Client) SendCandidate(ci webrtc.ICECandidateInit) error {
	return c.sendJSON(struct {
		Type string `json:"type"`
		Candidate
	}{
		Type: TypeCandidate,
		Candidate: Candidate{
			Candidate:     ci.Candidate,
			SDPMid:        ci.SDPMid,
			SDPMLineIndex: ci.SDPMLineIndex,
		},
	})
}
