// Package hub implements the per-connection Message Router / Protocol
// Engine and the Hub supervisor that owns the four shared tables
// (presence, rooms, push subscriptions, rate limiters) behind one coarse
// mutex.
package hub

import "github.com/Preon1/lrcom/internal/v1/turn"

// envelope is the minimal shape every inbound frame must satisfy before
// dispatch: a JSON object with a string "type".
type envelope struct {
	Type string `json:"type"`
}

// Inbound frame payloads, client → hub.

type setNameFrame struct {
	Name string `json:"name"`
}

type callStartFrame struct {
	To string `json:"to"`
}

type callAcceptFrame struct {
	From   string `json:"from"`
	RoomID string `json:"roomId"`
}

type callRejectFrame struct {
	From   string `json:"from"`
	RoomID string `json:"roomId,omitempty"`
}

type signalFrame struct {
	To      string `json:"to"`
	Payload any    `json:"payload"`
}

type chatSendFrame struct {
	Text string `json:"text"`
}

type pushSubscribeFrame struct {
	Subscription any `json:"subscription"`
}

// Outbound frame payloads, hub → client. Each is sent through
// Channel.Send as a value carrying its own "type" field so the
// client-side JSON has a flat discriminated shape.

type helloFrame struct {
	Type        string          `json:"type"`
	ID          string          `json:"id"`
	Turn        turn.IceConfig  `json:"turn"`
	HTTPS       bool            `json:"https"`
	ClientIP    string          `json:"clientIp"`
	TurnWarning string          `json:"turnWarning,omitempty"`
	Voice       turn.VoiceStats `json:"voice"`
}

type nameResultFrame struct {
	Type   string `json:"type"`
	OK     bool   `json:"ok"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type presenceUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Busy bool   `json:"busy"`
}

type presenceFrame struct {
	Type  string          `json:"type"`
	Users []presenceUser  `json:"users"`
	Voice turn.VoiceStats `json:"voice"`
}

type chatFrame struct {
	Type     string `json:"type"`
	AtISO    string `json:"atIso"`
	From     string `json:"from"`
	FromName string `json:"fromName"`
	To       string `json:"to,omitempty"`
	ToName   string `json:"toName,omitempty"`
	Text     string `json:"text"`
	Private  bool   `json:"private"`
}

type incomingCallFrame struct {
	Type     string `json:"type"`
	From     string `json:"from"`
	FromName string `json:"fromName"`
	RoomID   string `json:"roomId"`
}

type callStartResultFrame struct {
	Type   string `json:"type"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

type callRejectedFrame struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type callEndedFrame struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type roomPeer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type roomPeersFrame struct {
	Type   string     `json:"type"`
	RoomID string     `json:"roomId"`
	Peers  []roomPeer `json:"peers"`
}

type roomPeerJoinedFrame struct {
	Type   string   `json:"type"`
	RoomID string   `json:"roomId"`
	Peer   roomPeer `json:"peer"`
}

type roomPeerLeftFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	PeerID string `json:"peerId"`
}

type signalOutFrame struct {
	Type     string `json:"type"`
	From     string `json:"from"`
	FromName string `json:"fromName"`
	Payload  any    `json:"payload"`
}

// errorFrame carries one of the fixed error codes below.
type errorFrame struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

// Error codes sent in errorFrame.Code.
const (
	ErrRateLimit   = "RATE_LIMIT"
	ErrBadJSON     = "BAD_JSON"
	ErrBadMessage  = "BAD_MESSAGE"
	ErrNoName      = "NO_NAME"
	ErrBadChat     = "BAD_CHAT"
	ErrPMNotFound  = "PM_NOT_FOUND"
	ErrPMSelf      = "PM_SELF"
	ErrUnknownType = "UNKNOWN_TYPE"
)

// Reasons carried by callEnded and callRejected.
const (
	ReasonAlone    = "alone"
	ReasonRejected = "rejected"
)

func errFrame(code string) errorFrame { return errorFrame{Type: "error", Code: code} }
