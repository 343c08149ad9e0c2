package hub

import (
	"encoding/json"
	"time"

	"github.com/Preon1/lrcom/internal/v1/metrics"
	"github.com/Preon1/lrcom/internal/v1/presence"
	"github.com/Preon1/lrcom/internal/v1/signaling"
)

// dispatch implements the per-frame pipeline: rate limit, JSON parse, then
// the three-state (Anonymous / Named / InCall) dispatch table. It runs
// entirely under the hub's coarse lock except where a push/bus call is
// explicitly deferred past release.
func (h *Hub) dispatch(sessionID string, raw []byte) {
	start := time.Now()
	frameType := "unknown"
	status := "ok"
	defer func() {
		metrics.FramesProcessed.WithLabelValues(frameType, status).Inc()
		metrics.FrameProcessingDuration.WithLabelValues(frameType).Observe(time.Since(start).Seconds())
	}()

	h.mu.Lock()
	defer h.mu.Unlock()

	sess, ok := h.presence.Get(sessionID)
	if !ok {
		status = "dropped"
		return
	}

	sess.LastFrameAt = start.UnixMilli()

	if !sess.Rate.Allow(start) {
		status = "rate_limited"
		metrics.RateLimitExceeded.WithLabelValues("session").Inc()
		sess.Channel.Send(errFrame(ErrRateLimit))
		return
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if json.Valid(raw) {
			// Parsed, but not an object with a string "type".
			status = "bad_message"
			sess.Channel.Send(errFrame(ErrBadMessage))
		} else {
			status = "bad_json"
			sess.Channel.Send(errFrame(ErrBadJSON))
		}
		return
	}
	if env.Type == "" {
		status = "bad_message"
		sess.Channel.Send(errFrame(ErrBadMessage))
		return
	}
	frameType = env.Type

	// Push subscription frames are accepted in any state and never reply.
	switch env.Type {
	case "pushSubscribe":
		h.handlePushSubscribe(sess, raw)
		return
	case "pushUnsubscribe":
		h.push.Unsubscribe(sess.ID)
		return
	}

	if sess.Name == "" {
		if env.Type == "setName" {
			h.handleSetName(sess, raw)
			return
		}
		status = "no_name"
		sess.Channel.Send(errFrame(ErrNoName))
		return
	}

	switch env.Type {
	case "callStart":
		h.handleCallStart(sess, raw)
	case "callAccept":
		h.handleCallAccept(sess, raw)
	case "callReject":
		h.handleCallReject(sess, raw)
	case "callHangup":
		h.handleCallHangup(sess)
	case "signal":
		h.handleSignal(sess, raw)
	case "chatSend":
		h.handleChatSend(sess, raw)
	case "setName":
		h.handleSetName(sess, raw) // re-claiming a name while named; Claim handles rebind
	default:
		status = "unknown_type"
		sess.Channel.Send(errFrame(ErrUnknownType))
	}
}

func (h *Hub) handlePushSubscribe(sess *presence.Session, raw []byte) {
	if h.sink == nil || !h.sink.Enabled() {
		return
	}
	var f pushSubscribeFrame
	if err := json.Unmarshal(raw, &f); err != nil || f.Subscription == nil {
		return
	}
	b, err := json.Marshal(f.Subscription)
	if err != nil {
		return
	}
	h.push.Subscribe(sess.ID, b)
}

func (h *Hub) handleSetName(sess *presence.Session, raw []byte) {
	var f setNameFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		sess.Channel.Send(nameResultFrame{Type: "nameResult", OK: false, Reason: "invalid"})
		return
	}
	name, ok := signaling.ValidateName(f.Name)
	if !ok {
		sess.Channel.Send(nameResultFrame{Type: "nameResult", OK: false, Reason: "invalid"})
		return
	}

	switch h.presence.Claim(sess, name) {
	case presence.ClaimTaken:
		sess.Channel.Send(nameResultFrame{Type: "nameResult", OK: false, Reason: "taken"})
		return
	}

	sess.Channel.Send(nameResultFrame{Type: "nameResult", OK: true, Name: name})
	h.broadcastSystemChat(name + " joined.")
	h.broadcastPresence()
}

func (h *Hub) handleCallStart(sess *presence.Session, raw []byte) {
	var f callStartFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return
	}

	target, ok := h.presence.Get(f.To)
	switch {
	case !ok:
		sess.Channel.Send(callStartResultFrame{Type: "callStartResult", OK: false, Reason: "not_found"})
		return
	case f.To == sess.ID:
		sess.Channel.Send(callStartResultFrame{Type: "callStartResult", OK: false, Reason: "self"})
		return
	case target.Name == "":
		sess.Channel.Send(callStartResultFrame{Type: "callStartResult", OK: false, Reason: "not_ready"})
		return
	case target.RoomID != "":
		sess.Channel.Send(callStartResultFrame{Type: "callStartResult", OK: false, Reason: "busy"})
		return
	}

	roomID := sess.RoomID
	if roomID == "" {
		roomID = signaling.NewID()
	}
	r := h.rooms.Ensure(roomID)
	h.rooms.Join(r, sess.ID)
	h.rooms.Join(r, target.ID)

	incoming := incomingCallFrame{Type: "incomingCall", From: sess.ID, FromName: sess.Name, RoomID: roomID}
	target.Channel.Send(incoming)
	h.notifyPush(target.ID, incoming)
	h.publishBusEvent("incomingCall", incoming, sess.ID, roomID, target.ID)

	sess.Channel.Send(callStartResultFrame{Type: "callStartResult", OK: true})
	h.broadcastPresence()
}

func (h *Hub) handleCallAccept(sess *presence.Session, raw []byte) {
	var f callAcceptFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return
	}

	caller, ok := h.presence.Get(f.From)
	if !ok || caller.RoomID != f.RoomID || sess.RoomID != f.RoomID {
		// Stale or forged accept. Detach through the room registry so
		// membership and the roomId back-pointer stay consistent.
		if sess.RoomID != "" {
			h.leaveCurrentRoom(sess)
		} else {
			h.broadcastPresence()
		}
		return
	}

	r, ok := h.rooms.Get(f.RoomID)
	if !ok {
		return
	}

	var others []roomPeer
	for memberID := range r.Members {
		if memberID == sess.ID {
			continue
		}
		member, ok := h.presence.Get(memberID)
		if !ok {
			continue
		}
		others = append(others, roomPeer{ID: member.ID, Name: member.Name})
		joined := roomPeerJoinedFrame{Type: "roomPeerJoined", RoomID: f.RoomID, Peer: roomPeer{ID: sess.ID, Name: sess.Name}}
		member.Channel.Send(joined)
		h.publishBusEvent("roomPeerJoined", joined, sess.ID, f.RoomID, member.ID)
	}

	sess.Channel.Send(roomPeersFrame{Type: "roomPeers", RoomID: f.RoomID, Peers: others})
}

func (h *Hub) handleCallReject(sess *presence.Session, raw []byte) {
	var f callRejectFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return
	}

	if caller, ok := h.presence.Get(f.From); ok {
		caller.Channel.Send(callRejectedFrame{Type: "callRejected", Reason: ReasonRejected})
	}

	h.leaveCurrentRoom(sess)
}

func (h *Hub) handleCallHangup(sess *presence.Session) {
	h.leaveCurrentRoom(sess)
}

// leaveCurrentRoom removes sess from its current room (if any), notifies
// remaining members, applies dissolution rules, and broadcasts presence.
// Shared by callReject, callHangup, and disconnect handling. Remaining
// members learn of the departure via roomPeerLeft; the last member of a
// dissolving room additionally gets callEnded with reason "alone".
func (h *Hub) leaveCurrentRoom(sess *presence.Session) {
	if sess.RoomID == "" {
		return
	}
	roomID := sess.RoomID
	r, ok := h.rooms.Get(roomID)
	if !ok {
		sess.RoomID = ""
		return
	}

	h.rooms.Leave(r, sess.ID)

	left := roomPeerLeftFrame{Type: "roomPeerLeft", RoomID: roomID, PeerID: sess.ID}
	for memberID := range r.Members {
		if member, ok := h.presence.Get(memberID); ok {
			member.Channel.Send(left)
			h.publishBusEvent("roomPeerLeft", left, sess.ID, roomID, memberID)
		}
	}

	result := h.rooms.DissolveIfSmall(r)
	if result.Dissolved && result.LastMemberID != "" {
		if last, ok := h.presence.Get(result.LastMemberID); ok {
			ended := callEndedFrame{Type: "callEnded", Reason: ReasonAlone}
			last.Channel.Send(ended)
			h.publishBusEvent("callEnded", ended, sess.ID, roomID, result.LastMemberID)
		}
	}
	h.broadcastPresence()
}

func (h *Hub) handleSignal(sess *presence.Session, raw []byte) {
	var f signalFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return
	}

	target, ok := h.presence.Get(f.To)
	if !ok || sess.RoomID == "" || !h.rooms.IsPair(sess.ID, target.ID, sess.RoomID) {
		return
	}

	out := signalOutFrame{Type: "signal", From: sess.ID, FromName: sess.Name, Payload: f.Payload}
	target.Channel.Send(out)
	h.publishBusEvent("signal", out, sess.ID, sess.RoomID, target.ID)
}

func (h *Hub) handleChatSend(sess *presence.Session, raw []byte) {
	var f chatSendFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return
	}
	text, ok := signaling.ValidateChat(f.Text)
	if !ok {
		sess.Channel.Send(errFrame(ErrBadChat))
		return
	}

	atISO := time.Now().UTC().Format(time.RFC3339)

	if hasReplyPrefix(text) {
		h.publicChat(sess, atISO, text)
		return
	}

	if name, body, ok := signaling.ParsePrivatePrefix(text); ok {
		target, found := h.presence.ByName(name)
		switch {
		case !found || target.Name == "":
			sess.Channel.Send(errFrame(ErrPMNotFound))
			return
		case target.ID == sess.ID:
			sess.Channel.Send(errFrame(ErrPMSelf))
			return
		}

		frame := chatFrame{
			Type: "chat", AtISO: atISO, From: sess.ID, FromName: sess.Name,
			To: target.ID, ToName: target.Name, Text: body, Private: true,
		}
		sess.Channel.Send(frame)
		target.Channel.Send(frame)
		h.notifyPush(target.ID, frame)
		h.publishBusEvent("chat", frame, sess.ID, "", target.ID)
		return
	}

	h.publicChat(sess, atISO, text)
}

func hasReplyPrefix(text string) bool {
	return len(text) >= len(signaling.ReplyPrefix) && text[:len(signaling.ReplyPrefix)] == signaling.ReplyPrefix
}

func (h *Hub) publicChat(sess *presence.Session, atISO, text string) {
	frame := chatFrame{Type: "chat", AtISO: atISO, From: sess.ID, FromName: sess.Name, Text: text, Private: false}
	h.presence.Each(func(member *presence.Session) {
		if member.Name == "" {
			return
		}
		member.Channel.Send(frame)
		if member.ID != sess.ID {
			h.notifyPush(member.ID, frame)
		}
	})
}

// handleDisconnect leaves any room, removes the push subscription, clears
// the name binding, announces the departure, and deletes the session.
func (h *Hub) handleDisconnect(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, ok := h.presence.Get(sessionID)
	if !ok {
		return
	}

	if sess.RoomID != "" {
		h.leaveCurrentRoom(sess)
	}

	h.push.Remove(sessionID)
	name := sess.Name
	h.presence.Release(sessionID)

	if name != "" {
		h.broadcastSystemChat(name + " left.")
	}
	h.broadcastPresence()
}
