// Package fixsession implements the FIX 4.4 session state machine of §4.6:
// logon/logout discipline, sequence-number bookkeeping backed by a
// pluggable store, heartbeat/test-request timing, and gap-fill resend
// handling. Grounded on the teacher's LPSession/FIXGateway
// (connectSession, sendLogon, heartbeatLoop, sendResendRequest,
// validateAndUpdateInSeq) and the SequenceStore/MessageStore interface
// shapes in backend/fix/pkg/types/session.go.
package fixsession

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/rtxfix/orderadapter/internal/fixcodec"
	"github.com/rtxfix/orderadapter/internal/metrics"
)

// State is a FIX session state (§4.6).
type State string

const (
	StateDisconnected  State = "DISCONNECTED"
	StateConnecting    State = "CONNECTING"
	StateLogonSent     State = "LOGON_SENT"
	StateActive        State = "ACTIVE"
	StateLogoutSent    State = "LOGOUT_SENT"
	StateDisconnecting State = "DISCONNECTING"
)

// SequenceStore persists the next outbound/inbound sequence numbers for a
// session, surviving process restarts.
type SequenceStore interface {
	GetNextOutSeq(sessionID string) (int, error)
	SetNextOutSeq(sessionID string, n int) error
	GetNextInSeq(sessionID string) (int, error)
	SetNextInSeq(sessionID string, n int) error
}

// MessageStore persists outbound message bytes by sequence number so a
// ResendRequest gap can be filled (§4.6).
type MessageStore interface {
	StoreOutbound(sessionID string, seq int, raw []byte) error
	LoadOutbound(sessionID string, seq int) ([]byte, bool, error)
}

// StatusFeed receives a best-effort broadcast of every state transition
// (§2.2, §4.6). Publication never blocks or fails a transition.
type StatusFeed interface {
	PublishState(sessionID string, state State)
}

// Config configures a Session's identity and timing (§4.6).
type Config struct {
	SessionID         string
	BeginString       string // "FIX.4.4"
	SenderCompID      string
	TargetCompID      string
	HeartbeatInterval time.Duration
	ReconnectInterval time.Duration
	LogonTimeout      time.Duration // defaults to 30s if zero
}

const defaultLogonTimeout = 30 * time.Second

// Transport is the minimal connection surface a Session writes to and
// reads framed messages from.
type Transport interface {
	net.Conn
}

// Session drives the §4.6 state machine for a single FIX counterparty
// connection.
type Session struct {
	cfg   Config
	seqs  SequenceStore
	msgs  MessageStore
	feed  StatusFeed

	mu    sync.Mutex
	state State
	conn  net.Conn

	lastSent time.Time
	lastRecv time.Time

	pendingResend map[int][]byte // seq -> raw; never populated: inbound messages above a gap are processed as they arrive, not queued
	resendGapOpen bool

	logonTimer *time.Timer // running only while in LOGON_SENT

	now func() time.Time
}

// New constructs a Session in the DISCONNECTED state.
func New(cfg Config, seqs SequenceStore, msgs MessageStore, feed StatusFeed) *Session {
	return &Session{
		cfg:           cfg,
		seqs:          seqs,
		msgs:          msgs,
		feed:          feed,
		state:         StateDisconnected,
		pendingResend: make(map[int][]byte),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ReconnectInterval returns the configured delay between reconnect
// attempts, for a caller-owned dial loop.
func (s *Session) ReconnectInterval() time.Duration {
	return s.cfg.ReconnectInterval
}

func (s *Session) setStateLocked(state State) {
	metrics.FIXSessionState.WithLabelValues(s.cfg.SessionID, string(s.state)).Set(0)
	s.state = state
	metrics.FIXSessionState.WithLabelValues(s.cfg.SessionID, string(state)).Set(1)
	if s.feed != nil {
		// Best-effort: never let a slow or broken subscriber block a
		// transition (§4.6).
		go s.feed.PublishState(s.cfg.SessionID, state)
	}
}

// Connect transitions DISCONNECTED -> CONNECTING -> (send Logon) -> LOGON_SENT
// over the supplied transport, arming a timer that forces a transition to
// DISCONNECTING if no Logon response arrives within LogonTimeout (§4.6,
// mirroring the teacher's conn.SetReadDeadline around the logon response in
// FIX_Reference/gateway.go).
func (s *Session) Connect(conn net.Conn) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return fmt.Errorf("fixsession: cannot connect from state %s", s.state)
	}
	s.conn = conn
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	if err := s.sendLogon(); err != nil {
		s.mu.Lock()
		s.setStateLocked(StateDisconnecting)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.setStateLocked(StateLogonSent)
	s.armLogonTimerLocked()
	s.mu.Unlock()
	return nil
}

// armLogonTimerLocked starts (replacing any prior) timer that disconnects
// the session if it is still LOGON_SENT when it fires.
func (s *Session) armLogonTimerLocked() {
	s.stopLogonTimerLocked()
	timeout := s.cfg.LogonTimeout
	if timeout <= 0 {
		timeout = defaultLogonTimeout
	}
	s.logonTimer = time.AfterFunc(timeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == StateLogonSent {
			log.Printf("[FIX] %s: logon response timed out after %s, disconnecting", s.cfg.SessionID, timeout)
			s.logonTimer = nil
			s.setStateLocked(StateDisconnecting)
		}
	})
}

// stopLogonTimerLocked cancels a pending logon timer, if any.
func (s *Session) stopLogonTimerLocked() {
	if s.logonTimer != nil {
		s.logonTimer.Stop()
		s.logonTimer = nil
	}
}

func (s *Session) sendLogon() error {
	raw, err := s.buildAndSend(fixcodec.MsgTypeLogon, nil)
	if err != nil {
		return err
	}
	log.Printf("[FIX] %s: sent Logon (%d bytes)", s.cfg.SessionID, len(raw))
	return nil
}

// HandleInbound processes one parsed inbound message against the §4.6
// state machine and sequence discipline.
func (s *Session) HandleInbound(msg *fixcodec.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastRecv = s.now()
	metrics.FIXMessagesTotal.WithLabelValues("in", msg.MsgType).Inc()

	if err := s.validateAndAdvanceInSeqLocked(msg); err != nil {
		return err
	}

	switch msg.MsgType {
	case fixcodec.MsgTypeLogon:
		if s.state == StateLogonSent {
			if msg.Get(fixcodec.TagSenderCompID) == s.cfg.TargetCompID &&
				msg.Get(fixcodec.TagTargetCompID) == s.cfg.SenderCompID {
				s.stopLogonTimerLocked()
				s.setStateLocked(StateActive)
			} else {
				log.Printf("[FIX] %s: Logon comp ID mismatch (sender=%s target=%s), disconnecting",
					s.cfg.SessionID, msg.Get(fixcodec.TagSenderCompID), msg.Get(fixcodec.TagTargetCompID))
				s.stopLogonTimerLocked()
				s.setStateLocked(StateDisconnecting)
			}
		}
	case fixcodec.MsgTypeReject:
		if s.state == StateLogonSent {
			s.stopLogonTimerLocked()
			s.setStateLocked(StateDisconnecting)
		}
	case fixcodec.MsgTypeLogout:
		if s.state == StateActive {
			s.setStateLocked(StateDisconnecting)
		} else if s.state == StateLogoutSent || s.state == StateLogonSent {
			s.stopLogonTimerLocked()
			s.setStateLocked(StateDisconnecting)
		}
	case fixcodec.MsgTypeTestRequest:
		return s.sendHeartbeatLocked(msg.Get(fixcodec.TagText))
	case fixcodec.MsgTypeResendRequest:
		return s.handleResendRequestLocked(msg)
	}
	return nil
}

// validateAndAdvanceInSeqLocked mirrors the teacher's
// validateAndUpdateInSeq: equal seq advances, greater triggers a
// ResendRequest, lesser without PossDupFlag disconnects.
func (s *Session) validateAndAdvanceInSeqLocked(msg *fixcodec.Message) error {
	seqStr := msg.Get(fixcodec.TagMsgSeqNum)
	if seqStr == "" {
		return fmt.Errorf("fixsession: missing MsgSeqNum")
	}
	var seq int
	if _, err := fmt.Sscanf(seqStr, "%d", &seq); err != nil {
		return fmt.Errorf("fixsession: invalid MsgSeqNum %q", seqStr)
	}

	expected, err := s.seqs.GetNextInSeq(s.cfg.SessionID)
	if err != nil {
		return err
	}

	switch {
	case seq == expected:
		return s.seqs.SetNextInSeq(s.cfg.SessionID, expected+1)
	case seq > expected:
		log.Printf("[FIX] %s: sequence gap detected, expected %d got %d", s.cfg.SessionID, expected, seq)
		s.resendGapOpen = true
		return s.sendResendRequestLocked(expected, seq-1)
	default:
		if !msg.Has(fixcodec.TagPossDupFlag, "Y") {
			s.setStateLocked(StateDisconnecting)
			return fmt.Errorf("fixsession: sequence too low (expected %d got %d, no PossDupFlag)", expected, seq)
		}
		return nil
	}
}

func (s *Session) sendResendRequestLocked(beginSeq, endSeq int) error {
	body := []fixcodec.Field{
		{Tag: "7", Value: fmt.Sprintf("%d", beginSeq)},
		{Tag: "16", Value: fmt.Sprintf("%d", endSeq)},
	}
	_, err := s.buildAndSendLocked(fixcodec.MsgTypeResendRequest, body)
	return err
}

func (s *Session) handleResendRequestLocked(msg *fixcodec.Message) error {
	var beginSeq, endSeq int
	fmt.Sscanf(msg.Get("7"), "%d", &beginSeq)
	fmt.Sscanf(msg.Get("16"), "%d", &endSeq)
	if beginSeq == 0 {
		return nil
	}
	for seq := beginSeq; seq <= endSeq; seq++ {
		raw, ok, err := s.msgs.LoadOutbound(s.cfg.SessionID, seq)
		if err != nil || !ok {
			continue
		}
		if s.conn != nil {
			s.conn.Write(raw)
		}
	}
	return nil
}

func (s *Session) sendHeartbeatLocked(testReqID string) error {
	var body []fixcodec.Field
	if testReqID != "" {
		body = []fixcodec.Field{{Tag: "112", Value: testReqID}}
	}
	_, err := s.buildAndSendLocked(fixcodec.MsgTypeHeartbeat, body)
	return err
}

// SendHeartbeatIfIdle sends an unsolicited Heartbeat when nothing has been
// sent within the configured interval (§4.6 heartbeat discipline). Call
// periodically from a caller-owned timer loop.
func (s *Session) SendHeartbeatIfIdle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return nil
	}
	if s.now().Sub(s.lastSent) < s.cfg.HeartbeatInterval {
		return nil
	}
	return s.sendHeartbeatLocked("")
}

// CheckPeerAlive sends a TestRequest when nothing has been received within
// 1.2x the heartbeat interval, and signals the caller to disconnect if
// still silent after a further interval.
func (s *Session) CheckPeerAlive() (shouldDisconnect bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return false, nil
	}
	silentFor := s.now().Sub(s.lastRecv)
	testReqThreshold := time.Duration(float64(s.cfg.HeartbeatInterval) * 1.2)
	if silentFor < testReqThreshold {
		return false, nil
	}
	if silentFor >= testReqThreshold+s.cfg.HeartbeatInterval {
		s.setStateLocked(StateDisconnecting)
		return true, nil
	}
	body := []fixcodec.Field{{Tag: "112", Value: fmt.Sprintf("TEST-%d", s.now().Unix())}}
	_, sendErr := s.buildAndSendLocked(fixcodec.MsgTypeTestRequest, body)
	return false, sendErr
}

// Stop requests a clean logout: ACTIVE -> (send Logout) -> LOGOUT_SENT.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return fmt.Errorf("fixsession: cannot stop from state %s", s.state)
	}
	if _, err := s.buildAndSendLocked(fixcodec.MsgTypeLogout, nil); err != nil {
		return err
	}
	s.setStateLocked(StateLogoutSent)
	return nil
}

// TransportDown transitions DISCONNECTING -> DISCONNECTED, clearing the
// connection handle (§4.6).
func (s *Session) TransportDown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLogonTimerLocked()
	s.conn = nil
	s.setStateLocked(StateDisconnected)
}

// buildAndSend is the exported-path wrapper used by Connect (runs outside
// the held mutex since Connect manages its own locking window).
func (s *Session) buildAndSend(msgType string, body []fixcodec.Field) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildAndSendLocked(msgType, body)
}

// SendApplicationMessage stamps, persists, and writes an application-level
// message (NewOrderSingle, OrderCancelRequest, OrderCancelReplaceRequest)
// through the same sequencing discipline as session-originated admin
// messages (§4.6, §4.8). Rejects outside the ACTIVE state.
func (s *Session) SendApplicationMessage(msgType string, body []fixcodec.Field) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return nil, fmt.Errorf("fixsession: cannot send %s from state %s", msgType, s.state)
	}
	return s.buildAndSendLocked(msgType, body)
}

// buildAndSendLocked stamps the next outbound sequence, persists it to the
// message store BEFORE the transport write (§4.6), and increments only on
// success.
func (s *Session) buildAndSendLocked(msgType string, body []fixcodec.Field) ([]byte, error) {
	seq, err := s.seqs.GetNextOutSeq(s.cfg.SessionID)
	if err != nil {
		return nil, err
	}

	b := &fixcodecBuilder{}
	for _, f := range body {
		b.fields = append(b.fields, f)
	}

	sendingTime := s.now().Format("20060102-15:04:05.000")
	raw := buildMessage(s.cfg.BeginString, msgType, seq, s.cfg.SenderCompID, s.cfg.TargetCompID, sendingTime, b.fields)

	if err := s.msgs.StoreOutbound(s.cfg.SessionID, seq, []byte(raw)); err != nil {
		return nil, err
	}

	if s.conn != nil {
		if _, err := s.conn.Write([]byte(raw)); err != nil {
			return nil, err
		}
	}

	if err := s.seqs.SetNextOutSeq(s.cfg.SessionID, seq+1); err != nil {
		return nil, err
	}
	s.lastSent = s.now()
	metrics.FIXMessagesTotal.WithLabelValues("out", msgType).Inc()
	metrics.FIXSequenceOut.WithLabelValues(s.cfg.SessionID).Set(float64(seq + 1))
	return []byte(raw), nil
}

// fixcodecBuilder is a tiny local field accumulator; fixcodec's own
// builder type is unexported, so session construction composes Field
// slices directly and hands them to buildMessage below.
type fixcodecBuilder struct {
	fields []fixcodec.Field
}

// buildMessage assembles a full wire message from header + body fields,
// mirroring fixcodec's internal encode (duplicated narrowly here since
// session-originated admin messages carry header fields the codec's
// order-specific Encode* functions don't expose).
func buildMessage(beginString, msgType string, seqNum int, senderCompID, targetCompID, sendingTime string, bodyFields []fixcodec.Field) string {
	all := []fixcodec.Field{
		{Tag: fixcodec.TagMsgType, Value: msgType},
		{Tag: fixcodec.TagSenderCompID, Value: senderCompID},
		{Tag: fixcodec.TagTargetCompID, Value: targetCompID},
		{Tag: fixcodec.TagMsgSeqNum, Value: fmt.Sprintf("%d", seqNum)},
		{Tag: fixcodec.TagSendingTime, Value: sendingTime},
	}
	all = append(all, bodyFields...)

	var bodySB []byte
	for _, f := range all {
		bodySB = append(bodySB, []byte(f.Tag+"="+f.Value+"\x01")...)
	}
	bodyStr := string(bodySB)

	header := fmt.Sprintf("%s=%s\x01%s=%d\x01", fixcodec.TagBeginString, beginString, fixcodec.TagBodyLength, len(bodyStr))
	withoutChecksum := header + bodyStr
	checksum := 0
	for i := 0; i < len(withoutChecksum); i++ {
		checksum += int(withoutChecksum[i])
	}
	checksum %= 256
	return withoutChecksum + fmt.Sprintf("%s=%03d\x01", fixcodec.TagCheckSum, checksum)
}
