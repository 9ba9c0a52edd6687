package fixsession

import (
	"net"
	"testing"
	"time"

	"github.com/rtxfix/orderadapter/internal/fixcodec"
)

type memSeqStore struct {
	out, in map[string]int
}

func newMemSeqStore() *memSeqStore {
	return &memSeqStore{out: make(map[string]int), in: make(map[string]int)}
}

func (m *memSeqStore) GetNextOutSeq(id string) (int, error) {
	if v, ok := m.out[id]; ok {
		return v, nil
	}
	return 1, nil
}
func (m *memSeqStore) SetNextOutSeq(id string, n int) error { m.out[id] = n; return nil }
func (m *memSeqStore) GetNextInSeq(id string) (int, error) {
	if v, ok := m.in[id]; ok {
		return v, nil
	}
	return 1, nil
}
func (m *memSeqStore) SetNextInSeq(id string, n int) error { m.in[id] = n; return nil }

type memMsgStore struct {
	stored map[int][]byte
}

func newMemMsgStore() *memMsgStore { return &memMsgStore{stored: make(map[int][]byte)} }

func (m *memMsgStore) StoreOutbound(id string, seq int, raw []byte) error {
	m.stored[seq] = raw
	return nil
}
func (m *memMsgStore) LoadOutbound(id string, seq int) ([]byte, bool, error) {
	raw, ok := m.stored[seq]
	return raw, ok, nil
}

func newTestSession() (*Session, net.Conn, net.Conn) {
	server, client := net.Pipe()
	s := New(Config{
		SessionID:         "TEST",
		BeginString:       "FIX.4.4",
		SenderCompID:      "ADAPTER",
		TargetCompID:      "BROKER",
		HeartbeatInterval: 30 * time.Second,
	}, newMemSeqStore(), newMemMsgStore(), nil)
	s.now = func() time.Time { return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC) }
	return s, server, client
}

func TestSession_ConnectTransitionsToLogonSent(t *testing.T) {
	s, server, client := newTestSession()
	defer server.Close()
	defer client.Close()

	// Drain the Logon write on a goroutine so Connect's synchronous write
	// to the net.Pipe doesn't deadlock the test.
	done := make(chan struct{})
	go func() {
		buf := make([]byte, 4096)
		client.Read(buf)
		close(done)
	}()

	if err := s.Connect(server); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	<-done

	if s.State() != StateLogonSent {
		t.Fatalf("expected LOGON_SENT, got %s", s.State())
	}
}

func TestSession_InboundLogonActivatesSession(t *testing.T) {
	s, _, _ := newTestSession()
	s.mu.Lock()
	s.state = StateLogonSent
	s.mu.Unlock()

	msg := &fixcodec.Message{
		MsgType: fixcodec.MsgTypeLogon,
		Fields: []fixcodec.Field{
			{Tag: fixcodec.TagMsgType, Value: fixcodec.MsgTypeLogon},
			{Tag: fixcodec.TagMsgSeqNum, Value: "1"},
			{Tag: fixcodec.TagSenderCompID, Value: "BROKER"},
			{Tag: fixcodec.TagTargetCompID, Value: "ADAPTER"},
		},
	}
	if err := s.HandleInbound(msg); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if s.State() != StateActive {
		t.Fatalf("expected ACTIVE, got %s", s.State())
	}
}

func TestSession_InboundLogonMismatchedCompIDsDisconnects(t *testing.T) {
	s, _, _ := newTestSession()
	s.mu.Lock()
	s.state = StateLogonSent
	s.mu.Unlock()

	msg := &fixcodec.Message{
		MsgType: fixcodec.MsgTypeLogon,
		Fields: []fixcodec.Field{
			{Tag: fixcodec.TagMsgType, Value: fixcodec.MsgTypeLogon},
			{Tag: fixcodec.TagMsgSeqNum, Value: "1"},
			{Tag: fixcodec.TagSenderCompID, Value: "IMPOSTER"},
			{Tag: fixcodec.TagTargetCompID, Value: "ADAPTER"},
		},
	}
	if err := s.HandleInbound(msg); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if s.State() != StateDisconnecting {
		t.Fatalf("expected DISCONNECTING on comp ID mismatch, got %s", s.State())
	}
}

func TestSession_LogonTimeoutDisconnects(t *testing.T) {
	s, server, client := newTestSession()
	defer server.Close()
	defer client.Close()
	s.cfg.LogonTimeout = 20 * time.Millisecond

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 4096)
		client.Read(buf)
		close(done)
	}()

	if err := s.Connect(server); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	<-done

	time.Sleep(100 * time.Millisecond)
	if s.State() != StateDisconnecting {
		t.Fatalf("expected DISCONNECTING after logon timeout, got %s", s.State())
	}
}

func TestSession_SequenceGapTriggersResendRequest(t *testing.T) {
	s, server, client := newTestSession()
	defer server.Close()
	defer client.Close()
	s.conn = server
	s.mu.Lock()
	s.state = StateActive
	s.mu.Unlock()

	received := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 4096)
		n, _ := client.Read(buf)
		received <- buf[:n]
	}()

	msg := &fixcodec.Message{
		MsgType: fixcodec.MsgTypeHeartbeat,
		Fields: []fixcodec.Field{
			{Tag: fixcodec.TagMsgType, Value: fixcodec.MsgTypeHeartbeat},
			{Tag: fixcodec.TagMsgSeqNum, Value: "5"}, // expected 1, gap to 5
		},
	}
	if err := s.HandleInbound(msg); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	raw := <-received
	parsed, err := fixcodec.Parse(raw)
	if err != nil {
		t.Fatalf("expected a well-formed ResendRequest, got parse error %v (raw=%q)", err, raw)
	}
	if parsed.MsgType != fixcodec.MsgTypeResendRequest {
		t.Fatalf("expected ResendRequest, got msg type %s", parsed.MsgType)
	}
	if parsed.Get("7") != "1" || parsed.Get("16") != "4" {
		t.Fatalf("expected gap range 1-4, got BeginSeqNo=%s EndSeqNo=%s", parsed.Get("7"), parsed.Get("16"))
	}
}

func TestSession_LowSequenceWithoutPossDupDisconnects(t *testing.T) {
	s, _, _ := newTestSession()
	s.mu.Lock()
	s.state = StateActive
	s.seqs.SetNextInSeq("TEST", 10)
	s.mu.Unlock()

	msg := &fixcodec.Message{
		MsgType: fixcodec.MsgTypeHeartbeat,
		Fields: []fixcodec.Field{
			{Tag: fixcodec.TagMsgType, Value: fixcodec.MsgTypeHeartbeat},
			{Tag: fixcodec.TagMsgSeqNum, Value: "3"},
		},
	}
	err := s.HandleInbound(msg)
	if err == nil {
		t.Fatalf("expected an error for a too-low sequence without PossDupFlag")
	}
	if s.State() != StateDisconnecting {
		t.Fatalf("expected DISCONNECTING, got %s", s.State())
	}
}

func TestSession_LowSequenceWithPossDupAccepted(t *testing.T) {
	s, _, _ := newTestSession()
	s.mu.Lock()
	s.state = StateActive
	s.seqs.SetNextInSeq("TEST", 10)
	s.mu.Unlock()

	msg := &fixcodec.Message{
		MsgType: fixcodec.MsgTypeHeartbeat,
		Fields: []fixcodec.Field{
			{Tag: fixcodec.TagMsgType, Value: fixcodec.MsgTypeHeartbeat},
			{Tag: fixcodec.TagMsgSeqNum, Value: "3"},
			{Tag: fixcodec.TagPossDupFlag, Value: "Y"},
		},
	}
	if err := s.HandleInbound(msg); err != nil {
		t.Fatalf("expected a resent (PossDupFlag=Y) message to be accepted, got %v", err)
	}
	if s.State() != StateActive {
		t.Fatalf("expected session to remain ACTIVE, got %s", s.State())
	}
}
