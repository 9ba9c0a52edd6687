// Package ingress implements the single-socket, newline-framed JSON order
// listener of §4.7: decode -> validate/process -> hand off to the Gateway,
// logging and counting (never failing the loop on) any one frame's error.
// Grounded on the teacher's FIX test-client framing (bufio.Reader +
// ReadString('\n') over a raw net.Conn, see backend/fix/test_fix44_connection.go)
// adapted from a test client's read loop into a production accept loop.
package ingress

import (
	"bufio"
	"encoding/json"
	"log"
	"net"

	"github.com/google/uuid"

	"github.com/rtxfix/orderadapter/internal/apperrors"
	"github.com/rtxfix/orderadapter/internal/metrics"
	"github.com/rtxfix/orderadapter/internal/model"
)

// Processor matches internal/processor.Processor.
type Processor interface {
	Process(model.OrderRequest) (*model.ProcessedOrder, error)
}

// OrderSender matches internal/gateway.Gateway.
type OrderSender interface {
	SendOrder(*model.ProcessedOrder) error
}

var knownOrderRequestFields = map[string]bool{
	"order_id": true, "symbol": true, "side": true, "quantity": true,
	"price": true, "stop_price": true, "order_type": true, "time_in_force": true,
	"account": true, "strike_price": true, "expiry_date": true, "option_type": true,
	"client_order_id": true, "min_quantity": true, "max_show": true, "text": true,
}

// Config configures a Listener's address and backpressure behavior (§4.7).
type Config struct {
	Address          string
	HighWaterMark    int // max frames buffered per connection before excess is discarded
}

// DefaultConfig returns sane defaults for local/dev use.
func DefaultConfig() Config {
	return Config{Address: ":9000", HighWaterMark: 1000}
}

// Listener accepts order frames over TCP and drives them through the
// Processor and Gateway (§4.7).
type Listener struct {
	cfg       Config
	processor Processor
	gateway   OrderSender
}

// New constructs a Listener.
func New(cfg Config, processor Processor, gateway OrderSender) *Listener {
	return &Listener{cfg: cfg, processor: processor, gateway: gateway}
}

// Run accepts connections until the listener is closed or accept fails.
// Each connection is served by its own goroutine; the listener itself never
// returns a non-nil error on a per-connection failure.
func (l *Listener) Run() error {
	ln, err := net.Listen("tcp", l.cfg.Address)
	if err != nil {
		return err
	}
	defer ln.Close()
	log.Printf("[INGRESS] listening on %s", l.cfg.Address)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go l.serve(conn)
	}
}

// serve drives one connection's newline-framed JSON decode loop. Reads and
// processing run on separate goroutines so a slow Processor/Gateway can't
// stall the socket read; frames queue on a bounded channel sized to the
// high-water mark and any frame arriving once it's full is discarded with no
// ack (§4.7 fire-and-forget backpressure) rather than blocking the reader.
func (l *Listener) serve(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReaderSize(conn, 64*1024)

	highWaterMark := l.cfg.HighWaterMark
	if highWaterMark <= 0 {
		highWaterMark = 1
	}
	frames := make(chan string, highWaterMark)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for line := range frames {
			l.handleFrame(line)
		}
	}()

	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			select {
			case frames <- line:
			default:
				metrics.IngressFramesTotal.WithLabelValues("discarded_backpressure").Inc()
			}
		}
		if err != nil {
			break
		}
	}
	close(frames)
	<-done
}

func (l *Listener) handleFrame(line string) {
	traceID := uuid.NewString()

	req, err := decodeOrderRequest([]byte(line))
	if err != nil {
		log.Printf("[INGRESS] trace=%s decode error: %v", traceID, err)
		metrics.IngressFramesTotal.WithLabelValues("decode_rejected").Inc()
		return
	}

	processed, err := l.processor.Process(*req)
	if err != nil {
		log.Printf("[INGRESS] trace=%s order_id=%s processing error: %v", traceID, req.OrderID, err)
		metrics.IngressFramesTotal.WithLabelValues("process_rejected").Inc()
		return
	}

	if err := l.gateway.SendOrder(processed); err != nil {
		log.Printf("[INGRESS] trace=%s order_id=%s gateway send error: %v", traceID, req.OrderID, err)
		metrics.IngressFramesTotal.WithLabelValues("send_rejected").Inc()
		return
	}

	metrics.IngressFramesTotal.WithLabelValues("accepted").Inc()
}

// decodeOrderRequest parses one JSON line into an OrderRequest, stashing any
// keys the schema doesn't recognize into ExtraFields (§6) instead of
// silently dropping them.
func decodeOrderRequest(raw []byte) (*model.OrderRequest, error) {
	var req model.OrderRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, apperrors.NewCodecError("malformed ingress JSON: " + err.Error())
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, apperrors.NewCodecError("malformed ingress JSON: " + err.Error())
	}
	extra := make(map[string]any)
	for k, v := range all {
		if knownOrderRequestFields[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err == nil {
			extra[k] = val
		}
	}
	if len(extra) > 0 {
		req.ExtraFields = extra
	}
	return &req, nil
}
