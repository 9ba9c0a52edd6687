package ingress

import (
	"errors"
	"testing"

	"github.com/rtxfix/orderadapter/internal/model"
)

type fakeProcessor struct {
	processed []model.OrderRequest
	err       error
}

func (f *fakeProcessor) Process(req model.OrderRequest) (*model.ProcessedOrder, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.processed = append(f.processed, req)
	return &model.ProcessedOrder{OrderID: req.OrderID, ClientOrderID: req.EffectiveClientOrderID()}, nil
}

type fakeGateway struct {
	sent []*model.ProcessedOrder
	err  error
}

func (f *fakeGateway) SendOrder(order *model.ProcessedOrder) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, order)
	return nil
}

func TestDecodeOrderRequest_KnownFields(t *testing.T) {
	raw := `{"order_id":"T1","symbol":"AAPL","side":"BUY","quantity":100,"order_type":"MARKET","time_in_force":"DAY"}`
	req, err := decodeOrderRequest([]byte(raw))
	if err != nil {
		t.Fatalf("decodeOrderRequest: %v", err)
	}
	if req.OrderID != "T1" || req.Symbol != "AAPL" || req.Quantity != 100 {
		t.Fatalf("unexpected decode: %+v", req)
	}
	if len(req.ExtraFields) != 0 {
		t.Fatalf("expected no extra fields, got %+v", req.ExtraFields)
	}
}

func TestDecodeOrderRequest_PreservesExtraFields(t *testing.T) {
	raw := `{"order_id":"T1","symbol":"AAPL","side":"BUY","quantity":100,"order_type":"MARKET","time_in_force":"DAY","strategy_tag":"algo-7"}`
	req, err := decodeOrderRequest([]byte(raw))
	if err != nil {
		t.Fatalf("decodeOrderRequest: %v", err)
	}
	if req.ExtraFields["strategy_tag"] != "algo-7" {
		t.Fatalf("expected strategy_tag preserved in extra_fields, got %+v", req.ExtraFields)
	}
}

func TestDecodeOrderRequest_MalformedJSON(t *testing.T) {
	_, err := decodeOrderRequest([]byte(`{not json`))
	if err == nil {
		t.Fatalf("expected a decode error for malformed JSON")
	}
}

func TestHandleFrame_AcceptedPathSendsToGateway(t *testing.T) {
	proc := &fakeProcessor{}
	gw := &fakeGateway{}
	l := New(DefaultConfig(), proc, gw)

	raw := `{"order_id":"T1","symbol":"AAPL","side":"BUY","quantity":100,"order_type":"MARKET","time_in_force":"DAY"}`
	l.handleFrame(raw)

	if len(proc.processed) != 1 {
		t.Fatalf("expected one order processed, got %d", len(proc.processed))
	}
	if len(gw.sent) != 1 {
		t.Fatalf("expected one order sent to the gateway, got %d", len(gw.sent))
	}
}

func TestHandleFrame_ProcessingErrorStopsBeforeGateway(t *testing.T) {
	proc := &fakeProcessor{err: errors.New("rejected")}
	gw := &fakeGateway{}
	l := New(DefaultConfig(), proc, gw)

	raw := `{"order_id":"T1","symbol":"AAPL","side":"BUY","quantity":100,"order_type":"MARKET","time_in_force":"DAY"}`
	l.handleFrame(raw)

	if len(gw.sent) != 0 {
		t.Fatalf("expected no gateway send after a processing error, got %d", len(gw.sent))
	}
}

func TestHandleFrame_DecodeErrorDoesNotReachProcessor(t *testing.T) {
	proc := &fakeProcessor{}
	gw := &fakeGateway{}
	l := New(DefaultConfig(), proc, gw)

	l.handleFrame(`{not json`)

	if len(proc.processed) != 0 || len(gw.sent) != 0 {
		t.Fatalf("expected malformed frame to reach neither processor nor gateway")
	}
}

func TestHandleFrame_GatewayErrorIsNonFatal(t *testing.T) {
	proc := &fakeProcessor{}
	gw := &fakeGateway{err: errors.New("session not active")}
	l := New(DefaultConfig(), proc, gw)

	raw := `{"order_id":"T1","symbol":"AAPL","side":"BUY","quantity":100,"order_type":"MARKET","time_in_force":"DAY"}`
	// Must not panic; continuing to the next frame is the caller's loop,
	// which this single call exercises implicitly by returning normally.
	l.handleFrame(raw)
	if len(proc.processed) != 1 {
		t.Fatalf("expected processing to still occur before the gateway error")
	}
}
