package fixcodec

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rtxfix/orderadapter/internal/model"
)

func TestEncodeNewOrderSingle_RoundTrips(t *testing.T) {
	price := decimal.RequireFromString("150.2500")
	order := &model.ProcessedOrder{
		ClientOrderID: "CL-1",
		Symbol:        "AAPL",
		Side:          model.SideBuy,
		Quantity:      100,
		OrderType:     model.OrderTypeLimit,
		TimeInForce:   model.TimeInForceDay,
		Account:       "ACC1",
		Price:         &price,
	}

	raw := EncodeNewOrderSingle("FIX.4.4", 1, "ADAPTER", "BROKER", "20260730-12:00:00.000", order)

	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("expected parse to succeed, got %v", err)
	}
	if msg.MsgType != MsgTypeNewOrderSingle {
		t.Fatalf("msg type = %s, want %s", msg.MsgType, MsgTypeNewOrderSingle)
	}
	if msg.Get(TagClOrdID) != "CL-1" {
		t.Fatalf("ClOrdID = %s", msg.Get(TagClOrdID))
	}
	if msg.Get(TagSymbol) != "AAPL" {
		t.Fatalf("Symbol = %s", msg.Get(TagSymbol))
	}
	if msg.Get(TagPrice) != "150.25" {
		t.Fatalf("Price = %s, want trailing-zero-trimmed 150.25", msg.Get(TagPrice))
	}
	if msg.Get(TagSide) != "1" {
		t.Fatalf("Side = %s, want 1 (buy)", msg.Get(TagSide))
	}
}

func TestEncodeNewOrderSingle_WithSPXWInstrument(t *testing.T) {
	strike := decimal.RequireFromString("4500")
	order := &model.ProcessedOrder{
		ClientOrderID: "CL-2",
		Symbol:        "SPXW",
		Side:          model.SideBuy,
		Quantity:      10,
		OrderType:     model.OrderTypeMarket,
		TimeInForce:   model.TimeInForceDay,
		Instrument: &model.Instrument{
			SecurityID:        "SPXW_260813_C_04500000",
			SecurityIDSource:  "8",
			MaturityMonthYear: "202608",
			MaturityDate:      "20260813",
			StrikePrice:       strike,
			OptionType:        model.OptionTypeCall,
		},
	}

	raw := EncodeNewOrderSingle("FIX.4.4", 2, "ADAPTER", "BROKER", "20260730-12:00:00.000", order)
	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("expected parse to succeed, got %v", err)
	}
	if msg.Get(TagSecurityID) != "SPXW_260813_C_04500000" {
		t.Fatalf("SecurityID = %s", msg.Get(TagSecurityID))
	}
	if msg.Get(TagPutOrCall) != "1" {
		t.Fatalf("PutOrCall = %s, want 1 (call)", msg.Get(TagPutOrCall))
	}
}

func TestParse_ChecksumMismatchRejected(t *testing.T) {
	price := decimal.RequireFromString("1")
	order := &model.ProcessedOrder{
		ClientOrderID: "CL-3",
		Symbol:        "AAPL",
		Side:          model.SideSell,
		Quantity:      1,
		OrderType:     model.OrderTypeLimit,
		TimeInForce:   model.TimeInForceDay,
		Price:         &price,
	}
	raw := EncodeNewOrderSingle("FIX.4.4", 3, "ADAPTER", "BROKER", "20260730-12:00:00.000", order)
	tampered := raw[:len(raw)-4] + "999" + soh

	if _, err := Parse([]byte(tampered)); err == nil {
		t.Fatalf("expected checksum mismatch to be rejected")
	}
}

func TestParse_WrongBeginStringRejected(t *testing.T) {
	raw := "8=FIX.4.2" + soh + "9=5" + soh + "35=0" + soh + "10=000" + soh
	if _, err := Parse([]byte(raw)); err == nil {
		t.Fatalf("expected parse to reject a BeginString other than FIX.4.4")
	}
}

func TestParse_MissingMsgTypeRejected(t *testing.T) {
	raw := "8=FIX.4.4" + soh + "9=5" + soh + "49=A" + soh + "10=185" + soh
	if _, err := Parse([]byte(raw)); err == nil {
		t.Fatalf("expected parse to fail on missing MsgType")
	}
}

func TestEncodeOrderCancelRequest_RoundTrips(t *testing.T) {
	order := &model.ProcessedOrder{
		ClientOrderID: "CL-4",
		Symbol:        "AAPL",
		Side:          model.SideBuy,
		Quantity:      100,
	}
	raw := EncodeOrderCancelRequest("FIX.4.4", 4, "ADAPTER", "BROKER", "20260730-12:00:00.000", order, "CL-4-CXL")

	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("expected parse to succeed, got %v", err)
	}
	if msg.MsgType != MsgTypeOrderCancelRequest {
		t.Fatalf("msg type = %s, want %s", msg.MsgType, MsgTypeOrderCancelRequest)
	}
	if msg.Get(TagOrigClOrdID) != "CL-4" {
		t.Fatalf("OrigClOrdID = %s", msg.Get(TagOrigClOrdID))
	}
	if msg.Get(TagClOrdID) != "CL-4-CXL" {
		t.Fatalf("ClOrdID = %s", msg.Get(TagClOrdID))
	}
}
