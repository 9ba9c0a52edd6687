// Package fixcodec encodes and parses FIX 4.4 tag=value messages: the
// SOH-delimited wire format, checksum and body-length computation, and the
// tag tables for the message types this adapter sends and receives (§4.5).
//
// The checksum/body-length/tag-extraction algorithms are carried over in
// spirit from the teacher's hand-rolled gateway (buildMessage,
// calculateChecksum, validateChecksum, validateBodyLength, extractTag),
// rewritten around a parsed Message type instead of raw string scanning.
package fixcodec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rtxfix/orderadapter/internal/apperrors"
	"github.com/rtxfix/orderadapter/internal/model"
)

const soh = "\x01"

// Message types this adapter exchanges (§4.5, §6).
const (
	MsgTypeLogon                   = "A"
	MsgTypeLogout                  = "5"
	MsgTypeHeartbeat               = "0"
	MsgTypeTestRequest              = "1"
	MsgTypeResendRequest            = "2"
	MsgTypeSequenceReset            = "4"
	MsgTypeReject                   = "3"
	MsgTypeNewOrderSingle            = "D"
	MsgTypeOrderCancelRequest        = "F"
	MsgTypeOrderCancelReplaceRequest = "G"
	MsgTypeExecutionReport           = "8"
	MsgTypeOrderCancelReject         = "9"
)

// Field tags used by this adapter.
const (
	TagBeginString   = "8"
	TagBodyLength    = "9"
	TagMsgType       = "35"
	TagSenderCompID  = "49"
	TagTargetCompID  = "56"
	TagMsgSeqNum     = "34"
	TagSendingTime   = "52"
	TagPossDupFlag   = "43"
	TagCheckSum      = "10"
	TagClOrdID       = "11"
	TagOrigClOrdID   = "41"
	TagSymbol        = "55"
	TagSide          = "54"
	TagOrderQty      = "38"
	TagOrdType       = "40"
	TagPrice         = "44"
	TagStopPx        = "99"
	TagTimeInForce   = "59"
	TagAccount       = "1"
	TagText          = "58"
	TagOrderID       = "37"
	TagExecID        = "17"
	TagExecType      = "150"
	TagOrdStatus     = "39"
	TagCumQty        = "14"
	TagLeavesQty     = "151"
	TagLastQty       = "32"
	TagAvgPx         = "6"
	TagLastPx        = "31"
	TagTransactTime  = "60"
	TagCxlRejReason  = "102"
	TagSecurityID    = "48"
	TagSecurityIDSrc = "22"
	TagMaturityMY    = "200"
	TagMaturityDate  = "541"
	TagStrikePrice   = "202"
	TagPutOrCall     = "201"
	TagMinQty        = "110"
	TagMaxShow       = "210"
	TagSecurityType  = "167"
	TagSecurityExchange = "207"
	TagCurrency      = "15"
	TagOrderCapacity = "528"
)

// Field is one ordered tag=value pair, preserving wire order on both
// encode and decode.
type Field struct {
	Tag   string
	Value string
}

// Message is a parsed FIX message: its message type plus every field in
// the order it appeared on the wire.
type Message struct {
	MsgType string
	Fields  []Field
}

// Get returns the first value for tag, or "" if absent.
func (m *Message) Get(tag string) string {
	for _, f := range m.Fields {
		if f.Tag == tag {
			return f.Value
		}
	}
	return ""
}

// Has reports whether tag is present with exactly value.
func (m *Message) Has(tag, value string) bool {
	return m.Get(tag) == value
}

// builder accumulates body fields (everything after BodyLength, before
// CheckSum) in wire order.
type builder struct {
	fields []Field
}

func (b *builder) add(tag, value string) *builder {
	b.fields = append(b.fields, Field{Tag: tag, Value: value})
	return b
}

func (b *builder) body() string {
	var sb strings.Builder
	for _, f := range b.fields {
		sb.WriteString(f.Tag)
		sb.WriteByte('=')
		sb.WriteString(f.Value)
		sb.WriteString(soh)
	}
	return sb.String()
}

// encode wraps body with BeginString/BodyLength and trailing checksum,
// mirroring the teacher's buildMessage.
func encode(beginString, msgType string, seqNum int, senderCompID, targetCompID, sendingTime string, body *builder) string {
	head := &builder{}
	head.add(TagMsgType, msgType)
	head.add(TagSenderCompID, senderCompID)
	head.add(TagTargetCompID, targetCompID)
	head.add(TagMsgSeqNum, strconv.Itoa(seqNum))
	head.add(TagSendingTime, sendingTime)
	head.fields = append(head.fields, body.fields...)

	bodyStr := head.body()
	header := fmt.Sprintf("%s=%s%s%s=%d%s", TagBeginString, beginString, soh, TagBodyLength, len(bodyStr), soh)
	withoutChecksum := header + bodyStr
	checksum := calculateChecksum(withoutChecksum)
	return withoutChecksum + fmt.Sprintf("%s=%03d%s", TagCheckSum, checksum, soh)
}

func calculateChecksum(msg string) int {
	sum := 0
	for i := 0; i < len(msg); i++ {
		sum += int(msg[i])
	}
	return sum % 256
}

// formatPrice renders a decimal with trailing zeros trimmed per §4.5,
// always keeping at least one digit after the point when the value is not
// an integer.
func formatPrice(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}

// NewOrderSingleBody builds the 35=D body fields for a ProcessedOrder,
// leaving header stamping (sequence number, sending time) to the caller —
// a FIX session persists and increments sequence numbers around the send,
// so body construction is kept separate from header construction (§4.6,
// §4.8).
func NewOrderSingleBody(order *model.ProcessedOrder) []Field {
	b := &builder{}
	b.add(TagClOrdID, order.ClientOrderID)
	b.add(TagSymbol, order.Symbol)
	b.add(TagSide, order.Side.FIXCode())
	b.add(TagOrderQty, strconv.Itoa(order.Quantity))
	b.add(TagOrdType, order.OrderType.FIXCode())
	if order.Price != nil {
		b.add(TagPrice, formatPrice(*order.Price))
	}
	if order.StopPrice != nil {
		b.add(TagStopPx, formatPrice(*order.StopPrice))
	}
	b.add(TagTimeInForce, order.TimeInForce.FIXCode())
	if order.Account != "" {
		b.add(TagAccount, order.Account)
	}
	if order.MinQuantity != nil {
		b.add(TagMinQty, strconv.Itoa(*order.MinQuantity))
	}
	if order.MaxShow != nil {
		b.add(TagMaxShow, strconv.Itoa(*order.MaxShow))
	}
	if order.Text != "" {
		b.add(TagText, order.Text)
	}
	if order.Instrument != nil {
		addInstrumentFields(b, order.Instrument)
	}
	b.add(TagOrderCapacity, orderCapacityOrDefault(order.OrderCapacity))
	return b.fields
}

func orderCapacityOrDefault(capacity string) string {
	if capacity == "" {
		return "A"
	}
	return capacity
}

// OrderCancelRequestBody builds the 35=F body fields (§4.8).
func OrderCancelRequestBody(order *model.ProcessedOrder, newClOrdID string) []Field {
	b := &builder{}
	b.add(TagOrigClOrdID, order.ClientOrderID)
	b.add(TagClOrdID, newClOrdID)
	b.add(TagSymbol, order.Symbol)
	b.add(TagSide, order.Side.FIXCode())
	b.add(TagOrderQty, strconv.Itoa(order.Quantity))
	return b.fields
}

// OrderCancelReplaceRequestBody builds the 35=G body fields (§4.8).
func OrderCancelReplaceRequestBody(order *model.ProcessedOrder, newClOrdID string, newQuantity int, newPrice *decimal.Decimal) []Field {
	b := &builder{}
	b.add(TagOrigClOrdID, order.ClientOrderID)
	b.add(TagClOrdID, newClOrdID)
	b.add(TagSymbol, order.Symbol)
	b.add(TagSide, order.Side.FIXCode())
	b.add(TagOrderQty, strconv.Itoa(newQuantity))
	b.add(TagOrdType, order.OrderType.FIXCode())
	if newPrice != nil {
		b.add(TagPrice, formatPrice(*newPrice))
	}
	b.add(TagTimeInForce, order.TimeInForce.FIXCode())
	return b.fields
}

// EncodeNewOrderSingle builds a complete 35=D wire message, stamping the
// given sequence number directly. Used by tests and by any caller that
// manages its own sequencing outside a Session.
func EncodeNewOrderSingle(beginString string, seqNum int, senderCompID, targetCompID, sendingTime string, order *model.ProcessedOrder) string {
	b := &builder{fields: NewOrderSingleBody(order)}
	return encode(beginString, MsgTypeNewOrderSingle, seqNum, senderCompID, targetCompID, sendingTime, b)
}

// EncodeOrderCancelRequest builds a complete 35=F wire message (§4.8).
func EncodeOrderCancelRequest(beginString string, seqNum int, senderCompID, targetCompID, sendingTime string, order *model.ProcessedOrder, newClOrdID string) string {
	b := &builder{fields: OrderCancelRequestBody(order, newClOrdID)}
	return encode(beginString, MsgTypeOrderCancelRequest, seqNum, senderCompID, targetCompID, sendingTime, b)
}

// EncodeOrderCancelReplaceRequest builds a complete 35=G wire message (§4.8).
func EncodeOrderCancelReplaceRequest(beginString string, seqNum int, senderCompID, targetCompID, sendingTime string, order *model.ProcessedOrder, newClOrdID string, newQuantity int, newPrice *decimal.Decimal) string {
	b := &builder{fields: OrderCancelReplaceRequestBody(order, newClOrdID, newQuantity, newPrice)}
	return encode(beginString, MsgTypeOrderCancelReplaceRequest, seqNum, senderCompID, targetCompID, sendingTime, b)
}

func addInstrumentFields(b *builder, inst *model.Instrument) {
	b.add(TagSecurityType, "OPT")
	b.add(TagSecurityID, inst.SecurityID)
	b.add(TagSecurityIDSrc, inst.SecurityIDSource)
	b.add(TagMaturityMY, inst.MaturityMonthYear)
	b.add(TagMaturityDate, inst.MaturityDate)
	b.add(TagStrikePrice, formatPrice(inst.StrikePrice))
	b.add(TagPutOrCall, inst.OptionType.FIXCode())
	b.add(TagSecurityExchange, inst.Exchange)
	b.add(TagCurrency, inst.Currency)
}

// Parse splits a raw SOH-delimited FIX message into a Message, validating
// BeginString, checksum, and body length exactly as the teacher's
// validateMessage does (§4.5's three parse-rejection conditions).
func Parse(raw []byte) (*Message, error) {
	msg := string(raw)
	if err := validateBeginString(msg); err != nil {
		return nil, apperrors.NewCodecError(err.Error())
	}
	if err := validateChecksum(msg); err != nil {
		return nil, apperrors.NewCodecError(err.Error())
	}
	if err := validateBodyLength(msg); err != nil {
		return nil, apperrors.NewCodecError(err.Error())
	}

	parsed := &Message{}
	for _, pair := range strings.Split(strings.TrimSuffix(msg, soh), soh) {
		if pair == "" {
			continue
		}
		idx := strings.IndexByte(pair, '=')
		if idx < 0 {
			return nil, apperrors.NewCodecError("malformed field: " + pair)
		}
		tag, value := pair[:idx], pair[idx+1:]
		parsed.Fields = append(parsed.Fields, Field{Tag: tag, Value: value})
		if tag == TagMsgType {
			parsed.MsgType = value
		}
	}
	if parsed.MsgType == "" {
		return nil, apperrors.NewCodecError("missing MsgType (35)")
	}
	return parsed, nil
}

// ParseExecutionReport decodes a 35=8 Message into a model.ExecutionReport
// (§4.8, §6).
func ParseExecutionReport(msg *Message) (model.ExecutionReport, error) {
	var report model.ExecutionReport
	report.OrderID = msg.Get(TagOrderID)
	report.ClientOrderID = msg.Get(TagClOrdID)
	report.OrigClientOrderID = msg.Get(TagOrigClOrdID)
	report.ExecID = msg.Get(TagExecID)
	report.Symbol = msg.Get(TagSymbol)
	report.Text = msg.Get(TagText)
	report.Account = msg.Get(TagAccount)

	if side, ok := model.ParseSide(sideFromFIXCode(msg.Get(TagSide))); ok {
		report.Side = side
	}

	execType, ok := execTypeFromFIXCode(msg.Get(TagExecType))
	if !ok {
		return report, apperrors.NewCodecError("unrecognized ExecType: " + msg.Get(TagExecType))
	}
	report.ExecType = execType

	status, ok := model.OrderStatusFromExecType(execType)
	if !ok {
		return report, apperrors.NewCodecError("unmappable ExecType: " + string(execType))
	}
	report.OrderStatus = status

	report.OrderQty = atoiOrZero(msg.Get(TagOrderQty))
	report.CumQty = atoiOrZero(msg.Get(TagCumQty))
	report.LeavesQty = atoiOrZero(msg.Get(TagLeavesQty))

	if v := msg.Get(TagLastQty); v != "" {
		n := atoiOrZero(v)
		report.LastQty = &n
	}
	if v := msg.Get(TagAvgPx); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			report.AvgPx = &d
		}
	}
	if v := msg.Get(TagLastPx); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			report.LastPx = &d
		}
	}
	if v := msg.Get(TagTransactTime); v != "" {
		if t, err := time.Parse("20060102-15:04:05.000", v); err == nil {
			report.TransactTime = t
		}
	}
	return report, nil
}

// ParseCancelReject decodes a 35=9 Message into a model.CancelReject (§4.8).
func ParseCancelReject(msg *Message) model.CancelReject {
	return model.CancelReject{
		ClientOrderID:     msg.Get(TagClOrdID),
		OrigClientOrderID: msg.Get(TagOrigClOrdID),
		Reason:            msg.Get(TagCxlRejReason),
		Text:              msg.Get(TagText),
	}
}

func sideFromFIXCode(code string) string {
	switch code {
	case "1":
		return string(model.SideBuy)
	case "2":
		return string(model.SideSell)
	default:
		return ""
	}
}

func execTypeFromFIXCode(code string) (model.ExecType, bool) {
	switch code {
	case "0":
		return model.ExecTypeNew, true
	case "1":
		return model.ExecTypePartialFill, true
	case "2":
		return model.ExecTypeFill, true
	case "4":
		return model.ExecTypeCanceled, true
	case "8":
		return model.ExecTypeRejected, true
	case "C":
		return model.ExecTypeExpired, true
	default:
		return "", false
	}
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func extractTag(msg, tag string) string {
	prefix := tag + "="
	idx := strings.Index(msg, soh+prefix)
	start := -1
	if strings.HasPrefix(msg, prefix) {
		start = len(prefix)
	} else if idx >= 0 {
		start = idx + 1 + len(prefix)
	}
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start:], soh)
	if end < 0 {
		return msg[start:]
	}
	return msg[start : start+end]
}

const expectedBeginString = "FIX.4.4"

func validateBeginString(msg string) error {
	got := extractTag(msg, TagBeginString)
	if got != expectedBeginString {
		return fmt.Errorf("unsupported BeginString: %q", got)
	}
	return nil
}

func validateChecksum(msg string) error {
	checksumIdx := strings.LastIndex(msg, TagCheckSum+"=")
	if checksumIdx == -1 {
		return fmt.Errorf("checksum tag (10) not found")
	}
	declared := extractTag(msg, TagCheckSum)
	if len(declared) != 3 {
		return fmt.Errorf("invalid checksum format: %s", declared)
	}
	declaredVal, err := strconv.Atoi(declared)
	if err != nil {
		return fmt.Errorf("invalid checksum value: %s", declared)
	}
	calculated := calculateChecksum(msg[:checksumIdx])
	if calculated != declaredVal {
		return fmt.Errorf("checksum mismatch: declared=%03d calculated=%03d", declaredVal, calculated)
	}
	return nil
}

func validateBodyLength(msg string) error {
	declaredStr := extractTag(msg, TagBodyLength)
	if declaredStr == "" {
		return fmt.Errorf("body length tag (9) not found")
	}
	declared, err := strconv.Atoi(declaredStr)
	if err != nil {
		return fmt.Errorf("invalid body length value: %s", declaredStr)
	}

	bodyStartTag := TagBodyLength + "=" + declaredStr + soh
	bodyStartIdx := strings.Index(msg, bodyStartTag)
	if bodyStartIdx == -1 {
		return fmt.Errorf("could not find body start")
	}
	bodyStartIdx += len(bodyStartTag)

	checksumIdx := strings.LastIndex(msg, TagCheckSum+"=")
	if checksumIdx == -1 {
		return fmt.Errorf("checksum tag not found for body length calculation")
	}

	actual := checksumIdx - bodyStartIdx
	if actual != declared {
		return fmt.Errorf("body length mismatch: declared=%d actual=%d", declared, actual)
	}
	return nil
}
