package net

import (
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/iotaaxel/limit-order-book/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
)

type MessageType int

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
)

type ReportMessageType int

const (
	OrderAck ReportMessageType = iota
	ExecutionReport
	ExpiryReport
	ErrorReport
)

type Message interface {
	GetType() MessageType
}

// Message format constants.
const (
	BaseMessageHeaderLen      = 2
	NewOrderMessageBodyLen    = 1 + 1 + 8 + 8 + 1
	CancelOrderMessageBodyLen = 1 + orderIDLen

	// Order ids are uuid strings on the wire, fixed width.
	orderIDLen = 36
)

// Every payload travels inside a frame with a 2-byte big-endian length
// prefix. TCP coalesces back-to-back writes, so the reader must recover
// payload boundaries itself.
const frameHeaderLen = 2

// WriteFrame writes one length-prefixed payload.
func WriteFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, frameHeaderLen+len(payload))
	binary.BigEndian.PutUint16(buf[0:frameHeaderLen], uint16(len(payload)))
	copy(buf[frameHeaderLen:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads exactly one length-prefixed payload, leaving any trailing
// frames unconsumed for the next call.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	payload := make([]byte, binary.BigEndian.Uint16(header[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Generic message type.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

// ParseMessage decodes a single inbound client message.
func ParseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, ErrMessageTooShort
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	case NewOrder:
		return parseNewOrder(msg)
	case CancelOrder:
		return parseCancelOrder(msg)
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

type NewOrderMessage struct {
	BaseMessage
	Side        common.Side        // 1 byte
	TimeInForce common.TimeInForce // 1 byte
	Price       int64              // 8 bytes, integer ticks
	Quantity    uint64             // 8 bytes
	OwnerLen    uint8              // 1 byte
	Owner       string             // n bytes
}

// Order builds the engine order for this message. The id is assigned by the
// server, which owns id generation.
func (m *NewOrderMessage) Order(id string) common.Order {
	return common.Order{
		ID:          id,
		Side:        m.Side,
		Price:       m.Price,
		Quantity:    m.Quantity,
		TimeInForce: m.TimeInForce,
	}
}

func (m *NewOrderMessage) Serialize() []byte {
	buf := make([]byte, BaseMessageHeaderLen+NewOrderMessageBodyLen+len(m.Owner))
	binary.BigEndian.PutUint16(buf[0:2], uint16(NewOrder))
	buf[2] = byte(m.Side)
	buf[3] = byte(m.TimeInForce)
	binary.BigEndian.PutUint64(buf[4:12], uint64(m.Price))
	binary.BigEndian.PutUint64(buf[12:20], m.Quantity)
	buf[20] = uint8(len(m.Owner))
	copy(buf[21:], m.Owner)
	return buf
}

func parseNewOrder(msg []byte) (*NewOrderMessage, error) {
	if len(msg) < NewOrderMessageBodyLen {
		return nil, ErrMessageTooShort
	}
	m := &NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}

	m.Side = common.Side(msg[0])
	m.TimeInForce = common.TimeInForce(msg[1])
	m.Price = int64(binary.BigEndian.Uint64(msg[2:10]))
	m.Quantity = binary.BigEndian.Uint64(msg[10:18])
	m.OwnerLen = msg[18]

	if len(msg) < NewOrderMessageBodyLen+int(m.OwnerLen) {
		return nil, ErrMessageTooShort
	}
	m.Owner = string(msg[19 : 19+int(m.OwnerLen)])

	return m, nil
}

type CancelOrderMessage struct {
	BaseMessage
	Side    common.Side // 1 byte
	OrderID string      // 36 bytes
}

func (m *CancelOrderMessage) Serialize() []byte {
	buf := make([]byte, BaseMessageHeaderLen+CancelOrderMessageBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	buf[2] = byte(m.Side)
	copy(buf[3:3+orderIDLen], m.OrderID)
	return buf
}

func parseCancelOrder(msg []byte) (*CancelOrderMessage, error) {
	if len(msg) < CancelOrderMessageBodyLen {
		return nil, ErrMessageTooShort
	}
	m := &CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}
	m.Side = common.Side(msg[0])
	m.OrderID = string(msg[1 : 1+orderIDLen])
	return m, nil
}

// Report is the single outbound frame shape. Which fields are meaningful
// depends on MessageType: acks carry the assigned order id, execution reports
// carry the fill and the counterparty id, expiry reports carry the evicted
// id, error reports carry the error text.
type Report struct {
	MessageType    ReportMessageType  // 1 byte
	Side           common.Side        // 1 byte
	TimeInForce    common.TimeInForce // 1 byte
	Timestamp      uint64             // 8 bytes, unix nanos
	Price          int64              // 8 bytes
	Quantity       uint64             // 8 bytes
	OrderID        string             // 36 bytes
	CounterOrderID string             // 36 bytes
	ErrStrLen      uint16             // 2 bytes
	Err            string             // n bytes
}

const reportFixedHeaderLen = 1 + 1 + 1 + 8 + 8 + 8 + orderIDLen + orderIDLen + 2

// Serialize converts the report to be sent on the wire.
func (r *Report) Serialize() []byte {
	buf := make([]byte, reportFixedHeaderLen+len(r.Err))
	buf[0] = byte(r.MessageType)
	buf[1] = byte(r.Side)
	buf[2] = byte(r.TimeInForce)
	binary.BigEndian.PutUint64(buf[3:11], r.Timestamp)
	binary.BigEndian.PutUint64(buf[11:19], uint64(r.Price))
	binary.BigEndian.PutUint64(buf[19:27], r.Quantity)

	// copy() tolerates ids shorter than the fixed slot.
	copy(buf[27:27+orderIDLen], r.OrderID)
	copy(buf[27+orderIDLen:27+2*orderIDLen], r.CounterOrderID)
	binary.BigEndian.PutUint16(buf[27+2*orderIDLen:reportFixedHeaderLen], r.ErrStrLen)

	if r.ErrStrLen > 0 {
		copy(buf[reportFixedHeaderLen:], r.Err)
	}
	return buf
}

// ParseReport decodes an outbound report frame, for clients and tests.
func ParseReport(msg []byte) (Report, error) {
	if len(msg) < reportFixedHeaderLen {
		return Report{}, ErrMessageTooShort
	}
	r := Report{
		MessageType: ReportMessageType(msg[0]),
		Side:        common.Side(msg[1]),
		TimeInForce: common.TimeInForce(msg[2]),
		Timestamp:   binary.BigEndian.Uint64(msg[3:11]),
		Price:       int64(binary.BigEndian.Uint64(msg[11:19])),
		Quantity:    binary.BigEndian.Uint64(msg[19:27]),
	}
	r.OrderID = trimID(msg[27 : 27+orderIDLen])
	r.CounterOrderID = trimID(msg[27+orderIDLen : 27+2*orderIDLen])
	r.ErrStrLen = binary.BigEndian.Uint16(msg[27+2*orderIDLen : reportFixedHeaderLen])
	if len(msg) < reportFixedHeaderLen+int(r.ErrStrLen) {
		return Report{}, ErrMessageTooShort
	}
	r.Err = string(msg[reportFixedHeaderLen : reportFixedHeaderLen+int(r.ErrStrLen)])
	return r, nil
}

// trimID drops zero padding from a fixed-width id slot.
func trimID(raw []byte) string {
	for i, b := range raw {
		if b == 0 {
			return string(raw[:i])
		}
	}
	return string(raw)
}

// tradeReports builds the two execution reports for a trade, one addressed to
// each counterparty.
func tradeReports(trade common.Trade) (buyReport, sellReport Report) {
	build := func(side common.Side, id, counter string) Report {
		return Report{
			MessageType:    ExecutionReport,
			Side:           side,
			Timestamp:      uint64(trade.MatchedAt.UnixNano()),
			Price:          trade.Price,
			Quantity:       trade.Quantity,
			OrderID:        id,
			CounterOrderID: counter,
		}
	}
	return build(common.Buy, trade.BuyOrderID, trade.SellOrderID),
		build(common.Sell, trade.SellOrderID, trade.BuyOrderID)
}

func ackReport(order common.Order) Report {
	return Report{
		MessageType: OrderAck,
		Side:        order.Side,
		TimeInForce: order.TimeInForce,
		Timestamp:   uint64(order.SubmittedAt.UnixNano()),
		Price:       order.Price,
		Quantity:    order.Quantity,
		OrderID:     order.ID,
	}
}

func expiryReport(id string, side common.Side, now time.Time) Report {
	return Report{
		MessageType: ExpiryReport,
		Side:        side,
		Timestamp:   uint64(now.UnixNano()),
		OrderID:     id,
	}
}

func errorReport(err error, now time.Time) Report {
	errStr := err.Error()
	return Report{
		MessageType: ErrorReport,
		Timestamp:   uint64(now.UnixNano()),
		ErrStrLen:   uint16(len(errStr)),
		Err:         errStr,
	}
}
