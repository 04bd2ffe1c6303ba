package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/lbianlbian/progv2/internal/exchange-service/engine"
)

// Tamanhos dos payloads legados do contrato de fio. O comprimento faz parte
// da chave de roteamento e precisa ser preservado bit a bit.
const (
	OpenPayloadLen     = 38
	MatchPayloadLen    = 37
	CancelPayloadLen   = 21
	SetDelayPayloadLen = 1
)

// putOutcome grava a tupla de desfecho nos offsets 0..19, little-endian.
func putOutcome(b []byte, o engine.Outcome) {
	b[0] = o.Sport
	binary.LittleEndian.PutUint32(b[1:5], o.League)
	binary.LittleEndian.PutUint64(b[5:13], o.Event)
	b[13] = o.Period
	binary.LittleEndian.PutUint16(b[14:16], o.Market)
	binary.LittleEndian.PutUint32(b[16:20], o.Player)
}

func getOutcome(b []byte) engine.Outcome {
	return engine.Outcome{
		Sport:  b[0],
		League: binary.LittleEndian.Uint32(b[1:5]),
		Event:  binary.LittleEndian.Uint64(b[5:13]),
		Period: b[13],
		Market: binary.LittleEndian.Uint16(b[14:16]),
		Player: binary.LittleEndian.Uint32(b[16:20]),
	}
}

// OpenPayload é o payload de abertura de ordem (38 bytes).
type OpenPayload struct {
	Outcome     engine.Outcome
	Stake0      uint64
	Stake1      uint64
	Side        uint8
	ToAggregate bool
}

func DecodeOpenPayload(b []byte) (*OpenPayload, error) {
	if len(b) != OpenPayloadLen {
		return nil, fmt.Errorf("open payload: want %d bytes, got %d: %w", OpenPayloadLen, len(b), engine.ErrInvalidInstructionData)
	}
	return &OpenPayload{
		Outcome:     getOutcome(b),
		Stake0:      binary.LittleEndian.Uint64(b[20:28]),
		Stake1:      binary.LittleEndian.Uint64(b[28:36]),
		Side:        b[36],
		ToAggregate: b[37] == 1,
	}, nil
}

func EncodeOpenPayload(p *OpenPayload) []byte {
	b := make([]byte, OpenPayloadLen)
	putOutcome(b, p.Outcome)
	binary.LittleEndian.PutUint64(b[20:28], p.Stake0)
	binary.LittleEndian.PutUint64(b[28:36], p.Stake1)
	b[36] = p.Side
	if p.ToAggregate {
		b[37] = 1
	}
	return b
}

// MatchPayload é o payload de casamento total ou parcial (37 bytes).
type MatchPayload struct {
	Outcome engine.Outcome
	Stake0  uint64
	Stake1  uint64
	Side    uint8
}

func DecodeMatchPayload(b []byte) (*MatchPayload, error) {
	if len(b) != MatchPayloadLen {
		return nil, fmt.Errorf("match payload: want %d bytes, got %d: %w", MatchPayloadLen, len(b), engine.ErrInvalidInstructionData)
	}
	return &MatchPayload{
		Outcome: getOutcome(b),
		Stake0:  binary.LittleEndian.Uint64(b[20:28]),
		Stake1:  binary.LittleEndian.Uint64(b[28:36]),
		Side:    b[36],
	}, nil
}

func EncodeMatchPayload(p *MatchPayload) []byte {
	b := make([]byte, MatchPayloadLen)
	putOutcome(b, p.Outcome)
	binary.LittleEndian.PutUint64(b[20:28], p.Stake0)
	binary.LittleEndian.PutUint64(b[28:36], p.Stake1)
	b[36] = p.Side
	return b
}

// CancelPayload é o payload de cancelamento (21 bytes: tupla + lado).
type CancelPayload struct {
	Outcome engine.Outcome
	Side    uint8
}

func DecodeCancelPayload(b []byte) (*CancelPayload, error) {
	if len(b) != CancelPayloadLen {
		return nil, fmt.Errorf("cancel payload: want %d bytes, got %d: %w", CancelPayloadLen, len(b), engine.ErrInvalidInstructionData)
	}
	return &CancelPayload{Outcome: getOutcome(b), Side: b[20]}, nil
}

func EncodeCancelPayload(p *CancelPayload) []byte {
	b := make([]byte, CancelPayloadLen)
	putOutcome(b, p.Outcome)
	b[20] = p.Side
	return b
}

// DecodeSetDelayPayload lê os segundos de atraso (1 byte).
func DecodeSetDelayPayload(b []byte) (uint8, error) {
	if len(b) != SetDelayPayloadLen {
		return 0, fmt.Errorf("set-delay payload: want %d byte, got %d: %w", SetDelayPayloadLen, len(b), engine.ErrInvalidInstructionData)
	}
	return b[0], nil
}
