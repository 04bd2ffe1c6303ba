package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/lbianlbian/progv2/internal/exchange-service/engine"
)

// Codec de estado persistido: layout fixo com byte de versão na frente, já
// que compatibilidade com registros legados não é exigida.
const (
	recordSchemaVersion = 1
	recordBlobLen       = 1 + 20 + 8 + 8 + 32 + 32 + 32 + 1 + 8 + 1 + 8
	delaySchemaVersion  = 1
	delayBlobLen        = 1 + 1 + 1 + 32
)

// EncodeRecord serializa um BetRecord no layout persistido.
func EncodeRecord(r *engine.BetRecord) []byte {
	b := make([]byte, recordBlobLen)
	b[0] = recordSchemaVersion
	putOutcome(b[1:21], r.Outcome)
	binary.LittleEndian.PutUint64(b[21:29], r.Stake0)
	binary.LittleEndian.PutUint64(b[29:37], r.Stake1)
	copy(b[37:69], r.Wallet0[:])
	copy(b[69:101], r.Wallet1[:])
	copy(b[101:133], r.RentPayer[:])
	if r.IsFreeBet {
		b[133] = 1
	}
	binary.LittleEndian.PutUint64(b[134:142], r.PlacedAt)
	if r.ToAggregate {
		b[142] = 1
	}
	binary.LittleEndian.PutUint64(b[143:151], r.Deposit)
	return b
}

// DecodeRecord reconstrói um BetRecord de um blob persistido.
func DecodeRecord(b []byte) (*engine.BetRecord, error) {
	if len(b) != recordBlobLen {
		return nil, fmt.Errorf("record blob: want %d bytes, got %d: %w", recordBlobLen, len(b), engine.ErrInvalidAccountData)
	}
	if b[0] != recordSchemaVersion {
		return nil, fmt.Errorf("record blob: unknown schema version %d: %w", b[0], engine.ErrInvalidAccountData)
	}
	r := &engine.BetRecord{
		Outcome:     getOutcome(b[1:21]),
		Stake0:      binary.LittleEndian.Uint64(b[21:29]),
		Stake1:      binary.LittleEndian.Uint64(b[29:37]),
		IsFreeBet:   b[133] == 1,
		PlacedAt:    binary.LittleEndian.Uint64(b[134:142]),
		ToAggregate: b[142] == 1,
		Deposit:     binary.LittleEndian.Uint64(b[143:151]),
	}
	copy(r.Wallet0[:], b[37:69])
	copy(r.Wallet1[:], b[69:101])
	copy(r.RentPayer[:], b[101:133])
	return r, nil
}

// EncodeDelay serializa a configuração de atraso de cancelamento.
func EncodeDelay(d *engine.CancelDelay) []byte {
	b := make([]byte, delayBlobLen)
	b[0] = delaySchemaVersion
	if d.IsReal {
		b[1] = 1
	}
	b[2] = d.Seconds
	copy(b[3:35], d.Program[:])
	return b
}

// DecodeDelay reconstrói a configuração de atraso.
func DecodeDelay(b []byte) (*engine.CancelDelay, error) {
	if len(b) != delayBlobLen {
		return nil, fmt.Errorf("delay blob: want %d bytes, got %d: %w", delayBlobLen, len(b), engine.ErrInvalidAccountData)
	}
	if b[0] != delaySchemaVersion {
		return nil, fmt.Errorf("delay blob: unknown schema version %d: %w", b[0], engine.ErrInvalidAccountData)
	}
	d := &engine.CancelDelay{IsReal: b[1] == 1, Seconds: b[2]}
	copy(d.Program[:], b[3:35])
	return d, nil
}
