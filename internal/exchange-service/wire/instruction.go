package wire

import (
	"github.com/lbianlbian/progv2/internal/exchange-service/engine"
)

// AccountMeta referencia um recurso anexado à instrução (conta de registro,
// conta de token, identidade), na ordem herdada do formato legado.
type AccountMeta struct {
	Key    engine.Identity `json:"key"`
	Signer bool            `json:"signer"`
}

// Instruction é a requisição bruta contra o programa: a lista ordenada de
// recursos anexados e o payload binário. O recurso 0 é sempre o slot alvo.
//
// Layout legado dos recursos por operação:
//
//	open:    [registro, programaCustodia, origem, destino, autoridade, apostador, rentPayer]
//	match:   [registro, programaCustodia, origem, destino, apostador]
//	partial: [registro, programaCustodia, origem, destino, apostador, rentPayer, registroFilho]
//	cancel:  [registro, programaCustodia, origem, destino, cancelador, rentPayer, autoridadePool (, configAtraso)]
//	delay:   [configAtraso, admin]
type Instruction struct {
	Accounts []AccountMeta `json:"accounts"`
	Data     []byte        `json:"data"`
}

// Slot devolve o identificador do slot alvo (recurso 0) em hex.
func (in *Instruction) Slot() string {
	if len(in.Accounts) == 0 {
		return ""
	}
	return in.Accounts[0].Key.String()
}

// OpKind discrimina a operação no formato etiquetado (v2).
type OpKind uint8

const (
	OpUnknown OpKind = iota
	OpOpen
	OpMatch
	OpPartialMatch
	OpCancel
	OpRefund
	OpSetDelay
	// OpGrade é a rota reservada de grade/push, hoje um no-op.
	OpGrade
)

func (k OpKind) String() string {
	switch k {
	case OpOpen:
		return "open"
	case OpMatch:
		return "match"
	case OpPartialMatch:
		return "partial_match"
	case OpCancel:
		return "cancel"
	case OpRefund:
		return "refund"
	case OpSetDelay:
		return "set_delay"
	case OpGrade:
		return "grade"
	}
	return "unknown"
}

// versionMarker antecede o byte de operação no formato etiquetado.
const versionMarker = 0xFE

// taggedPayloadLen devolve o comprimento de payload exigido pela operação no
// formato etiquetado.
func taggedPayloadLen(k OpKind) (int, bool) {
	switch k {
	case OpOpen:
		return OpenPayloadLen, true
	case OpMatch, OpPartialMatch:
		return MatchPayloadLen, true
	case OpCancel, OpRefund:
		return CancelPayloadLen, true
	case OpSetDelay:
		return SetDelayPayloadLen, true
	case OpGrade:
		return 0, true
	}
	return 0, false
}

// Tagged devolve a operação etiquetada e o payload legado embutido, ou
// ok=false quando a instrução está no formato legado por forma.
//
// O marcador sozinho não basta: um payload legado pode começar com 0xFE (id
// de esporte 254) seguido de um byte que coincide com uma operação válida.
// Por isso o comprimento total também precisa bater com a operação
// etiquetada — os comprimentos etiquetados (payload legado + 2) nunca
// coincidem com um comprimento legado, o que torna os formatos disjuntos.
func (in *Instruction) Tagged() (OpKind, []byte, bool) {
	if len(in.Data) < 2 || in.Data[0] != versionMarker {
		return OpUnknown, nil, false
	}
	k := OpKind(in.Data[1])
	want, ok := taggedPayloadLen(k)
	if !ok || len(in.Data)-2 != want {
		return OpUnknown, nil, false
	}
	return k, in.Data[2:], true
}

// Tag prefixa um payload legado com o marcador de versão e a operação.
func Tag(k OpKind, payload []byte) []byte {
	out := make([]byte, 0, len(payload)+2)
	out = append(out, versionMarker, byte(k))
	return append(out, payload...)
}
