package poolauth

import (
	"crypto/sha256"
)

// Semente e bump fixos da autoridade derivada da pool. Só a lógica de
// casamento do programa autoriza saída de fundos da pool; nenhuma chave
// humana corresponde a esta identidade.
const (
	seed = "pool"
	bump = 0xFF
)

// Derive calcula a autoridade derivada (não-humana) da pool para o programa
// dado. Determinística: o serviço de custódia recomputa e compara.
func Derive(program [32]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(seed))
	h.Write([]byte{bump})
	h.Write(program[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
