package poolauth

import "testing"

func TestDeriveIsDeterministic(t *testing.T) {
	var program [32]byte
	for i := range program {
		program[i] = 0xA3
	}
	a := Derive(program)
	b := Derive(program)
	if a != b {
		t.Fatal("same program derived two different authorities")
	}
	if a == [32]byte{} {
		t.Fatal("derived authority is blank")
	}
	if a == program {
		t.Fatal("derived authority equals the program identity")
	}
}

func TestDeriveVariesPerProgram(t *testing.T) {
	var p1, p2 [32]byte
	p1[0] = 1
	p2[0] = 2
	if Derive(p1) == Derive(p2) {
		t.Fatal("distinct programs derived the same authority")
	}
}
