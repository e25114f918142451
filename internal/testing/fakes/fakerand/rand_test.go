package fakerand

import (
	"bytes"
	"errors"
	"testing"
)

func TestRandom(t *testing.T) {
	tests := []struct {
		name string
		r    *Random
		want []byte
	}{
		{"sequential", NewSequential(), []byte{0, 1, 2, 3, 4}},
		{"fixed repeats", NewFixed([]byte{0xAB, 0xCD}), []byte{0xAB, 0xCD, 0xAB, 0xCD, 0xAB}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 5)
			if n, err := tt.r.Read(buf); err != nil || n != 5 {
				t.Fatalf("Read() = %d, %v", n, err)
			}
			if !bytes.Equal(buf, tt.want) {
				t.Errorf("Read() filled %v, want %v", buf, tt.want)
			}
		})
	}
}

func TestRandom_SequentialContinues(t *testing.T) {
	r := NewSequential()
	a, b := make([]byte, 2), make([]byte, 2)
	r.Read(a)
	r.Read(b)
	if !bytes.Equal(b, []byte{2, 3}) {
		t.Errorf("second Read() = %v, want [2 3]", b)
	}
}

func TestRandom_Failing(t *testing.T) {
	boom := errors.New("entropy exhausted")
	if _, err := NewFailing(boom).Read(make([]byte, 8)); !errors.Is(err, boom) {
		t.Errorf("Read() error = %v, want %v", err, boom)
	}
}
