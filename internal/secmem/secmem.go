// Package secmem zeroes memory that held secret key material.
//
// Wipe overwrites through crypto/subtle.XORBytes (x XOR x = 0), which is an
// assembly routine on the supported architectures, so the compiler cannot
// prove the store dead and drop it. Guard ties wiping to garbage collection
// for values that are never explicitly destroyed.
package secmem

import (
	"crypto/subtle"
	"math/big"
	"runtime"
	"unsafe"
)

// Wipe sets every byte of b to zero.
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.XORBytes(b, b, b)
	runtime.KeepAlive(b)
}

// WipeAll wipes each buffer in bufs.
func WipeAll(bufs ...[]byte) {
	for _, b := range bufs {
		Wipe(b)
	}
}

// WipeBig zeroes the words backing n through Wipe and sets n to zero.
func WipeBig(n *big.Int) {
	if n == nil {
		return
	}
	Wipe(wordBytes(n.Bits()))
	n.SetInt64(0)
}

// wordBytes returns the memory of words as a byte slice sharing its backing
// array.
func wordBytes(words []big.Word) []byte {
	if len(words) == 0 {
		return nil
	}
	size := len(words) * int(unsafe.Sizeof(words[0]))
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)
}

// IsZero reports whether every byte of b is zero.
func IsZero(b []byte) bool {
	var acc byte
	for _, c := range b {
		acc |= c
	}
	return acc == 0
}

// Wiper is a container of secret buffers that can zero its contents.
type Wiper interface {
	Wipe()
}

// Guard arranges for w to be wiped once owner becomes unreachable. w must be
// a separate allocation that does not reference owner. The cleanup calls
// w.Wipe at collection time, so buffers stored into w after Guard returns are
// covered too. Wiping twice is harmless, so an explicit wipe before
// collection is fine.
func Guard[T any](owner *T, w Wiper) {
	runtime.AddCleanup(owner, Wiper.Wipe, w)
}
