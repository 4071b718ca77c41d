package internal

import (
	"fmt"
	"iter"
)

// Number is any integer type that a define may hold.
type Number interface {
	~int | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// IterSeq2Concat concatenates multiple dual-return iterators into a single iterator sequence.
func IterSeq2Concat[T1 any, T2 any](seqs ...iter.Seq2[T1, T2]) iter.Seq2[T1, T2] {
	return func(yield func(T1, T2) bool) {
		for _, seq := range seqs {
			for val1, val2 := range seq {
				if !yield(val1, val2) {
					return
				}
			}
		}
	}
}

// Define formats a numeric define in a form the assembler accepts.
func Define[T Number](value T) string {
	return fmt.Sprintf("%#x", uint64(value))
}
