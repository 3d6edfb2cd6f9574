package util

import "iter"

func IterFirst[V any](seq iter.Seq[V]) (V, bool) {
	for v := range seq {
		return v, true
	}
	var v V
	return v, false
}

func IterFirst2[K, V any](seq iter.Seq2[K, V]) (K, V, bool) {
	for k, v := range seq {
		return k, v, true
	}
	var (
		k K
		v V
	)
	return k, v, false
}

// SeqFirst returns the first value produced by seq, or the zero value and false if seq is empty.
func SeqFirst[V any](seq iter.Seq[V]) (V, bool) { return IterFirst(seq) }

// SeqValues adapts a key/value sequence into a sequence of its values, dropping the keys.
func SeqValues[K, V any](seq iter.Seq2[K, V]) iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, v := range seq {
			if !yield(v) {
				return
			}
		}
	}
}
