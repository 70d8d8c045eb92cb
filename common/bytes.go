package common

import "unsafe"

// SliceToBytes reinterprets data as raw bytes for a queue write. The result aliases data and
// is only valid while data is.
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	n := len(data) * int(unsafe.Sizeof(data[0]))
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(data))), n)
}
