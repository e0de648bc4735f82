package capture

import "unsafe"

// float32SliceToBytes reinterprets a []float32 as its underlying bytes
// in native endianness, mirroring the zero-copy bytemuck::cast_slice
// used on the capture side of the original pipeline. The returned
// slice aliases buf and is only valid until the caller reuses buf.
func float32SliceToBytes(buf []float32) []byte {
	if len(buf) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&buf[0])), len(buf)*4)
}
