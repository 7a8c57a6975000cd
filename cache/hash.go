package cache

import (
	"encoding/binary"
)

// MurmurHash32 MurmurHash2的32位版本,用于将key映射到组内的Redis实例
func MurmurHash32(data []byte, seed uint32) uint32 {
	const m uint32 = 0x5bd1e995
	const r = 24

	var length = uint32(len(data))
	var h = seed ^ length

	nblocks := int(length / 4)
	for i := 0; i < nblocks; i++ {
		k := binary.LittleEndian.Uint32(data[i*4:])
		k *= m
		k ^= k >> r
		k *= m

		h *= m
		h ^= k
	}

	tailIndex := nblocks * 4
	switch length & 3 {
	case 3:
		h ^= uint32(data[tailIndex+2]) << 16
		fallthrough
	case 2:
		h ^= uint32(data[tailIndex+1]) << 8
		fallthrough
	case 1:
		h ^= uint32(data[tailIndex])
		h *= m
	}

	h ^= h >> 13
	h *= m
	h ^= h >> 15
	return h
}
