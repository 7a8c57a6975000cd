package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMurmurHash32(t *testing.T) {
	key := []byte("counter_name")

	//相同输入的散列值稳定
	assert.Equal(t, MurmurHash32(key, 0), MurmurHash32(key, 0))
	assert.Equal(t, MurmurHash32(nil, 0), MurmurHash32([]byte{}, 0))

	//不同的seed或输入产生不同的散列值
	assert.NotEqual(t, MurmurHash32(key, 0), MurmurHash32(key, 1))
	assert.NotEqual(t, MurmurHash32(key, 0), MurmurHash32([]byte("other_name"), 0))

	//尾部不足4字节的输入也参与散列
	assert.NotEqual(t, MurmurHash32([]byte("abcde"), 0), MurmurHash32([]byte("abcdf"), 0))
}
