package cache

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMid = uint64(1) << 63

func redisAddr() string {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	return addr
}

// newTestAtomicCounter 构建连接本地Redis的AtomicCounter,Redis不可用时跳过测试
func newTestAtomicCounter(t *testing.T) *AtomicCounter {
	t.Helper()

	addr := redisAddr()
	parts := strings.Split(addr, ":")
	require.Equal(t, 2, len(parts))
	port, err := strconv.Atoi(parts[1])
	require.Nil(t, err)

	redisServer := &RedisServer{
		ID:   "test",
		Host: parts[0],
		Port: port,
	}
	var redisConf = RedisConf{
		Servers: []*RedisServer{redisServer},
		Groups:  map[string][]string{"test": {"test"}},
	}
	require.Nil(t, redisConf.Parse())

	client := NewRedisClientWithConf(&redisConf)
	param := NewParamConf("test", "fc_test:", 0)

	_, err = client.Do(param.NewParamKey("ping"), func(conn redis.Conn) (interface{}, error) {
		return conn.Do("PING")
	})
	if err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}

	counter, err := NewAtomicCounter(client, param)
	require.Nil(t, err)
	return counter
}

func testKey(name string) string {
	return fmt.Sprintf("%s_%d", name, time.Now().UnixNano())
}

func TestAtomicCounterOffset(t *testing.T) {
	counter := newTestAtomicCounter(t)
	key := testKey("offset")
	defer counter.Del(key)

	//创建并累加
	val, ok, err := counter.Offset(key, 5, testMid, true)
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.Equal(t, testMid+5, val)

	val, ok, err = counter.Offset(key, -8, testMid, true)
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(-3), int64(val-testMid))

	val, ok, err = counter.Offset(key, 3, testMid, true)
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.Equal(t, testMid, val)
}

func TestAtomicCounterOffsetNoCreate(t *testing.T) {
	counter := newTestAtomicCounter(t)
	key := testKey("nocreate")

	//key不存在且不允许创建
	_, ok, err := counter.Offset(key, -5, testMid, false)
	assert.Nil(t, err)
	assert.False(t, ok)

	_, exist, err := counter.Get(key)
	assert.Nil(t, err)
	assert.False(t, exist)

	//创建后可以继续累加
	_, ok, err = counter.Offset(key, 5, testMid, true)
	assert.Nil(t, err)
	assert.True(t, ok)
	defer counter.Del(key)

	val, ok, err := counter.Offset(key, -5, testMid, false)
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.Equal(t, testMid, val)
}

func TestAtomicCounterGet(t *testing.T) {
	counter := newTestAtomicCounter(t)
	key := testKey("get")
	defer counter.Del(key)

	_, ok, err := counter.Get(key)
	assert.Nil(t, err)
	assert.False(t, ok)

	_, _, err = counter.Offset(key, 7, testMid, true)
	require.Nil(t, err)

	val, ok, err := counter.Get(key)
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.Equal(t, testMid+7, val)
}

func TestAtomicCounterGetMulti(t *testing.T) {
	counter := newTestAtomicCounter(t)
	key1 := testKey("multi1")
	key2 := testKey("multi2")
	missing := testKey("missing")
	defer counter.Del(key1)
	defer counter.Del(key2)

	_, _, err := counter.Offset(key1, 1, testMid, true)
	require.Nil(t, err)
	_, _, err = counter.Offset(key2, -2, testMid, true)
	require.Nil(t, err)

	values, err := counter.GetMulti([]string{key1, key2, missing})
	assert.Nil(t, err)
	require.Equal(t, 2, len(values))
	assert.Equal(t, testMid+1, values[key1])
	assert.Equal(t, int64(-2), int64(values[key2]-testMid))

	_, ok := values[missing]
	assert.False(t, ok)

	values, err = counter.GetMulti(nil)
	assert.Nil(t, err)
	assert.Empty(t, values)
}

func TestAtomicCounterAdd(t *testing.T) {
	counter := newTestAtomicCounter(t)
	key := testKey("lock")
	defer counter.Del(key)

	created, err := counter.Add(key, 30)
	assert.Nil(t, err)
	assert.True(t, created)

	//标记存在期间再次Add失败
	created, err = counter.Add(key, 30)
	assert.Nil(t, err)
	assert.False(t, created)

	_, err = counter.Add(key, 0)
	assert.NotNil(t, err)
}

func TestAtomicCounterAddExpire(t *testing.T) {
	counter := newTestAtomicCounter(t)
	key := testKey("lockexp")
	defer counter.Del(key)

	created, err := counter.Add(key, 1)
	assert.Nil(t, err)
	assert.True(t, created)

	time.Sleep(1100 * time.Millisecond)

	created, err = counter.Add(key, 1)
	assert.Nil(t, err)
	assert.True(t, created)
}

func TestStoredMapping(t *testing.T) {
	//偏移二进制映射保持序关系,中点映射为0
	assert.Equal(t, int64(0), toStored(testMid))
	assert.Equal(t, testMid, fromStored(0))

	for _, v := range []uint64{0, 1, testMid - 1, testMid, testMid + 1, ^uint64(0)} {
		assert.Equal(t, v, fromStored(toStored(v)))
	}
	assert.True(t, toStored(testMid-1) < toStored(testMid))
	assert.True(t, toStored(testMid) < toStored(testMid+1))
}
