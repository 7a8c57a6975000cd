package cache

import (
	"errors"
	"fmt"

	c "github.com/d0ngw/fastcounter/common"
	"github.com/gomodule/redigo/redis"
)

// signBit uint64计数值与Redis带符号存储值之间的映射位
const signBit = uint64(1) << 63

// toStored maps a raw unsigned counter value to its Redis storage value.
// The mapping flips the top bit (offset binary),so the midpoint of the
// uint64 range is stored as 0 and INCRBY/DECRBY never run near the int64
// bounds in normal use.
func toStored(v uint64) int64 {
	return int64(v ^ signBit)
}

// fromStored is the inverse of toStored.
func fromStored(s int64) uint64 {
	return uint64(s) ^ signBit
}

// offsetScript 原子地对已有的计数值执行INCRBY;当key不存在时,仅在ARGV[2]=='1'
// 时以ARGV[3]作为初始应用值创建,并按ARGV[4]设置过期时间
var offsetScript = redis.NewScript(1, `
if redis.call('EXISTS', KEYS[1]) == 1 then
  return redis.call('INCRBY', KEYS[1], ARGV[1])
end
if ARGV[2] == '1' then
  redis.call('SET', KEYS[1], ARGV[3])
  if tonumber(ARGV[4]) > 0 then
    redis.call('EXPIRE', KEYS[1], ARGV[4])
  end
  return ARGV[3]
end
return false
`)

// AtomicCounter 基于Redis的原子计数原语,计数值为无符号的64位整数
type AtomicCounter struct {
	client *RedisClient
	param  *ParamConf
}

// NewAtomicCounter create AtomicCounter
func NewAtomicCounter(client *RedisClient, param *ParamConf) (*AtomicCounter, error) {
	if c.HasNil(client, param) {
		return nil, errors.New("client and param must not be nil")
	}
	return &AtomicCounter{client: client, param: param}, nil
}

// Offset atomically adds delta to the counter at key and returns the new raw
// value. When the key is absent: if create is true the counter is initialized
// to initial before delta is applied,otherwise ok is false and nothing is
// written.
func (p *AtomicCounter) Offset(key string, delta int64, initial uint64, create bool) (val uint64, ok bool, err error) {
	if key == "" {
		return 0, false, errors.New("key must not be empty")
	}
	param := p.param.NewParamKey(key)
	createFlag := "0"
	if create {
		createFlag = "1"
	}
	reply, err := p.client.Eval(param, offsetScript, param.Key(), delta, createFlag, toStored(initial)+delta, param.Expire())
	if err != nil {
		return 0, false, err
	}
	stored, err := redis.Int64(reply, err)
	if err == redis.ErrNil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return fromStored(stored), true, nil
}

// Get 取得key的当前计数值,key不存在时ok为false
func (p *AtomicCounter) Get(key string) (val uint64, ok bool, err error) {
	if key == "" {
		return 0, false, errors.New("key must not be empty")
	}
	param := p.param.NewParamKey(key)
	reply, err := p.client.Do(param, func(conn redis.Conn) (interface{}, error) {
		return conn.Do("GET", param.Key())
	})
	if err != nil {
		return 0, false, err
	}
	stored, err := redis.Int64(reply, err)
	if err == redis.ErrNil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return fromStored(stored), true, nil
}

// GetMulti 批量取得keys的计数值,不存在的key不会出现在结果中;同一实例上的
// key通过一次MGET完成
func (p *AtomicCounter) GetMulti(keys []string) (map[string]uint64, error) {
	result := make(map[string]uint64, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	//按Redis实例对key分组
	type serverKeys struct {
		server *RedisServer
		keys   []string
	}
	grouped := map[*RedisServer]*serverKeys{}
	order := make([]*serverKeys, 0, 1)
	for _, key := range keys {
		if key == "" {
			return nil, errors.New("key must not be empty")
		}
		fullKey := p.param.KeyPrefix() + key
		server, err := p.client.GetServer(p.param.Group(), fullKey)
		if err != nil {
			return nil, err
		}
		sk := grouped[server]
		if sk == nil {
			sk = &serverKeys{server: server}
			grouped[server] = sk
			order = append(order, sk)
		}
		sk.keys = append(sk.keys, key)
	}

	for _, sk := range order {
		if err := p.mget(sk.server, sk.keys, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (p *AtomicCounter) mget(server *RedisServer, keys []string, result map[string]uint64) error {
	conn, err := server.GetConn()
	if err != nil {
		return err
	}
	defer conn.Close()

	args := make([]interface{}, 0, len(keys))
	for _, key := range keys {
		args = append(args, p.param.KeyPrefix()+key)
	}
	values, err := redis.Values(conn.Do("MGET", args...))
	if err != nil {
		return err
	}
	if len(values) != len(keys) {
		return fmt.Errorf("bad MGET reply length:%d,expect:%d", len(values), len(keys))
	}
	for i, v := range values {
		if v == nil {
			continue
		}
		stored, err := redis.Int64(v, nil)
		if err != nil {
			return fmt.Errorf("parse key %s fail,err:%s", keys[i], err)
		}
		result[keys[i]] = fromStored(stored)
	}
	return nil
}

// Add 当key不存在时创建它并设置ttlSeconds秒的过期时间,返回是否由本次调用创建
func (p *AtomicCounter) Add(key string, ttlSeconds int) (bool, error) {
	if key == "" {
		return false, errors.New("key must not be empty")
	}
	if ttlSeconds <= 0 {
		return false, fmt.Errorf("invalid ttl:%d", ttlSeconds)
	}
	param := p.param.NewParamKey(key)
	reply, err := p.client.Do(param, func(conn redis.Conn) (interface{}, error) {
		return conn.Do("SET", param.Key(), 1, "EX", ttlSeconds, "NX")
	})
	if err != nil {
		return false, err
	}
	_, err = redis.String(reply, err)
	if err == redis.ErrNil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Del 删除key
func (p *AtomicCounter) Del(key string) (bool, error) {
	if key == "" {
		return false, errors.New("key must not be empty")
	}
	return p.client.Del(p.param.NewParamKey(key))
}
