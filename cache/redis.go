package cache

import (
	"errors"
	"fmt"

	"github.com/gomodule/redigo/redis"
)

// RedisClient Redis客户端,根据Param的group和key将操作路由到对应的Redis实例
type RedisClient struct {
	groups map[string][]*RedisServer
}

// NewRedisClient create redis client with groups
func NewRedisClient(groups map[string][]*RedisServer) *RedisClient {
	return &RedisClient{groups: groups}
}

// NewRedisClientWithConf create redis client from conf,conf必须已经完成Parse
func NewRedisClientWithConf(conf *RedisConf) *RedisClient {
	return &RedisClient{groups: conf.groups}
}

// GetGroupServers 取得group对应的所有Redis实例
func (p *RedisClient) GetGroupServers(group string) ([]*RedisServer, error) {
	servers := p.groups[group]
	if len(servers) == 0 {
		return nil, fmt.Errorf("can't find servers for group %s", group)
	}
	return servers, nil
}

// GetServer 根据key的hash选择group内的Redis实例
func (p *RedisClient) GetServer(group, key string) (*RedisServer, error) {
	servers := p.groups[group]
	if len(servers) == 0 {
		return nil, fmt.Errorf("can't find servers for group %s", group)
	}
	if len(servers) == 1 {
		return servers[0], nil
	}
	index := MurmurHash32([]byte(key), 0) % uint32(len(servers))
	return servers[index], nil
}

func (p *RedisClient) conn(param Param) (redis.Conn, error) {
	if param == nil || param.Key() == "" {
		return nil, errors.New("invalid param")
	}
	server, err := p.GetServer(param.Group(), param.Key())
	if err != nil {
		return nil, err
	}
	return server.GetConn()
}

// Do 在param对应的Redis实例上执行f
func (p *RedisClient) Do(param Param, f func(conn redis.Conn) (interface{}, error)) (reply interface{}, err error) {
	conn, err := p.conn(param)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return f(conn)
}

// Eval 在param对应的Redis实例上执行script,keysAndArgs为脚本的KEYS和ARGV
func (p *RedisClient) Eval(param Param, script *redis.Script, keysAndArgs ...interface{}) (reply interface{}, err error) {
	if script == nil {
		return nil, errors.New("no script")
	}
	return p.Do(param, func(conn redis.Conn) (interface{}, error) {
		return script.Do(conn, keysAndArgs...)
	})
}

// Del 删除param.Key
func (p *RedisClient) Del(param Param) (deleted bool, err error) {
	reply, err := p.Do(param, func(conn redis.Conn) (interface{}, error) {
		return conn.Do("DEL", param.Key())
	})
	if err != nil {
		return false, err
	}
	count, err := redis.Int64(reply, err)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
