package deferred

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/d0ngw/fastcounter/cache"
	c "github.com/d0ngw/fastcounter/common"
	"github.com/d0ngw/fastcounter/counter"
	"github.com/gomodule/redigo/redis"
)

// DefaultQueueShards 默认的任务队列分片数
const DefaultQueueShards = 5

// Conf 延迟任务队列的配置
type Conf struct {
	Shards int `yaml:"shards"` //任务队列的分片数
}

// Parse implements Configurer.Parse
func (p *Conf) Parse() error {
	if p.Shards <= 0 {
		p.Shards = DefaultQueueShards
	}
	return nil
}

func queueKey(shard int) string {
	return fmt.Sprintf("q:%d", shard)
}

// QueueDispatcher implements counter.Dispatcher,将任务编码后LPUSH到按随机
// 下标选择的分片队列中,以分散各队列的压力
type QueueDispatcher struct {
	client *cache.RedisClient
	param  *cache.ParamConf
	shards int
}

// NewQueueDispatcher create QueueDispatcher,shards<=0时使用DefaultQueueShards
func NewQueueDispatcher(client *cache.RedisClient, param *cache.ParamConf, shards int) (*QueueDispatcher, error) {
	if c.HasNil(client, param) {
		return nil, errors.New("client and param must not be nil")
	}
	if shards <= 0 {
		shards = DefaultQueueShards
	}
	return &QueueDispatcher{
		client: client,
		param:  param,
		shards: shards,
	}, nil
}

// Submit implements Dispatcher.Submit,提交成功后任务会被至少执行一次
func (p *QueueDispatcher) Submit(job *counter.Job) error {
	if job == nil || job.Op == "" {
		return errors.New("invalid job")
	}
	payload, err := encodeBytes(job)
	if err != nil {
		return fmt.Errorf("encode job fail,err:%s", err)
	}

	param := p.param.NewParamKey(queueKey(rand.Intn(p.shards)))
	_, err = p.client.Do(param, func(conn redis.Conn) (interface{}, error) {
		return conn.Do("LPUSH", param.Key(), payload)
	})
	if err != nil {
		return fmt.Errorf("push job to %s fail,err:%s", param.Key(), err)
	}
	return nil
}
