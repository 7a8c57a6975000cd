package deferred

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/d0ngw/fastcounter/cache"
	c "github.com/d0ngw/fastcounter/common"
	"github.com/d0ngw/fastcounter/counter"
	"github.com/gomodule/redigo/redis"
)

// brpopTimeoutSeconds BRPOP的阻塞超时,必须小于连接池的读超时
const brpopTimeoutSeconds = 1

// JobHandler 任务的处理函数
type JobHandler func(job *counter.Job) error

// Worker 消费分片任务队列并执行任务,处理失败的任务会被重新入队,
// 因此任务可能被执行多次
type Worker struct {
	c.BaseService
	client   *cache.RedisClient
	param    *cache.ParamConf
	shards   int
	handler  JobHandler
	stopChan chan struct{}
	stop     int32
	wg       sync.WaitGroup
}

// NewWorker create Worker,shards必须与QueueDispatcher的分片数一致
func NewWorker(name string, client *cache.RedisClient, param *cache.ParamConf, shards int, handler JobHandler) (*Worker, error) {
	if c.HasNil(client, param, handler) {
		return nil, errors.New("client,param and handler must not be nil")
	}
	if shards <= 0 {
		shards = DefaultQueueShards
	}
	return &Worker{
		BaseService: c.BaseService{SName: name},
		client:      client,
		param:       param,
		shards:      shards,
		handler:     handler,
		stopChan:    make(chan struct{}),
	}, nil
}

// Init implements Initable.Init
func (p *Worker) Init() error {
	if c.HasNil(p.client, p.param, p.handler) {
		return errors.New("client,param and handler must be set")
	}
	if p.shards <= 0 {
		return errors.New("shards must be >0")
	}
	return nil
}

// Start implements Service.Start,每个分片队列一个消费goroutine
func (p *Worker) Start() bool {
	for i := 0; i < p.shards; i++ {
		p.wg.Add(1)
		go func(shard int) {
			defer p.wg.Done()
			p.consume(shard)
		}(i)
	}
	c.Infof("%s started,%d queue shards", p.Name(), p.shards)
	return true
}

// Stop implements Service.Stop
func (p *Worker) Stop() bool {
	if !atomic.CompareAndSwapInt32(&p.stop, 0, 1) {
		return true
	}
	close(p.stopChan)
	c.Infof("wait %s finish...", p.Name())
	p.wg.Wait()
	c.Infof("%s finished", p.Name())
	return true
}

func (p *Worker) stopped() bool {
	return atomic.LoadInt32(&p.stop) == 1
}

func (p *Worker) consume(shard int) {
	param := p.param.NewParamKey(queueKey(shard))
	for !p.stopped() {
		job, err := p.pop(param)
		if err != nil {
			c.Errorf("pop job from %s fail,err:%s", param.Key(), err)
			select {
			case <-time.After(time.Second):
			case <-p.stopChan:
			}
			continue
		}
		if job == nil {
			continue
		}
		if err := p.handler(job); err != nil {
			//重新入队,等待重试;任务因此可能被执行多次
			c.Warnf("handle job %+v fail,requeue to %s,err:%s", job, param.Key(), err)
			p.requeue(param, job)
		}
	}
}

// pop 阻塞地从队列中取出一个任务,队列为空时返回nil
func (p *Worker) pop(param *cache.ParamKey) (*counter.Job, error) {
	reply, err := p.client.Do(param, func(conn redis.Conn) (interface{}, error) {
		return conn.Do("BRPOP", param.Key(), brpopTimeoutSeconds)
	})
	if err != nil {
		return nil, err
	}
	values, err := redis.Values(reply, err)
	if err == redis.ErrNil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(values) != 2 {
		return nil, errors.New("bad BRPOP reply")
	}
	payload, err := redis.Bytes(values[1], nil)
	if err != nil {
		return nil, err
	}
	job := &counter.Job{}
	if err := decodeBytes(payload, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (p *Worker) requeue(param *cache.ParamKey, job *counter.Job) {
	payload, err := encodeBytes(job)
	if err != nil {
		c.Errorf("encode job %+v fail,err:%s", job, err)
		return
	}
	_, err = p.client.Do(param, func(conn redis.Conn) (interface{}, error) {
		return conn.Do("LPUSH", param.Key(), payload)
	})
	if err != nil {
		c.Errorf("requeue job %+v to %s fail,err:%s", job, param.Key(), err)
	}
}
