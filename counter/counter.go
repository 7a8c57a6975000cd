// Package counter supplies a fast,approximately-consistent counter service.
//
// Increments generally touch only the cache and occasionally submit a
// persistence job,both of which are cheap. The tradeoff is that a counter may
// undercount when cached data is evicted before it is persisted,and the
// persistence job is not idempotent,so a redelivered job double-counts. Both
// are accepted as rare,degraded-accuracy outcomes:no failure here is fatal to
// the calling request.
package counter

import (
	"errors"
	"fmt"

	c "github.com/d0ngw/fastcounter/common"
)

// BaseValue is the initial raw value of every cache slot. The cache holds
// unsigned 64-bit values that must not underflow,so slots start at the
// midpoint of the uint64 range and the signed accumulated delta is
// int64(raw-BaseValue).
const BaseValue uint64 = 1 << 63

// DefaultUpdateIntervalSeconds 默认的持久化节流间隔
const DefaultUpdateIntervalSeconds = 10

// 计数值与节流标记的缓存key前缀
const (
	valueKeyPrefix = "ctr_val:"
	lockKeyPrefix  = "ctr_lck:"
)

func valueKey(name string) string {
	return valueKeyPrefix + name
}

func lockKey(name string) string {
	return lockKeyPrefix + name
}

// Cache 计数器依赖的原子计数缓存
type Cache interface {
	// Offset atomically adds delta to the counter at key and returns the new
	// raw value. When the key is absent:if create is true the counter is
	// initialized to initial before delta is applied,otherwise ok is false
	// and nothing is written.
	Offset(key string, delta int64, initial uint64, create bool) (val uint64, ok bool, err error)

	// Get 取得key的当前计数值,key不存在时ok为false
	Get(key string) (val uint64, ok bool, err error)

	// GetMulti 批量取得keys的计数值,不存在的key不会出现在结果中
	GetMulti(keys []string) (map[string]uint64, error)

	// Add 当key不存在时创建它并设置ttlSeconds秒的过期时间,返回是否由本次调用创建
	Add(key string, ttlSeconds int) (bool, error)
}

// Persist 计数器的持久化存储
type Persist interface {
	// Load 读取name的持久化计数值,记录不存在时ok为false
	Load(name string) (value int64, ok bool, err error)

	// LoadMulti 批量读取names的持久化计数值,不存在的name不会出现在结果中
	LoadMulti(names []string) (map[string]int64, error)

	// ApplyDelta 在单个事务中将delta累加到name的持久化记录,记录不存在时以
	// delta为初值创建.该操作不是幂等的
	ApplyDelta(name string, delta int64) error
}

// OpPersistIncr is the job operation that applies an accumulated delta to the
// durable counter record.
const OpPersistIncr = "persist_incr"

// Job 延迟执行的持久化任务
type Job struct {
	Op    string `json:"op" codec:"op"`
	Name  string `json:"name" codec:"name"`
	Delta int64  `json:"delta" codec:"delta"`
}

// Dispatcher 延迟任务的提交接口.投递保证是至少一次,任务可能延迟、乱序甚至重复执行
type Dispatcher interface {
	Submit(job *Job) error
}

// FastCounter 基于缓存累加与延迟持久化的计数器服务
type FastCounter struct {
	Name       string
	cache      Cache
	persist    Persist
	dispatcher Dispatcher
}

// NewFastCounter create FastCounter service
func NewFastCounter(name string, cache Cache, persist Persist, dispatcher Dispatcher) (*FastCounter, error) {
	if c.HasNil(cache, persist, dispatcher) {
		return nil, errors.New("cache,persist and dispatcher must not be nil")
	}
	return &FastCounter{
		Name:       name,
		cache:      cache,
		persist:    persist,
		dispatcher: dispatcher,
	}, nil
}

// Incr increments the counter name by delta. The increment is generally a
// cache-only operation,though a persistence job is also submitted about once
// per updateIntervalSeconds. May undercount if cached data is lost.
// updateIntervalSeconds <= 0 falls back to DefaultUpdateIntervalSeconds.
func (p *FastCounter) Incr(name string, delta int64, updateIntervalSeconds int) error {
	if name == "" {
		return errors.New("name must not be empty")
	}
	if updateIntervalSeconds <= 0 {
		updateIntervalSeconds = DefaultUpdateIntervalSeconds
	}

	raw, _, err := p.cache.Offset(valueKey(name), delta, BaseValue, true)
	if err != nil {
		//缓存不可用时按新建的计数槽处理,只影响精度,不影响本次请求
		c.Warnf("offset counter %s by %d fail,treat slot as fresh,err:%s", name, delta, err)
		raw = BaseValue + uint64(delta)
	}

	won, err := p.cache.Add(lockKey(name), updateIntervalSeconds)
	if err != nil {
		//节流标记只是建议性的,失败时最多导致下个窗口再尝试
		c.Warnf("acquire flush lock of counter %s fail,err:%s", name, err)
		return nil
	}
	if won {
		p.flush(name, raw)
	}
	return nil
}

// flush submits the delta accumulated since the last flush for durable
// persistence and subtracts it back out of the cache slot. Invoked only by
// the increment that won the throttle for this window.
func (p *FastCounter) flush(name string, rawValue uint64) {
	deltaToPersist := int64(rawValue - BaseValue)
	if deltaToPersist == 0 {
		//两次flush之间的增减正好抵消
		return
	}

	job := &Job{Op: OpPersistIncr, Name: name, Delta: deltaToPersist}
	if err := p.dispatcher.Submit(job); err != nil {
		//提交失败,delta仍留在缓存中,等下个窗口再尝试
		c.Warnf("submit persist job of counter %s fail,delta %d stays cached,err:%s", name, deltaToPersist, err)
		return
	}

	//任务已提交,从缓存中减去已提交的delta,避免下次flush重复提交.
	//此处不能创建缓存槽:槽已丢失时重试修正反而会造成重复扣减
	_, ok, err := p.cache.Offset(valueKey(name), -deltaToPersist, BaseValue, false)
	if err != nil || !ok {
		c.Warnf("counter %s reset failed (will double-count): %d,err:%v", name, deltaToPersist, err)
	}
}

// GetCount returns the count of the counter name,0 if it has never been
// incremented. The result is the persisted value plus the unpersisted cache
// offset;it does not include any delta waiting in a submitted job.
func (p *FastCounter) GetCount(name string) (int64, error) {
	if name == "" {
		return 0, errors.New("name must not be empty")
	}
	value, _, err := p.persist.Load(name)
	if err != nil {
		return 0, fmt.Errorf("load counter %s fail,err:%s", name, err)
	}

	raw, ok, err := p.cache.Get(valueKey(name))
	if err != nil {
		c.Warnf("get cached offset of counter %s fail,err:%s", name, err)
		ok = false
	}
	if !ok {
		raw = BaseValue
	}
	return value + int64(raw-BaseValue), nil
}

// GetCounts is like GetCount but fetches multiple counts at once,which is
// much more efficient than getting them one at a time:one batched read
// against the persist storage and one against the cache. The result is in
// the same order as names.
func (p *FastCounter) GetCounts(names []string) ([]int64, error) {
	if len(names) == 0 {
		return nil, nil
	}
	values, err := p.persist.LoadMulti(names)
	if err != nil {
		return nil, fmt.Errorf("load counters fail,err:%s", err)
	}

	keys := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" {
			return nil, errors.New("name must not be empty")
		}
		keys = append(keys, valueKey(name))
	}
	raws, err := p.cache.GetMulti(keys)
	if err != nil {
		c.Warnf("get cached offsets fail,err:%s", err)
		raws = nil
	}

	counts := make([]int64, 0, len(names))
	for _, name := range names {
		raw, ok := raws[valueKey(name)]
		if !ok {
			raw = BaseValue
		}
		counts = append(counts, values[name]+int64(raw-BaseValue))
	}
	return counts, nil
}

// PersistIncrement is the body of the deferred persistence job:it applies
// delta to the durable record of the counter name. Errors are propagated to
// the dispatcher's retry mechanism;a redelivered job applies its delta again.
func (p *FastCounter) PersistIncrement(name string, delta int64) error {
	if name == "" {
		return errors.New("name must not be empty")
	}
	return p.persist.ApplyDelta(name, delta)
}

// HandleJob dispatches a deferred job to its operation
func (p *FastCounter) HandleJob(job *Job) error {
	if job == nil {
		return errors.New("no job")
	}
	switch job.Op {
	case OpPersistIncr:
		return p.PersistIncrement(job.Name, job.Delta)
	default:
		return fmt.Errorf("unknown job op:%s", job.Op)
	}
}
