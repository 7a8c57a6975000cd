// fastcounterd 计数器服务进程
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/d0ngw/fastcounter/cache"
	c "github.com/d0ngw/fastcounter/common"
	"github.com/d0ngw/fastcounter/counter"
	"github.com/d0ngw/fastcounter/deferred"
	fchttp "github.com/d0ngw/fastcounter/http"
	"github.com/d0ngw/fastcounter/store"
)

// CounterConf 计数器的缓存参数配置
type CounterConf struct {
	Group     string `yaml:"group"`      //计数缓存使用的Redis组
	KeyPrefix string `yaml:"key_prefix"` //计数缓存的key前缀
	Table     string `yaml:"table"`      //持久化计数的表名
}

// Parse implements Configurer.Parse
func (p *CounterConf) Parse() error {
	if p.Group == "" {
		return errors.New("need counter group")
	}
	if p.KeyPrefix == "" {
		p.KeyPrefix = "fc:"
	}
	return nil
}

// Conf fastcounterd的配置
type Conf struct {
	c.AppConfig `yaml:",inline"`
	Redis       *cache.RedisConf `yaml:"redis"`
	DB          *store.DBConfig  `yaml:"db"`
	Queue       *deferred.Conf   `yaml:"queue"`
	HTTP        *fchttp.Config   `yaml:"http"`
	Counter     *CounterConf     `yaml:"counter"`
}

// Parse implements Configurer.Parse
func (p *Conf) Parse() error {
	return c.Parse(p)
}

func run(configPath string) error {
	conf := &Conf{}
	if err := c.LoadConfig(conf, "", configPath); err != nil {
		return fmt.Errorf("load config %s fail,err:%s", configPath, err)
	}
	if conf.Redis == nil || conf.DB == nil || conf.HTTP == nil || conf.Counter == nil {
		return errors.New("need redis,db,http and counter config")
	}
	if conf.Queue == nil {
		conf.Queue = &deferred.Conf{}
	}
	if err := conf.Parse(); err != nil {
		return fmt.Errorf("parse config fail,err:%s", err)
	}

	redisClient := cache.NewRedisClientWithConf(conf.Redis)
	counterParam := cache.NewParamConf(conf.Counter.Group, conf.Counter.KeyPrefix, 0)

	atomicCounter, err := cache.NewAtomicCounter(redisClient, counterParam)
	if err != nil {
		return err
	}

	db, err := store.NewMySQLPool(conf.DB)
	if err != nil {
		return err
	}
	counterStore, err := store.NewCounterStore(db, conf.Counter.Table)
	if err != nil {
		return err
	}

	queueParam := counterParam.NewWithKeyPrefix("dq:")
	dispatcher, err := deferred.NewQueueDispatcher(redisClient, queueParam, conf.Queue.Shards)
	if err != nil {
		return err
	}

	fastCounter, err := counter.NewFastCounter("fastcounter", atomicCounter, counterStore, dispatcher)
	if err != nil {
		return err
	}

	worker, err := deferred.NewWorker("counter-persist", redisClient, queueParam, conf.Queue.Shards, fastCounter.HandleJob)
	if err != nil {
		return err
	}

	controller, err := fchttp.NewCounterController("/counter/", fastCounter)
	if err != nil {
		return err
	}
	if err := conf.HTTP.RegController(controller); err != nil {
		return err
	}
	httpService := &fchttp.Service{
		BaseService: c.BaseService{SName: "http", Order: 10},
		Conf:        conf.HTTP,
	}

	services := c.NewServices([]c.Service{worker, httpService}, true)
	if !services.Init() || !services.Start() {
		return errors.New("start services fail")
	}

	hook := c.NewShutdownhook()
	hook.AddHook(func() {
		c.NewServices([]c.Service{worker, httpService}, false).Stop()
		c.GetLogger().Sync()
	})
	hook.WaitShutdown()
	return nil
}

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "fastcounterd",
		Short: "fast counter service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "conf/app.yaml", "config file path")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
