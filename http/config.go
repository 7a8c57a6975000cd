// Package http 提供计数器服务的http接口
package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	c "github.com/d0ngw/fastcounter/common"
)

// Controller 接口定义http处理器
type Controller interface {
	// GetName 控制器的名称
	GetName() string
	// GetPath 路径前缀,以'/'结束
	GetPath() string
	// GetHandlers 返回controller的所有处理方法,key为path,value为对应的处理方法
	GetHandlers() (map[string]http.HandlerFunc, error)
}

// Config Http配置
type Config struct {
	Addr         string        `yaml:"addr"`          //Http监听地址
	ReadTimeout  time.Duration `yaml:"read_timeout"`  //读超时,单位秒
	WriteTimeout time.Duration `yaml:"write_timeout"` //写超时,单位秒
	MaxConns     int           `yaml:"max_conns"`     //最大的并发连接数
	handles      map[string]http.HandlerFunc
}

// Parse implements Configurer.Parse
func (p *Config) Parse() error {
	if p.Addr == "" {
		return fmt.Errorf("need addr")
	}
	return nil
}

// RegController 注册controller中的所有处理函数
func (p *Config) RegController(controller Controller) error {
	if controller == nil {
		return fmt.Errorf("can't reg nil controller")
	}

	var path = controller.GetPath()
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	handlers, err := controller.GetHandlers()
	if err != nil {
		return err
	}
	if len(handlers) == 0 {
		c.Warnf("can't find handler in %#v", controller)
		return nil
	}

	for handlerPath, h := range handlers {
		handlerPath = strings.TrimPrefix(handlerPath, "/")
		patternPath := path + handlerPath
		if err := p.RegHandleFunc(patternPath, h); err != nil {
			return err
		}
		c.Infof("Register controller %T#%s,path:%s", controller, controller.GetName(), patternPath)
	}
	return nil
}

// RegHandleFunc 注册patternPath的处理函数handlerFunc
func (p *Config) RegHandleFunc(patternPath string, handlerFunc http.HandlerFunc) error {
	if p.handles == nil {
		p.handles = map[string]http.HandlerFunc{}
	}
	if _, ok := p.handles[patternPath]; ok {
		return fmt.Errorf("duplicate path:%s", patternPath)
	}
	p.handles[patternPath] = handlerFunc
	return nil
}
