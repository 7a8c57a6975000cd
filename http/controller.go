package http

import (
	"errors"
	"net/http"

	c "github.com/d0ngw/fastcounter/common"
	"github.com/d0ngw/fastcounter/counter"
)

// CounterController 计数器的http处理器
type CounterController struct {
	Name    string
	Path    string
	Counter *counter.FastCounter
}

// NewCounterController create CounterController
func NewCounterController(path string, fastCounter *counter.FastCounter) (*CounterController, error) {
	if c.HasNil(fastCounter) {
		return nil, errors.New("counter must not be nil")
	}
	if path == "" {
		path = "/counter/"
	}
	return &CounterController{
		Name:    "counter",
		Path:    path,
		Counter: fastCounter,
	}, nil
}

// GetName implements Controller.GetName
func (p *CounterController) GetName() string {
	return p.Name
}

// GetPath implements Controller.GetPath
func (p *CounterController) GetPath() string {
	return p.Path
}

// GetHandlers implements Controller.GetHandlers
func (p *CounterController) GetHandlers() (map[string]http.HandlerFunc, error) {
	return map[string]http.HandlerFunc{
		"incr":              p.Incr,
		"get_count":         p.GetCount,
		"get_counts":        p.GetCounts,
		"task/persist_incr": p.PersistIncr,
	}, nil
}

// Incr 增加计数,参数:name,delta(默认1),interval(默认10秒)
func (p *CounterController) Incr(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		RenderError(w, http.StatusMethodNotAllowed, "need POST")
		return
	}
	if err := r.ParseForm(); err != nil {
		RenderError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := GetParameter(r.Form, "name")
	if name == "" {
		RenderError(w, http.StatusBadRequest, "need name")
		return
	}
	var delta int64 = 1
	if GetParameter(r.Form, "delta") != "" {
		v, err := GetInt64Parameter(r.Form, "delta")
		if err != nil {
			RenderError(w, http.StatusBadRequest, "invalid delta")
			return
		}
		delta = v
	}
	var interval int64
	if GetParameter(r.Form, "interval") != "" {
		v, err := GetInt64Parameter(r.Form, "interval")
		if err != nil || v <= 0 {
			RenderError(w, http.StatusBadRequest, "invalid interval")
			return
		}
		interval = v
	}

	if err := p.Counter.Incr(name, delta, int(interval)); err != nil {
		RenderError(w, http.StatusInternalServerError, err.Error())
		return
	}
	RenderJSON(w, map[string]bool{"ok": true})
}

// GetCount 查询单个计数,参数:name
func (p *CounterController) GetCount(w http.ResponseWriter, r *http.Request) {
	name := GetParameter(r.URL.Query(), "name")
	if name == "" {
		RenderError(w, http.StatusBadRequest, "need name")
		return
	}
	count, err := p.Counter.GetCount(name)
	if err != nil {
		RenderError(w, http.StatusInternalServerError, err.Error())
		return
	}
	RenderJSON(w, map[string]interface{}{"name": name, "count": count})
}

// GetCounts 批量查询计数,参数:name(可重复),结果与参数同序
func (p *CounterController) GetCounts(w http.ResponseWriter, r *http.Request) {
	names := r.URL.Query()["name"]
	if len(names) == 0 {
		RenderError(w, http.StatusBadRequest, "need name")
		return
	}
	counts, err := p.Counter.GetCounts(names)
	if err != nil {
		RenderError(w, http.StatusInternalServerError, err.Error())
		return
	}
	result := make([]map[string]interface{}, 0, len(names))
	for i, name := range names {
		result = append(result, map[string]interface{}{"name": name, "count": counts[i]})
	}
	RenderJSON(w, result)
}

// PersistIncr 持久化任务的投递入口,参数:name,delta.由外部的任务队列服务回调,
// 同一个任务可能被投递多次
func (p *CounterController) PersistIncr(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		RenderError(w, http.StatusMethodNotAllowed, "need POST")
		return
	}
	if err := r.ParseForm(); err != nil {
		RenderError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := GetParameter(r.Form, "name")
	if name == "" {
		RenderError(w, http.StatusBadRequest, "need name")
		return
	}
	delta, err := GetInt64Parameter(r.Form, "delta")
	if err != nil {
		RenderError(w, http.StatusBadRequest, "invalid delta")
		return
	}

	if err := p.Counter.PersistIncrement(name, delta); err != nil {
		//返回5xx以便任务队列重试
		RenderError(w, http.StatusInternalServerError, err.Error())
		return
	}
	RenderJSON(w, map[string]bool{"ok": true})
}
