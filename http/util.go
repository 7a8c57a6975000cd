package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	c "github.com/d0ngw/fastcounter/common"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func errNilHandler(pattern string) error {
	return fmt.Errorf("can't bind nil handlerFunc to path %s", pattern)
}

// GetParameter 取得req中由name指定的参数值
func GetParameter(r url.Values, name string) string {
	return r.Get(name)
}

// GetInt64Parameter 取得req中由name指定的int64参数值
func GetInt64Parameter(r url.Values, name string) (val int64, err error) {
	str := r.Get(name)
	if str == "" {
		return 0, fmt.Errorf("no parameter %s", name)
	}
	return strconv.ParseInt(str, 10, 64)
}

// RenderJSON 将jsonData渲染为JSON响应
func RenderJSON(w http.ResponseWriter, jsonData interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	data, err := json.Marshal(jsonData)
	if err != nil {
		c.Errorf("marshal json fail,err:%s", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(data); err != nil {
		c.Errorf("write json response fail,err:%s", err)
	}
}

// RenderError 渲染错误响应
func RenderError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	data, _ := json.Marshal(map[string]string{"error": message})
	w.Write(data)
}
