package http

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigParse(t *testing.T) {
	config := &Config{}
	assert.NotNil(t, config.Parse())

	config.Addr = "127.0.0.1:0"
	assert.Nil(t, config.Parse())
}

func TestRegHandleFunc(t *testing.T) {
	config := &Config{Addr: "127.0.0.1:0"}
	handler := func(w http.ResponseWriter, r *http.Request) {}

	require.Nil(t, config.RegHandleFunc("/ping", handler))
	assert.NotNil(t, config.RegHandleFunc("/ping", handler))
}

func TestRegController(t *testing.T) {
	config := &Config{Addr: "127.0.0.1:0"}
	controller, _, _, _ := newTestController(t)

	require.Nil(t, config.RegController(controller))
	assert.NotNil(t, config.RegController(controller))
	assert.NotNil(t, config.RegController(nil))

	for _, path := range []string{"/counter/incr", "/counter/get_count", "/counter/get_counts", "/counter/task/persist_incr"} {
		assert.NotNil(t, config.handles[path])
	}
}

func TestServiceServe(t *testing.T) {
	config := &Config{Addr: "127.0.0.1:0"}
	controller, _, _, _ := newTestController(t)
	require.Nil(t, config.RegController(controller))

	service := &Service{Conf: config}
	service.SName = "test_http"
	require.Nil(t, service.Init())
	require.True(t, service.Start())

	base := fmt.Sprintf("http://%s/counter/", service.listener.Addr())

	resp, err := http.PostForm(base+"incr", url.Values{"name": {"hits"}, "delta": {"3"}})
	require.Nil(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Nil(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(body))

	resp, err = http.Get(base + "get_count?name=missing")
	require.Nil(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Nil(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"count":0,"name":"missing"}`, string(body))

	//未注册的路径
	resp, err = http.Get(base + "nope")
	require.Nil(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.True(t, service.Stop())
}
