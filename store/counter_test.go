package store

import (
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDB 连接本地MySQL并准备计数器表,MySQL不可用时跳过测试
//
// 连接参数可以通过MYSQL_URL/MYSQL_USER/MYSQL_PASS/MYSQL_SCHEMA环境变量覆盖
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	config := &DBConfig{
		User:    envOr("MYSQL_USER", "root"),
		Pass:    os.Getenv("MYSQL_PASS"),
		URL:     envOr("MYSQL_URL", "127.0.0.1:3306"),
		Schema:  envOr("MYSQL_SCHEMA", "test"),
		MaxConn: 5,
		MaxIdle: 1,
	}
	db, err := NewMySQLPool(config)
	require.Nil(t, err)
	if err = db.Ping(); err != nil {
		db.Close()
		t.Skipf("mysql not available at %s: %v", config.URL, err)
	}

	_, err = db.Exec("CREATE TABLE IF NOT EXISTS " + DefaultCounterTable + " (name VARCHAR(128) NOT NULL PRIMARY KEY,val BIGINT NOT NULL)")
	require.Nil(t, err)
	return db
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func testName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestNewCounterStore(t *testing.T) {
	_, err := NewCounterStore(nil, "")
	assert.NotNil(t, err)
}

func TestCounterStoreApplyDelta(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	store, err := NewCounterStore(db, "")
	require.Nil(t, err)

	name := testName("apply")
	defer db.Exec("DELETE FROM "+DefaultCounterTable+" WHERE name = ?", name)

	_, ok, err := store.Load(name)
	assert.Nil(t, err)
	assert.False(t, ok)

	//首次应用创建记录
	require.Nil(t, store.ApplyDelta(name, 7))
	value, ok, err := store.Load(name)
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), value)

	//累加与回退
	require.Nil(t, store.ApplyDelta(name, -3))
	value, _, err = store.Load(name)
	assert.Nil(t, err)
	assert.Equal(t, int64(4), value)

	//同一delta重复应用会重复累加
	require.Nil(t, store.ApplyDelta(name, 4))
	require.Nil(t, store.ApplyDelta(name, 4))
	value, _, err = store.Load(name)
	assert.Nil(t, err)
	assert.Equal(t, int64(12), value)
}

func TestCounterStoreLoadMulti(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	store, err := NewCounterStore(db, "")
	require.Nil(t, err)

	name1 := testName("multi1")
	name2 := testName("multi2")
	missing := testName("missing")
	defer db.Exec("DELETE FROM "+DefaultCounterTable+" WHERE name IN (?,?)", name1, name2)

	require.Nil(t, store.ApplyDelta(name1, 1))
	require.Nil(t, store.ApplyDelta(name2, -2))

	values, err := store.LoadMulti([]string{name1, name2, missing})
	assert.Nil(t, err)
	require.Equal(t, 2, len(values))
	assert.Equal(t, int64(1), values[name1])
	assert.Equal(t, int64(-2), values[name2])

	values, err = store.LoadMulti(nil)
	assert.Nil(t, err)
	assert.Empty(t, values)

	_, err = store.LoadMulti([]string{""})
	assert.NotNil(t, err)
}

func TestCounterStoreBadArgs(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	store, err := NewCounterStore(db, "")
	require.Nil(t, err)

	_, _, err = store.Load("")
	assert.NotNil(t, err)
	assert.NotNil(t, store.ApplyDelta("", 1))
}
