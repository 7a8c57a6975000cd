package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	c "github.com/d0ngw/fastcounter/common"
)

// DefaultCounterTable 默认的计数器表名
//
// 表结构:
//
//	CREATE TABLE counter (
//	  name VARCHAR(128) NOT NULL PRIMARY KEY,
//	  val  BIGINT NOT NULL
//	)
const DefaultCounterTable = "counter"

// CounterStore 计数器的持久化存储,每个计数器一条记录
type CounterStore struct {
	db    *sql.DB
	table string
}

// NewCounterStore create CounterStore,table为空时使用DefaultCounterTable
func NewCounterStore(db *sql.DB, table string) (*CounterStore, error) {
	if c.HasNil(db) {
		return nil, errors.New("db must not be nil")
	}
	if table == "" {
		table = DefaultCounterTable
	}
	return &CounterStore{db: db, table: table}, nil
}

// Load implements counter.Persist.Load
func (p *CounterStore) Load(name string) (value int64, ok bool, err error) {
	if name == "" {
		return 0, false, errors.New("name must not be empty")
	}
	err = p.db.QueryRow("SELECT val FROM "+p.table+" WHERE name = ?", name).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

// LoadMulti implements counter.Persist.LoadMulti,一次查询取得所有names的记录,
// 不存在的name不会出现在结果中
func (p *CounterStore) LoadMulti(names []string) (map[string]int64, error) {
	result := make(map[string]int64, len(names))
	if len(names) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(names))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, 0, len(names))
	for _, name := range names {
		if name == "" {
			return nil, errors.New("name must not be empty")
		}
		args = append(args, name)
	}

	rows, err := p.db.Query("SELECT name,val FROM "+p.table+" WHERE name IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var value int64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		result[name] = value
	}
	return result, rows.Err()
}

// ApplyDelta implements counter.Persist.ApplyDelta,在单个事务中读取并累加
// name的计数记录,记录不存在时以delta为初值创建.
//
// 重复执行同一个delta会重复累加,调用方(至少一次投递的任务)接受这一风险.
func (p *CounterStore) ApplyDelta(name string, delta int64) error {
	if name == "" {
		return errors.New("name must not be empty")
	}
	oper := NewDBOper(p.db)
	_, err := oper.DoInTrans(func(tx *sql.Tx) (interface{}, error) {
		var value int64
		err := tx.QueryRow("SELECT val FROM "+p.table+" WHERE name = ? FOR UPDATE", name).Scan(&value)
		if err == sql.ErrNoRows {
			if _, err := tx.Exec("INSERT INTO "+p.table+" (name,val) VALUES (?,?)", name, delta); err != nil {
				return nil, fmt.Errorf("create counter %s fail,err:%s", name, err)
			}
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec("UPDATE "+p.table+" SET val = ? WHERE name = ?", value+delta, name); err != nil {
			return nil, fmt.Errorf("update counter %s fail,err:%s", name, err)
		}
		return nil, nil
	})
	return err
}
