package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// NewMySQLPool 构建MySQL数据库连接池
func NewMySQLPool(config *DBConfig) (*sql.DB, error) {
	if config == nil {
		return nil, fmt.Errorf("no db config")
	}
	if len(config.User) == 0 || len(config.URL) == 0 || len(config.Schema) == 0 {
		return nil, fmt.Errorf("invalid db config")
	}

	//设置时间为本地时间,并解析时间
	loc, err := time.LoadLocation("Local")
	if err != nil {
		return nil, err
	}
	connectURL := fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8&loc=%s&parseTime=true", config.User, config.Pass, config.URL, config.Schema, url.QueryEscape(loc.String()))
	db, err := sql.Open("mysql", connectURL)
	if err != nil {
		return nil, fmt.Errorf("can't open connection,err:%s", err)
	}
	db.SetMaxIdleConns(config.MaxIdle)
	db.SetMaxOpenConns(config.MaxConn)
	if config.MaxTimeSecond > 0 {
		db.SetConnMaxLifetime(time.Duration(config.MaxTimeSecond) * time.Second)
	}
	return db, nil
}
