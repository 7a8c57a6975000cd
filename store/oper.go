package store

import (
	"database/sql"
	"errors"

	c "github.com/d0ngw/fastcounter/common"
)

// DBOper 数据库操作接口,支持简单的事务嵌套
type DBOper struct {
	db           *sql.DB //数据连接
	tx           *sql.Tx //事务
	txDone       bool    //事务是否结束
	rollbackOnly bool    //是否只回滚
	transDepth   int     //调用的深度
}

// NewDBOper 创建数据库操作接口
func NewDBOper(db *sql.DB) *DBOper {
	return &DBOper{db: db}
}

// DBOperTxFunc 在事务中处理的函数
type DBOperTxFunc func(tx *sql.Tx) (interface{}, error)

func (p *DBOper) close() {
	p.tx = nil
	p.rollbackOnly = false
	p.transDepth = 0
}

//检查事务的状态
func (p *DBOper) checkTransStatus() error {
	if p.txDone {
		return sql.ErrTxDone
	}
	if p.tx == nil {
		return errors.New("not begin transaction")
	}
	return nil
}

func (p *DBOper) incrTransDepth() {
	p.transDepth = p.transDepth + 1
}

func (p *DBOper) decrTransDepth() error {
	p.transDepth = p.transDepth - 1
	if p.transDepth < 0 {
		return errors.New("too many invoke commit or rollback")
	}
	return nil
}

//结束事务
func (p *DBOper) finishTrans() error {
	if err := p.checkTransStatus(); err != nil {
		return err
	}
	if err := p.decrTransDepth(); err != nil {
		return err
	}
	if p.transDepth > 0 {
		return nil
	}
	defer p.close()
	p.txDone = true
	if p.rollbackOnly {
		return p.tx.Rollback()
	}
	return p.tx.Commit()
}

// BeginTx 开始事务,支持简单的嵌套调用,如果已经开始了事务,则直接返回成功
func (p *DBOper) BeginTx() error {
	p.incrTransDepth()
	if p.tx != nil {
		return nil //事务已经开启
	}
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	p.tx = tx
	return nil
}

// Commit 提交事务
func (p *DBOper) Commit() error {
	return p.finishTrans()
}

// Rollback 回滚事务
func (p *DBOper) Rollback() error {
	p.SetRollbackOnly(true)
	return p.finishTrans()
}

// SetRollbackOnly 设置只回滚
func (p *DBOper) SetRollbackOnly(rollback bool) {
	p.rollbackOnly = rollback
}

// IsRollbackOnly 是否只回滚
func (p *DBOper) IsRollbackOnly() bool {
	return p.rollbackOnly
}

// DoInTrans 在事务中执行operation
func (p *DBOper) DoInTrans(operation DBOperTxFunc) (rt interface{}, err error) {
	if err := p.BeginTx(); err != nil {
		return nil, err
	}
	var succ = false
	//结束事务
	defer func() {
		if !succ {
			p.SetRollbackOnly(true)
		}
		transErr := p.finishTrans()
		if transErr != nil {
			c.Errorf("finish transaction err:%v", transErr)
			rt = nil
			err = transErr
		}
	}()
	rt, err = operation(p.tx)
	if err != nil {
		c.Errorf("operation fail:%v", err)
		succ = false
	} else {
		succ = true
	}
	return
}
