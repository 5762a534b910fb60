// Package repository 定义领域仓储接口
package repository

import (
	"context"
)

// TxKey 事务在 context 中的键
type TxKey struct{}

// Transactor 事务管理接口
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
