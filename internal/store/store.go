// Package store 保存进行中的会话状态。采集会话和训练会话都通过这里读写，
// 并用按键互斥标志保证同一会话上的操作不并发
package store

import (
	"context"

	"mytutor_backend/internal/model"
	"mytutor_backend/internal/util"
)

// SessionStore 会话存取接口。实现必须保证 TryAcquire 对同一个 key
// 是互斥的：持有期间再次获取返回 util.ErrOperationInFlight
type SessionStore interface {
	GetProcessing(ctx context.Context, id string) (*model.ProcessingSession, error)
	PutProcessing(ctx context.Context, s *model.ProcessingSession) error
	DeleteProcessing(ctx context.Context, id string) error

	GetTraining(ctx context.Context, id string) (*model.TrainingSession, error)
	PutTraining(ctx context.Context, s *model.TrainingSession) error
	DeleteTraining(ctx context.Context, id string) error

	// TryAcquire 拿到 key 上的独占标志，返回释放函数。
	// 已被占用时返回 util.ErrOperationInFlight
	TryAcquire(ctx context.Context, key string) (func(), error)
}

// ErrBusy 是按键互斥冲突的别名，方便调用方判断
var ErrBusy = util.ErrOperationInFlight
