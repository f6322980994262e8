// Package storage 聚合 origin/edge 需要的存储后端：S3、数据库、KV 与消息队列.
//
// Example:
//
//	mgr, err := storage.New(ctx, cfg, storage.PartDB|storage.PartS3|storage.PartKV|storage.PartMQ)
//	if err != nil {
//		return err
//	}
//	defer mgr.Close()
//
//	s3Client := mgr.GetS3Client()
//	dbClient := mgr.GetDBClient()
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yeisme/fastlink/pkg/configs"
	dbc "github.com/yeisme/fastlink/pkg/internal/storage/db"
	kvc "github.com/yeisme/fastlink/pkg/internal/storage/kv"
	mqc "github.com/yeisme/fastlink/pkg/internal/storage/mq"
	s3c "github.com/yeisme/fastlink/pkg/internal/storage/s3"
	nlog "github.com/yeisme/fastlink/pkg/log"
)

// Part 需要初始化的存储组件.
type Part uint8

const (
	PartDB Part = 1 << iota
	PartS3
	PartKV
	PartMQ

	// PartOrigin origin 需要的全部组件.
	PartOrigin = PartDB | PartS3 | PartKV | PartMQ
	// PartEdge edge 只需要缓存存储.
	PartEdge = PartKV
)

// Manager 聚合所有存储资源. 未初始化的组件为 nil.
type Manager struct {
	S3 *s3c.Client
	DB *dbc.Client
	KV *kvc.Client
	MQ *mqc.Client
}

// Option 初始化选项.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
}

// WithRegisterer 为 DB 与 MQ 打开 Prometheus 指标.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// New 初始化 parts 指定的组件. 任一组件失败时关闭已创建的组件并返回错误.
func New(ctx context.Context, cfg *configs.AppConfig, parts Part, opts ...Option) (*Manager, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager{}

	fail := func(err error) (*Manager, error) {
		_ = m.Close()
		return nil, err
	}

	if parts&PartDB != 0 {
		dbi, err := dbc.New(ctx, &cfg.DB, dbc.WithMetrics(o.registerer != nil))
		if err != nil {
			return fail(fmt.Errorf("init db: %w", err))
		}

		m.DB = dbi
	}

	if parts&PartS3 != 0 {
		s3i, err := s3c.New(ctx, &cfg.S3)
		if err != nil {
			return fail(fmt.Errorf("init s3: %w", err))
		}

		m.S3 = s3i
	}

	if parts&PartKV != 0 {
		kvi, err := kvc.NewKVClient(ctx, cfg.KV)
		if err != nil {
			return fail(fmt.Errorf("init kv: %w", err))
		}

		m.KV = kvi
	}

	if parts&PartMQ != 0 {
		var mqOpts []mqc.Option
		if o.registerer != nil && cfg.MQ.Common.EnableMetrics {
			mqOpts = append(mqOpts, mqc.WithMetrics(o.registerer))
		}

		mqi, err := mqc.New(ctx, cfg.MQ, mqOpts...)
		if err != nil {
			return fail(fmt.Errorf("init mq: %w", err))
		}

		m.MQ = mqi
	}

	nlog.Logger().Info().
		Bool("db", m.DB != nil).
		Bool("s3", m.S3 != nil).
		Bool("kv", m.KV != nil).
		Bool("mq", m.MQ != nil).
		Msg("storage manager initialized")

	return m, nil
}

// GetS3Client 获取 S3 客户端.
func (m *Manager) GetS3Client() *s3c.Client {
	return m.S3
}

// GetDBClient 获取 DB 客户端.
func (m *Manager) GetDBClient() *dbc.Client {
	return m.DB
}

// GetKVClient 获取 KV 客户端.
func (m *Manager) GetKVClient() *kvc.Client {
	return m.KV
}

// GetMQClient 获取 MQ 客户端.
func (m *Manager) GetMQClient() *mqc.Client {
	return m.MQ
}

// ErrNotConfigured 组件未初始化.
var ErrNotConfigured = errors.New("component not configured")

// Check 对单个组件做健康检查.
func (m *Manager) Check(ctx context.Context, name string) error {
	switch name {
	case "db":
		if m.DB == nil {
			return ErrNotConfigured
		}

		return m.DB.Ping(ctx)
	case "s3":
		if m.S3 == nil {
			return ErrNotConfigured
		}

		return m.S3.HealthCheck(ctx)
	case "kv":
		if m.KV == nil {
			return ErrNotConfigured
		}

		_, err := m.KV.Exists(ctx, "health:probe")

		return err
	case "mq":
		if m.MQ == nil {
			return ErrNotConfigured
		}

		return nil
	default:
		return fmt.Errorf("unknown component %q", name)
	}
}

// Close 关闭所有已初始化的组件.
func (m *Manager) Close() error {
	var errs []error

	if m.MQ != nil {
		errs = append(errs, m.MQ.Close())
	}

	if m.KV != nil {
		errs = append(errs, m.KV.Close())
	}

	if m.DB != nil {
		errs = append(errs, m.DB.Close())
	}

	if m.S3 != nil {
		errs = append(errs, m.S3.Close())
	}

	return errors.Join(errs...)
}
