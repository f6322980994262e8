// Package s3 封装 MinIO 客户端，作为下载链路的对象存储：按范围读取对象、查询对象信息.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeisme/fastlink/pkg/configs"
	nlog "github.com/yeisme/fastlink/pkg/log"
)

// ErrObjectNotFound 对象在存储中不存在.
var ErrObjectNotFound = errors.New("s3: object not found")

// Client 包装 MinIO 客户端.
type Client struct {
	*minio.Client
	bucket string
}

// ObjectInfo 对象基本信息.
type ObjectInfo struct {
	Size        int64
	ContentType string
	ETag        string
}

// New 初始化 MinIO 客户端，EnsureBucket 为 true 时 bucket 不存在则创建.
func New(ctx context.Context, cfg *configs.S3Config) (*Client, error) {
	endpoint := cfg.Endpoint
	secure := cfg.UseSSL
	// 允许传带 scheme 的 endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			secure = true
		}
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo(configs.AppName, configs.AppVersion)

	if cfg.EnsureBucket {
		exists, err := cli.BucketExists(ctx, cfg.BucketName)
		if err != nil {
			return nil, fmt.Errorf("check bucket %s: %w", cfg.BucketName, err)
		}

		if !exists {
			if err := cli.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
				return nil, fmt.Errorf("create bucket %s: %w", cfg.BucketName, err)
			}

			nlog.Logger().Info().Str("bucket", cfg.BucketName).Msg("bucket created")
		}
	}

	nlog.Logger().Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.BucketName).Msg("s3 connected")

	return &Client{Client: cli, bucket: cfg.BucketName}, nil
}

// resolve 把定位符拆成 bucket 与 key. 支持 "s3://bucket/key"，其余视为默认 bucket 下的 key.
func (c *Client) resolve(locator string) (string, string, error) {
	if rest, ok := strings.CutPrefix(locator, "s3://"); ok {
		bucket, key, found := strings.Cut(rest, "/")
		if !found || bucket == "" || key == "" {
			return "", "", fmt.Errorf("invalid locator %q", locator)
		}

		return bucket, key, nil
	}

	key := strings.TrimPrefix(locator, "/")
	if key == "" {
		return "", "", fmt.Errorf("empty locator")
	}

	return c.bucket, key, nil
}

// FetchRange 读取 [start, end] 闭区间的字节.
// 调用方负责控制区间大小，这里会把整个区间读入内存.
func (c *Client) FetchRange(ctx context.Context, locator string, start, end int64) ([]byte, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("invalid range %d-%d", start, end)
	}

	bucket, key, err := c.resolve(locator)
	if err != nil {
		return nil, err
	}

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(start, end); err != nil {
		return nil, fmt.Errorf("set range: %w", err)
	}

	obj, err := c.GetObject(ctx, bucket, key, opts)
	if err != nil {
		return nil, mapErr(err)
	}
	defer obj.Close()

	want := end - start + 1
	buf := make([]byte, 0, want)

	n, err := io.Copy(bytesWriter{&buf}, io.LimitReader(obj, want))
	if err != nil {
		return nil, mapErr(err)
	}

	if n != want {
		return nil, fmt.Errorf("short read from object store: got %d of %d bytes", n, want)
	}

	return buf, nil
}

type bytesWriter struct{ b *[]byte }

func (w bytesWriter) Write(p []byte) (int, error) {
	*w.b = append(*w.b, p...)
	return len(p), nil
}

// Stat 查询对象信息.
func (c *Client) Stat(ctx context.Context, locator string) (ObjectInfo, error) {
	bucket, key, err := c.resolve(locator)
	if err != nil {
		return ObjectInfo{}, err
	}

	info, err := c.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, mapErr(err)
	}

	return ObjectInfo{Size: info.Size, ContentType: info.ContentType, ETag: info.ETag}, nil
}

// PutFile 把本地文件上传到定位符位置，供 CLI 暂存上传使用.
func (c *Client) PutFile(ctx context.Context, locator, path, contentType string) (int64, error) {
	bucket, key, err := c.resolve(locator)
	if err != nil {
		return 0, err
	}

	info, err := c.FPutObject(ctx, bucket, key, path, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return 0, fmt.Errorf("put object: %w", err)
	}

	return info.Size, nil
}

// Remove 删除对象.
func (c *Client) Remove(ctx context.Context, locator string) error {
	bucket, key, err := c.resolve(locator)
	if err != nil {
		return err
	}

	return c.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
}

func mapErr(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, resp.Key)
	}

	return fmt.Errorf("object store: %w", err)
}

// HealthCheck 检查默认 bucket 是否可访问.
func (c *Client) HealthCheck(ctx context.Context) error {
	ok, err := c.BucketExists(ctx, c.bucket)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("bucket %s does not exist", c.bucket)
	}

	return nil
}

// Bucket 返回默认 bucket.
func (c *Client) Bucket() string {
	return c.bucket
}

// Close 关闭 S3 客户端连接（无实际操作，接口兼容）.
func (c *Client) Close() error {
	return nil
}
