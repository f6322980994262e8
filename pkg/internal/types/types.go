// Package types 定义 HTTP 请求与响应结构.
package types

import "fmt"

// StatusSuccess 成功响应的 status 字段.
const StatusSuccess = "success"

// Response 成功响应.
type Response[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data,omitempty"`
}

// OK 包装成功响应.
func OK[T any](data T) Response[T] {
	return Response[T]{Status: StatusSuccess, Data: data}
}

// FormatSize 以 1024 为进制格式化字节数，保留两位小数.
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 B"
	}

	units := []string{"B", "KB", "MB", "GB", "TB"}
	v := float64(n)
	i := 0

	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}

	return fmt.Sprintf("%.2f %s", v, units[i])
}
