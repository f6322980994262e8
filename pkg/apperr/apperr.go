// Package apperr 定义下载链路的错误分类、HTTP 状态映射与统一的 JSON 错误体.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误类别.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindCodeMismatch
	KindGone
	KindRangeNotSatisfiable
	KindUpstreamTimeout
	KindUpstreamUnavailable
	KindRateLimited
	KindBadRequest
	KindUnauthorized
)

var kindNames = map[Kind]string{
	KindInternal:            "internal",
	KindNotFound:            "not_found",
	KindCodeMismatch:        "code_mismatch",
	KindGone:                "gone",
	KindRangeNotSatisfiable: "range_not_satisfiable",
	KindUpstreamTimeout:     "upstream_timeout",
	KindUpstreamUnavailable: "upstream_unavailable",
	KindRateLimited:         "rate_limited",
	KindBadRequest:          "bad_request",
	KindUnauthorized:        "unauthorized",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// 对外消息. CodeMismatch 与 NotFound 共用一条，避免通过响应判断对象是否存在.
const (
	msgNotFound            = "File not found"
	msgGone                = "File has been deleted"
	msgRangeNotSatisfiable = "Requested range not satisfiable"
	msgUnavailable         = "Service temporarily unavailable"
	msgRateLimited         = "Too many requests, please slow down"
	msgBadRequest          = "Bad request"
	msgUnauthorized        = "Unauthorized"
	msgInternal            = "Internal server error"
)

// Error 带类别的错误.
type Error struct {
	Kind    Kind
	Message string // 内部描述，不直接返回给客户端
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is 同类别即视为相等，支持 errors.Is(err, apperr.ErrGone).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && t.Message == "" && t.Err == nil
	}

	return false
}

// 各类别的哨兵错误.
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrCodeMismatch        = &Error{Kind: KindCodeMismatch}
	ErrGone                = &Error{Kind: KindGone}
	ErrRangeNotSatisfiable = &Error{Kind: KindRangeNotSatisfiable}
	ErrUpstreamTimeout     = &Error{Kind: KindUpstreamTimeout}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrRateLimited         = &Error{Kind: KindRateLimited}
	ErrBadRequest          = &Error{Kind: KindBadRequest}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrInternal            = &Error{Kind: KindInternal}
)

// New 创建指定类别的错误.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap 用指定类别包装 err.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf 返回 err 链上第一个 *Error 的类别，没有则为 KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}

// Status 返回 err 对应的 HTTP 状态码.
func Status(err error) int {
	return StatusOf(KindOf(err))
}

// StatusOf 返回类别对应的 HTTP 状态码.
func StatusOf(k Kind) int {
	switch k {
	case KindNotFound, KindCodeMismatch:
		return http.StatusNotFound
	case KindGone:
		return http.StatusGone
	case KindRangeNotSatisfiable:
		return http.StatusRequestedRangeNotSatisfiable
	case KindUpstreamTimeout, KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Public 返回可以展示给客户端的消息.
// BadRequest 会带上调用方写入的 Message，其余类别只返回固定文案.
func Public(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindBadRequest && e.Message != "" {
		return e.Message
	}

	return publicOf(KindOf(err))
}

func publicOf(k Kind) string {
	switch k {
	case KindNotFound, KindCodeMismatch:
		return msgNotFound
	case KindGone:
		return msgGone
	case KindRangeNotSatisfiable:
		return msgRangeNotSatisfiable
	case KindUpstreamTimeout, KindUpstreamUnavailable:
		return msgUnavailable
	case KindRateLimited:
		return msgRateLimited
	case KindBadRequest:
		return msgBadRequest
	case KindUnauthorized:
		return msgUnauthorized
	default:
		return msgInternal
	}
}

// StatusMessage 返回某个 HTTP 状态码在错误体中使用的通用消息，edge 改写 origin 错误时使用.
func StatusMessage(status int) string {
	switch status {
	case http.StatusNotFound, http.StatusForbidden:
		return msgNotFound
	case http.StatusGone:
		return msgGone
	case http.StatusRequestedRangeNotSatisfiable:
		return msgRangeNotSatisfiable
	case http.StatusTooManyRequests:
		return msgRateLimited
	case http.StatusBadRequest:
		return msgBadRequest
	case http.StatusUnauthorized:
		return msgUnauthorized
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return msgUnavailable
	}

	if status >= http.StatusInternalServerError {
		return msgInternal
	}

	if t := http.StatusText(status); t != "" {
		return t
	}

	return msgBadRequest
}
