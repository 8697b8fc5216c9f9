package xerrors

import (
	"errors"
	"fmt"
)

// FetchError 外部数据源/平台的瞬时错误，可带退避重试
type FetchError struct {
	Source string // 出错的外部系统：faceit / discord / store
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable FetchError 永远可重试
func (e *FetchError) Retryable() bool { return true }

// NewFetchError 包装一个瞬时抓取错误
func NewFetchError(source string, err error) *FetchError {
	return &FetchError{Source: source, Err: err}
}

// ValidationError 数据不一致/非法，跳过处理，绝不盲目重试
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Reason)
}

// NewValidationError 创建校验错误
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// StaleDataError 数据超出可接受的新鲜度/保留窗口，仅记录日志后跳过
type StaleDataError struct {
	Reason string
}

func (e *StaleDataError) Error() string {
	return fmt.Sprintf("stale data: %s", e.Reason)
}

// NewStaleDataError 创建过期数据错误
func NewStaleDataError(format string, args ...any) *StaleDataError {
	return &StaleDataError{Reason: fmt.Sprintf(format, args...)}
}

// LockTimeoutError 锁获取超时，对该次操作而言是致命的
type LockTimeoutError struct {
	Resource string
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("lock timeout: %s", e.Resource)
}

// DuplicateDetectedError 发现目标已存在，属于良性错误，调用方短路为 no-op
type DuplicateDetectedError struct {
	Resource string
}

func (e *DuplicateDetectedError) Error() string {
	return fmt.Sprintf("duplicate detected: %s", e.Resource)
}

// StoreBusyError 存储层繁忙（如 sqlite busy/locked），由存储适配层以类型化方式上抛，
// 取代对错误文案做字符串匹配的做法
type StoreBusyError struct {
	Err error
}

func (e *StoreBusyError) Error() string {
	return fmt.Sprintf("store busy: %v", e.Err)
}

func (e *StoreBusyError) Unwrap() error { return e.Err }

// Retryable 存储繁忙可重试
func (e *StoreBusyError) Retryable() bool { return true }

// retryable 带重试标记的错误
type retryable interface {
	Retryable() bool
}

// IsRetryable 判断错误是否可带退避重试
func IsRetryable(err error) bool {
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}

// IsDuplicate 判断是否为良性的重复检测错误
func IsDuplicate(err error) bool {
	var d *DuplicateDetectedError
	return errors.As(err, &d)
}

// IsStale 判断是否为过期数据错误
func IsStale(err error) bool {
	var s *StaleDataError
	return errors.As(err, &s)
}

// IsValidation 判断是否为校验错误
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
