package scanner

import "errors"

var (
	// ErrNotFound 目标不存在，或不是所需的普通文件/目录
	ErrNotFound = errors.New("not found")
	// ErrIO 打开或读取失败 (权限等)，区别于不存在
	ErrIO = errors.New("i/o error")
)
