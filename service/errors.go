package service

import "errors"

var (
	// ErrInvalidInput 调用方给出的对象名缺失或格式错误
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound 仓库中没有该对象，或计数从未写入
	ErrNotFound = errors.New("not found")
	// ErrInternal 与仓库通信时出现意外错误
	ErrInternal = errors.New("internal error")
)
