package usecase

import "errors"

var (
	// ErrSourceUnavailable 输入文件不存在或串口/监听地址无法打开
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrEmptyResult 没有提取到帧, 或没有一帧解析成功
	ErrEmptyResult = errors.New("no valid frames could be parsed")
)
