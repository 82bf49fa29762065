package xrun

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrSignal 因系统信号退出
	ErrSignal = errors.New("received signal")
	// ErrNilFunc 服务函数为 nil
	ErrNilFunc = errors.New("xrun: nil service func")
	// ErrNilServer 服务器为 nil
	ErrNilServer = errors.New("xrun: nil server")
)

// SignalError 记录触发退出的信号。
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	if e.Signal == nil {
		return "received signal <nil>"
	}
	return fmt.Sprintf("received signal %s", e.Signal)
}

// Unwrap 使 errors.Is(err, ErrSignal) 成立。
func (e *SignalError) Unwrap() error { return ErrSignal }
