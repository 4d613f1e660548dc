package journal

import (
	"context"
	"errors"
	"fmt"
)

// Fanout 把记录广播给多个落地端。
type Fanout struct {
	sinks []namedSink
}

type namedSink struct {
	name string
	sink Sink
}

// NewFanout 创建广播落地端。
func NewFanout() *Fanout { return &Fanout{} }

// Add 注册一个落地端，nil 会被忽略。
func (f *Fanout) Add(name string, sink Sink) *Fanout {
	if sink != nil {
		f.sinks = append(f.sinks, namedSink{name: name, sink: sink})
	}
	return f
}

// Len 返回已注册的落地端数量。
func (f *Fanout) Len() int { return len(f.sinks) }

// Record 写入所有落地端，任何一端失败都不会阻止其余落地端。
func (f *Fanout) Record(ctx context.Context, entry Entry) error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, s := range f.sinks {
		if err := s.sink.Record(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// Close 依次关闭所有落地端。
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, s := range f.sinks {
		if err := s.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
