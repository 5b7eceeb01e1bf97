package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextTickAligned(t *testing.T) {
	s := New(Options{Interval: 6 * time.Hour, AlignToStart: true}, zerolog.Nop())
	now := time.Date(2025, time.March, 3, 7, 30, 0, 0, time.UTC)

	got := s.nextTick(now)
	want := time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("nextTick = %s, 期望 %s", got, want)
	}

	exact := time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)
	if got := s.nextTick(exact); !got.Equal(exact.Add(6 * time.Hour)) {
		t.Fatalf("整点时应跳到下一个 bucket, 实际 %s", got)
	}
	if got := s.bucketStart(now); !got.Equal(time.Date(2025, time.March, 3, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("bucketStart = %s", got)
	}
}

func TestNextTickUnaligned(t *testing.T) {
	s := New(Options{Interval: time.Hour}, zerolog.Nop())
	now := time.Date(2025, time.March, 3, 7, 30, 0, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(now.Add(time.Hour)) {
		t.Fatalf("非对齐模式应为 now+interval, 实际 %s", got)
	}
	if got := s.bucketStart(now); !got.Equal(now) {
		t.Fatalf("非对齐模式 bucketStart 应为原值, 实际 %s", got)
	}
}

func TestRunOnStartAndCancel(t *testing.T) {
	s := New(Options{Interval: time.Hour, AlignToStart: true, RunOnStart: true, TickTimeout: time.Second}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan time.Time, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(tickCtx context.Context, bucket time.Time) error {
			if _, ok := tickCtx.Deadline(); !ok {
				t.Errorf("TickTimeout 应设置截止时间")
			}
			ticks <- bucket
			return errors.New("tick errors are logged, not fatal")
		})
	}()

	select {
	case bucket := <-ticks:
		if bucket.Minute() != 0 || bucket.Second() != 0 {
			t.Fatalf("启动 bucket 应对齐整点, 实际 %s", bucket)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunOnStart 应立即执行一次")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("取消后应返回 context.Canceled, 实际 %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("取消后 Run 应返回")
	}
}

func TestNewPanicsOnZeroInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("interval 为 0 时应 panic")
		}
	}()
	New(Options{}, zerolog.Nop())
}
