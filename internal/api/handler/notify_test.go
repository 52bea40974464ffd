package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNotifyAfterResponseRunsAsync(t *testing.T) {
	done := make(chan struct{})
	notifyAfterResponse(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("通知回调未执行")
	}
}

func TestNotifyAfterResponseRecoversFromPanic(t *testing.T) {
	first := make(chan struct{})
	notifyAfterResponse(func() {
		close(first)
		panic("投递崩溃")
	})
	<-first

	// 崩溃被吞掉后，后续通知照常工作
	second := make(chan struct{})
	notifyAfterResponse(func() { close(second) })
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("后续通知未执行")
	}
}

func TestConstructorsRejectNilNotifier(t *testing.T) {
	require.Panics(t, func() { NewFriendHandler(nil, nil) })
	require.Panics(t, func() { NewServerHandler(nil, nil) })
	require.Panics(t, func() { NewRoomHandler(nil, nil) })
}

// nopNotifier 测试用的空通知器
type nopNotifier struct{}

func (nopNotifier) SendToUser(string, string, any) int { return 0 }
func (nopNotifier) BroadcastAll(string, any) int       { return 0 }
