package handler

import "log"

// Notifier HTTP 处理器向实时层投递通知所依赖的最小接口
// 由 chat.Hub 实现；注入 nil 属于装配错误，构造处理器时即 panic
type Notifier interface {
	SendToUser(userID, event string, data any) int
	BroadcastAll(event string, data any) int
}

// notifyAfterResponse 在 HTTP 响应写出之后异步投递实时通知
// 独立协程 + recover：通知失败或崩溃绝不影响已经返回的响应
func notifyAfterResponse(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("实时通知投递崩溃已捕获: %v", r)
			}
		}()
		fn()
	}()
}
