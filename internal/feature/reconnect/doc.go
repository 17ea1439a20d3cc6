// Package reconnect 实现客户端自动重连特性
//
// 状态机：
//
//	Reconnecting ⇄ Cooldown        每次尝试间隔至少 RetryInterval
//	      │ 连续失败 MaxAttempts 次
//	      ▼
//	CooldownFailure                NextTry = now + CooldownPeriod
//	      │ 冷却结束：delay += DelayStep
//	      ├─ delay < MaxDelay  → Reconnecting
//	      └─ delay ≥ MaxDelay  → Stopped（放弃，Done 关闭）
//
// 状态元组 {state, attempts, delay, lastTry, nextTry} 由单一互斥锁保护；
// 循环协程在两次检查之间等待 delay 长度的定时器，不会空转。
//
// 以 AuthFailure 原因断开时不会重连。
package reconnect
