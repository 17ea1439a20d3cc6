package auth

import (
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-peerctl/pkg/types"
)

// poller 挑战超时轮询
//
// done 在轮询循环退出时关闭，先于超时后的断开动作，
// 因此在断开回调里等待 done 不会死锁。
type poller struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func startPoller(f *Feature) *poller {
	p := &poller{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	ticker := f.cfg.Clock.Ticker(f.cfg.PollInterval)
	go p.run(f, ticker)
	return p
}

func (p *poller) run(f *Feature, ticker *clock.Ticker) {
	expired := p.loop(f, ticker)
	close(p.done)
	if expired {
		f.conclude(types.AuthFailed, types.AuthFailureTimedOut)
	}
}

func (p *poller) loop(f *Feature, ticker *clock.Ticker) bool {
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return false
		case <-ticker.C:
			expired, finished := f.timeout(f.cfg.Clock.Now())
			if expired {
				return true
			}
			if finished {
				return false
			}
		}
	}
}

func (p *poller) cancel() {
	p.once.Do(func() { close(p.stop) })
}

// stopPoller 取消轮询，wait 为真时等待循环退出
func (f *Feature) stopPoller(wait bool) {
	f.mu.Lock()
	p := f.poller
	f.poller = nil
	f.mu.Unlock()
	if p == nil {
		return
	}
	p.cancel()
	if wait {
		<-p.done
	}
}
