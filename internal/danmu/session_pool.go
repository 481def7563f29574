package danmu

import (
	"sort"
	"sync"
)

// poolEntry 频道在监督器中的登记项
type poolEntry struct {
	session *Session
	sink    Sink
	// restarts 累计自动重启次数，仅用于展示
	restarts int
	// failures 连续失败次数，会话进入 Active 时清零，用于判断重启上限
	failures int
	// restarting 已安排自动重启，session 为上一个已关闭的实例
	restarting bool
	lastErr    error
}

// sessionPool 频道 -> 会话映射，监督器唯一的共享可变状态。
// 调用方需持有 mu 再做“检查后修改”。
type sessionPool struct {
	mu      sync.Mutex
	entries map[ChannelRef]*poolEntry
}

func newSessionPool() *sessionPool {
	return &sessionPool{
		entries: make(map[ChannelRef]*poolEntry),
	}
}

// add 添加或覆盖登记项
func (p *sessionPool) add(ch ChannelRef, e *poolEntry) {
	p.entries[ch] = e
}

// remove 移除登记项
func (p *sessionPool) remove(ch ChannelRef) (*poolEntry, bool) {
	e, ok := p.entries[ch]
	if ok {
		delete(p.entries, ch)
	}
	return e, ok
}

// get 根据频道获取登记项
func (p *sessionPool) get(ch ChannelRef) (*poolEntry, bool) {
	e, ok := p.entries[ch]
	return e, ok
}

// owns 登记项当前是否仍指向 s
func (p *sessionPool) owns(ch ChannelRef, s *Session) (*poolEntry, bool) {
	e, ok := p.entries[ch]
	if !ok || e.session != s {
		return nil, false
	}
	return e, true
}

// getAll 按频道字符串排序返回所有频道
func (p *sessionPool) getAll() []ChannelRef {
	chs := make([]ChannelRef, 0, len(p.entries))
	for ch := range p.entries {
		chs = append(chs, ch)
	}
	sort.Slice(chs, func(i, j int) bool {
		return chs[i].String() < chs[j].String()
	})
	return chs
}

// drain 清空并返回所有登记项
func (p *sessionPool) drain() []*poolEntry {
	all := make([]*poolEntry, 0, len(p.entries))
	for ch, e := range p.entries {
		all = append(all, e)
		delete(p.entries, ch)
	}
	return all
}

// count 返回频道总数
func (p *sessionPool) count() int {
	return len(p.entries)
}
