package pchannel

// waiter 一次性唤醒信号
type waiter struct {
	ch chan struct{}
}

// waitq FIFO 等待队列
//
// 所有方法都在通道锁内调用。唤醒只向缓冲为 1 的通道写入一次，
// 不会阻塞持锁方。
type waitq struct {
	list []*waiter
}

// push 追加一个等待者
func (q *waitq) push() *waiter {
	w := &waiter{ch: make(chan struct{}, 1)}
	q.list = append(q.list, w)
	return w
}

// wakeOne 唤醒最早的等待者
func (q *waitq) wakeOne() {
	if len(q.list) == 0 {
		return
	}
	w := q.list[0]
	q.list[0] = nil
	q.list = q.list[1:]
	w.ch <- struct{}{}
}

// wakeAll 唤醒全部等待者
func (q *waitq) wakeAll() {
	for _, w := range q.list {
		w.ch <- struct{}{}
	}
	clear(q.list)
	q.list = q.list[:0]
}

// remove 移除尚未被唤醒的等待者
//
// 返回 false 表示 w 已被唤醒（信号已消耗在途），调用方应把唤醒传递下去。
func (q *waitq) remove(w *waiter) bool {
	for i, x := range q.list {
		if x == w {
			copy(q.list[i:], q.list[i+1:])
			q.list[len(q.list)-1] = nil
			q.list = q.list[:len(q.list)-1]
			return true
		}
	}
	return false
}

// len 等待者数量
func (q *waitq) len() int {
	return len(q.list)
}
