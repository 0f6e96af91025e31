package tracker

// Subscribe returns a channel of status updates and a function that
// releases it. Updates are dropped for subscribers that fall behind; the
// next update carries the full state.
func (c *Coordinator) Subscribe() (<-chan StatusUpdate, func()) {
	ch := make(chan StatusUpdate, subBuffer)
	c.subMu.Lock()
	c.subs[ch] = struct{}{}
	c.subMu.Unlock()

	cancel := func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Status returns the current status without subscribing.
func (c *Coordinator) Status() StatusUpdate {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	return c.statusLocked()
}

// statusLocked assembles a StatusUpdate. Caller must hold c.subMu.
func (c *Coordinator) statusLocked() StatusUpdate {
	return StatusUpdate{
		Session:       c.state.Snapshot(),
		Countdown:     c.lastCountdown,
		Capture:       c.capture.CapturePhase(),
		Live:          c.live.LivePhase(),
		Health:        c.health.snapshot(),
		PushConnected: c.pushConnected.Load(),
		Notice:        c.notice,
	}
}

func (c *Coordinator) publish() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if len(c.subs) == 0 {
		return
	}
	u := c.statusLocked()
	for ch := range c.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (c *Coordinator) onCountdown(cd Countdown) {
	c.subMu.Lock()
	c.lastCountdown = cd
	c.subMu.Unlock()
	c.publish()
}

func (c *Coordinator) setNotice(msg string) {
	c.subMu.Lock()
	c.notice = msg
	c.subMu.Unlock()
}
