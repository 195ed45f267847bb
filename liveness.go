package upstream

// fail is reached only through Upstream.Fail, which already checked that
// up is still attached to this list.
func (l *List) fail(up *Upstream, addrFailure bool) {
	l.mu.Lock()
	detached := up.list != l
	multiMember := len(l.ups) > 1
	l.mu.Unlock()
	if detached {
		return
	}

	lim := l.effectiveLimits()
	now := l.now()

	up.mu.Lock()
	var emitFailure bool
	var newErrCount uint
	var shouldTrip, shouldSingleRevive bool

	switch {
	case up.errors == 0:
		up.errors = 1
		up.lastFail = now
		emitFailure = true
		newErrCount = 1

	case !now.Before(up.lastFail):
		up.errors++
		emitFailure = true
		newErrCount = up.errors

		if now.After(up.lastFail) {
			elapsed := now.Sub(up.lastFail).Seconds()
			rate := float64(up.errors) / elapsed
			maxRate := float64(lim.MaxErrors) / lim.ErrorTime.Seconds()
			if rate > maxRate {
				if multiMember {
					up.errors = 0
					shouldTrip = true
				} else if elapsed > lim.ReviveTime.Seconds() {
					// A single-member pool must never drain: stay alive,
					// but force a fresh DNS pass in case the one member
					// simply moved.
					up.errors = 0
					shouldSingleRevive = true
				}
			}
		}
	}

	if addrFailure && len(up.addrs) > 0 {
		up.addrs[up.cur].errors++
	}
	up.mu.Unlock()

	if emitFailure {
		l.mu.Lock()
		l.notify(EventFailure, up, newErrCount)
		l.mu.Unlock()
	}

	switch {
	case shouldTrip:
		l.setInactive(up)
	case shouldSingleRevive:
		l.startResolve(up)
	}
}

// ok resets an alive upstream's error streak; SUCCESS is only emitted when
// a streak was actually active.
func (l *List) ok(up *Upstream) {
	l.mu.Lock()
	detached := up.list != l
	alive := up.activeIdx >= 0
	l.mu.Unlock()
	if detached || !alive {
		return
	}

	up.mu.Lock()
	hadError := up.errors > 0
	if hadError {
		up.errors = 0
		if len(up.addrs) > 0 {
			up.addrs[up.cur].errors = 0
		}
	}
	up.mu.Unlock()

	if !hadError {
		return
	}

	l.mu.Lock()
	l.notify(EventSuccess, up, 0)
	l.mu.Unlock()
}

// armRevive arms a revive timer at jitter(revive_time, revive_jitter). The
// closure capturing up and l keeps both alive until the timer fires or is
// cancelled.
func (l *List) armRevive(up *Upstream) {
	if l.ctx == nil {
		return
	}
	sched := l.ctx.schedulerHandle()
	if sched == nil {
		return
	}

	lim := l.effectiveLimits()
	d := l.ctx.jitterDuration(lim.ReviveTime, lim.ReviveJitter)

	timer := sched.AfterFunc(d, func() { l.onReviveFire(up) })

	up.mu.Lock()
	if up.timer != nil {
		up.timer.Stop()
	}
	up.timer = timer
	up.timerKind = timerRevive
	up.mu.Unlock()
}

func (l *List) onReviveFire(up *Upstream) {
	up.mu.Lock()
	detached := up.list != l
	up.timer = nil
	up.timerKind = timerNone
	up.mu.Unlock()
	if detached {
		return
	}
	l.setActive(up)
}
