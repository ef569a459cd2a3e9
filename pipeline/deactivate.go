package pipeline

import (
	"context"
	"time"

	"hark/log"
	"hark/session"
)

const DefaultDeactivateInterval = time.Second

// RemoteSwitch is the part of the activation state the auto-deactivator
// needs.
type RemoteSwitch interface {
	Remote() bool
	SetRemote(on bool)
}

// AutoDeactivator clears the remote gate once no session is left to
// receive results.
type AutoDeactivator struct {
	Gate     RemoteSwitch
	Sessions *session.Registry
	Interval time.Duration
}

func (d *AutoDeactivator) Run(ctx context.Context) {
	interval := d.Interval
	if interval <= 0 {
		interval = DefaultDeactivateInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.check()
		}
	}
}

func (d *AutoDeactivator) check() {
	if d.Gate.Remote() && d.Sessions.Len() == 0 {
		d.Gate.SetRemote(false)
		log.Info("remote listening stopped: no sessions left")
	}
}
