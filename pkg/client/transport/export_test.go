package transport

import "context"

// ScheduleReconnect exposes the reconnect guard for tests
func (a *Adapter) ScheduleReconnect(ctx context.Context) {
	a.scheduleReconnect(ctx)
}
