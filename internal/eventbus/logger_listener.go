package eventbus

import (
	"github.com/annel0/tileworld/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог уровня DEBUG.
func StartLoggingListener(bus EventBus, logger *logging.Logger) Subscription {
	if logger == nil {
		logger = logging.GetComponentLogger("eventbus")
	}
	sub := bus.Subscribe(Filter{}, func(ev *Envelope) {
		logger.Debug("[EventBus] %s %s src=%s", ev.ID, ev.EventType, ev.Source)
	})
	logger.Debug("LoggingListener: подписка на все события активирована")
	return sub
}
