package monitor

const (
	TopicReachability = "verdict.reachability"
	TopicSignal       = "verdict.signal"
	TopicLink         = "wireless.link"
	TopicSourceHealth = "monitor.source"
)
