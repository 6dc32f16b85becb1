package app

const (
	Name           = "netstatus"
	SourceURL      = "https://github.com/SkyLord2/perception-network-status"
	ConfigFilename = "config.json"
	DBFilename     = "status.db"
	LogFilename    = "agent.log"
)
