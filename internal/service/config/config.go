package config

import "time"

type Config struct {
	AutosaveDelay time.Duration
	WatchBackup   bool
}
