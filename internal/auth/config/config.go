package config

import "time"

type Config struct {
	// пустой PIN - блокировка отключена
	UnlockPIN   string
	TokenSecret string
	TokenTTL    time.Duration
}
