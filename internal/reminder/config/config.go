package config

import "time"

type Config struct {
	Schedule string
	Window   time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
	Recipient    string
}
