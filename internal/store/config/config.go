package config

type Config struct {
	// sqlite или pgx
	Driver string
	DBDsn  string
}
