package config

// DB holds the database configuration settings.
type DB struct {
	Path string // sqlite database file path
}
