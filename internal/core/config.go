package core

import (
	"time"
)

type Config struct {
	Redis       RedisConfig
	Database    DatabaseConfig
	Workers     WorkerConfig
	Server      ServerConfig
	Log         LogConfig
	Spotify     SpotifyConfig
	YouTube     YouTubeConfig
	Subsonic    SubsonicConfig
	Deezer      DeezerConfig
	MusicBrainz MusicBrainzConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	Path string
}

type WorkerConfig struct {
	Count int
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level string
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type YouTubeConfig struct {
	ClientID     string
	ClientSecret string
}

type SubsonicConfig struct {
	BaseURL    string
	Port       int
	ClientName string
}

type DeezerConfig struct {
	BaseURL string
}

type MusicBrainzConfig struct {
	BaseURL   string
	UserAgent string
}

func DefaultConfig() *Config {
	return &Config{
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Database: DatabaseConfig{
			Path: "./tunesync.db",
		},
		Workers: WorkerConfig{
			Count: 3,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Spotify: SpotifyConfig{
			RedirectURL: "http://localhost:8080/callback",
		},
		Subsonic: SubsonicConfig{
			Port:       4533,
			ClientName: "tunesync",
		},
		Deezer: DeezerConfig{
			BaseURL: "https://api.deezer.com",
		},
		MusicBrainz: MusicBrainzConfig{
			BaseURL:   "https://musicbrainz.org/ws/2",
			UserAgent: "tunesync/1.0",
		},
	}
}
