package core

import "time"

type AppConfig interface {
	GetRuntimePath() string
	GetDatabasePath() string
	GetContextWindowSize() int
	GetModelTimeout() time.Duration
}

type PromptConfig interface {
	GetSystemPath() string
}
