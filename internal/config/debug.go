package config

import "os"

func IsDebug() bool {
	return os.Getenv("KNOWBOT_DEBUG") == "1"
}

func IsJSONLog() bool {
	return os.Getenv("KNOWBOT_LOG_FORMAT") == "json"
}
