package envutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/yungbote/gmr-archive-backend/internal/pkg/logger"
)

// String returns the env value for key or def when unset/blank.
func String(key, def string, log *logger.Logger) string {
	val, ok := lookup(key)
	if !ok {
		debugDefault(log, key, def)
		return def
	}
	return val
}

func Int(key string, def int, log *logger.Logger) int {
	raw, ok := lookup(key)
	if !ok {
		debugDefault(log, key, def)
		return def
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable is not an int, using default", "env_var", key, "provided", raw, "default", def)
		}
		return def
	}
	return i
}

func Int64(key string, def int64, log *logger.Logger) int64 {
	raw, ok := lookup(key)
	if !ok {
		debugDefault(log, key, def)
		return def
	}
	i, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable is not an int64, using default", "env_var", key, "provided", raw, "default", def)
		}
		return def
	}
	return i
}

func Float(key string, def float64, log *logger.Logger) float64 {
	raw, ok := lookup(key)
	if !ok {
		debugDefault(log, key, def)
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable is not a float, using default", "env_var", key, "provided", raw, "default", def)
		}
		return def
	}
	return f
}

func Bool(key string, def bool, log *logger.Logger) bool {
	raw, ok := lookup(key)
	if !ok {
		debugDefault(log, key, def)
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		if log != nil {
			log.Warn("Environment variable is not a bool, using default", "env_var", key, "provided", raw, "default", def)
		}
		return def
	}
}

// List splits a comma separated value, dropping blanks.
func List(key string, def []string, log *logger.Logger) []string {
	raw, ok := lookup(key)
	if !ok {
		debugDefault(log, key, def)
		return def
	}
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func lookup(key string) (string, bool) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	val = strings.TrimSpace(val)
	if val == "" {
		return "", false
	}
	return val, true
}

func debugDefault(log *logger.Logger, key string, def interface{}) {
	if log == nil {
		return
	}
	log.Debug("Environment variable not found, using default", "env_var", key, "default", def)
}
