package lib

import "strings"
import "time"

// Settings map of settings parameters. Keys are dotted names, like
// "mesh.checkperiod", values are golang native types.
type Settings map[string]interface{}

// Section will create a new settings object with parameters
// starting with `prefix`.
func (setts Settings) Section(prefix string) Settings {
	section := make(Settings)
	for key, value := range setts {
		if strings.HasPrefix(key, prefix) {
			section[key] = value
		}
	}
	return section
}

// Trim settings parameter with `prefix` string.
func (setts Settings) Trim(prefix string) Settings {
	trimmed := make(Settings)
	for key, value := range setts {
		trimmed[strings.TrimPrefix(key, prefix)] = value
	}
	return trimmed
}

// AddPrefix return a new settings object with `prefix` added to
// every parameter.
func (setts Settings) AddPrefix(prefix string) Settings {
	prefixed := make(Settings)
	for key, value := range setts {
		prefixed[prefix+key] = value
	}
	return prefixed
}

// Mixin settings to override `setts` with `settings`, later
// arguments take precedence.
func (setts Settings) Mixin(settings ...interface{}) Settings {
	update := func(arg map[string]interface{}) {
		for key, value := range arg {
			setts[key] = value
		}
	}
	for _, arg := range settings {
		switch cnf := arg.(type) {
		case Settings:
			update(map[string]interface{}(cnf))
		case map[string]interface{}:
			update(cnf)
		}
	}
	return setts
}

// Bool return the boolean value for key.
func (setts Settings) Bool(key string) bool {
	value, ok := setts[key]
	if !ok {
		panicerr("missing settings %q", key)
	}
	val, ok := value.(bool)
	if !ok {
		panicerr("settings %q not a bool: %T", key, value)
	}
	return val
}

// Float64 return the float64 value for key.
func (setts Settings) Float64(key string) float64 {
	return setts.number(key)
}

// Int64 return the int64 value for key.
func (setts Settings) Int64(key string) int64 {
	value, ok := setts[key]
	if !ok {
		panicerr("missing settings %q", key)
	}
	switch val := value.(type) {
	case float64:
		return int64(val)
	case float32:
		return int64(val)
	case uint:
		return int64(val)
	case uint64:
		return int64(val)
	case uint32:
		return int64(val)
	case uint16:
		return int64(val)
	case uint8:
		return int64(val)
	case int:
		return int64(val)
	case int64:
		return val
	case int32:
		return int64(val)
	case int16:
		return int64(val)
	case int8:
		return int64(val)
	}
	panicerr("settings %q not a number: %T", key, value)
	return 0
}

// Uint64 return the uint64 value for key.
func (setts Settings) Uint64(key string) uint64 {
	return uint64(setts.Int64(key))
}

// Duration interpret the number for key as milliseconds.
func (setts Settings) Duration(key string) time.Duration {
	return time.Duration(setts.Int64(key)) * time.Millisecond
}

// String return the string value for key.
func (setts Settings) String(key string) string {
	value, ok := setts[key]
	if !ok {
		panicerr("missing settings %q", key)
	}
	val, ok := value.(string)
	if !ok {
		panicerr("settings %q not a string: %T", key, value)
	}
	return val
}

func (setts Settings) number(key string) float64 {
	value, ok := setts[key]
	if !ok {
		panicerr("missing settings %q", key)
	}
	switch val := value.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case uint:
		return float64(val)
	case uint64:
		return float64(val)
	case uint32:
		return float64(val)
	case uint16:
		return float64(val)
	case uint8:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case int16:
		return float64(val)
	case int8:
		return float64(val)
	}
	panicerr("settings %q not a number: %T", key, value)
	return 0
}
