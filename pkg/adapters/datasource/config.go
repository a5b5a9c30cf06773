package datasource

import (
	"fmt"
	"os"
)

// StringValue reads a string option from an adapter config map.
func StringValue(config map[string]any, key string) (string, bool) {
	v, ok := config[key].(string)
	return v, ok
}

// IntValue reads an integer option. YAML decodes to int, JSON to float64.
func IntValue(config map[string]any, key string) (int, bool) {
	switch v := config[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// BoolValue reads a boolean option, accepting "true"/"false" strings.
func BoolValue(config map[string]any, key string) (bool, bool) {
	switch v := config[key].(type) {
	case bool:
		return v, true
	case string:
		return v == "true", true
	}
	return false, false
}

// SecretValue reads a secret either inline (key) or from the environment
// variable named by key+"_env". The environment reference wins.
func SecretValue(config map[string]any, key string) (string, error) {
	if envName, ok := StringValue(config, key+"_env"); ok && envName != "" {
		v, set := os.LookupEnv(envName)
		if !set {
			return "", fmt.Errorf("%s_env references unset variable %s", key, envName)
		}
		return v, nil
	}
	v, _ := StringValue(config, key)
	return v, nil
}
