package settings

import (
	"os"
	"strings"
)

const (
	aliasEnv = "ENV/"
	aliasSec = "SEC/"
	aliasUsr = "<USR>"
	aliasApp = "<APP>"
)

// replaceValue recurses obj (which may be a map, a slice, or a scalar
// decoded from YAML) applying alias substitution to every string leaf.
func (s *Store) replaceValue(obj any) any {
	switch v := obj.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = s.replaceValue(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = s.replaceValue(item)
		}
		return out
	case string:
		return s.lookupAlias(v)
	default:
		return obj
	}
}

// lookupAlias resolves one of the four recognised prefixes. An ENV/
// reference with an empty remainder or an unset variable returns the
// original string unchanged; a SEC/ reference with an empty remainder or no
// secret behind it returns nil — this asymmetry matches the source
// behaviour exactly. <USR> and <APP> are always replaced by the user-data
// and app-data path.
func (s *Store) lookupAlias(value string) any {
	switch {
	case strings.HasPrefix(value, aliasEnv):
		envKey := strings.TrimSpace(strings.TrimPrefix(value, aliasEnv))
		if envKey == "" {
			return value
		}
		if v, ok := os.LookupEnv(envKey); ok {
			return v
		}
		return value

	case strings.HasPrefix(value, aliasSec):
		secretKey := strings.TrimSpace(strings.TrimPrefix(value, aliasSec))
		if secretKey == "" {
			return nil
		}
		if s.secrets == nil {
			return nil
		}
		if v := s.secrets.GetSecret(secretKey, "", ""); v != "" {
			return v
		}
		return nil

	case strings.HasPrefix(value, aliasUsr):
		return strings.TrimSpace(strings.Replace(value, aliasUsr, s.usrDataPath, 1))

	case strings.HasPrefix(value, aliasApp):
		return strings.TrimSpace(strings.Replace(value, aliasApp, s.appDataPath, 1))

	default:
		return value
	}
}
