package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "DIALBOOK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.max_conns", typ: kInt, env: "DIALBOOK_SERVER_MAX_CONNS",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxConns = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxConns },
	},
	{
		key: "server.token", typ: kString, env: "DIALBOOK_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "storage.data_dir", typ: kString, env: "DIALBOOK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.slot_key", typ: kString, env: "DIALBOOK_STORAGE_SLOT_KEY",
		apply:   func(cfg *Config, v any) { cfg.Storage.SlotKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.SlotKey },
	},
	{
		key: "phone.country_code", typ: kString, env: "DIALBOOK_PHONE_COUNTRY_CODE",
		apply:   func(cfg *Config, v any) { cfg.Phone.CountryCode = v.(string) },
		extract: func(cfg Config) any { return cfg.Phone.CountryCode },
	},
	{
		key: "phone.national_length", typ: kInt, env: "DIALBOOK_PHONE_NATIONAL_LENGTH",
		apply:   func(cfg *Config, v any) { cfg.Phone.NationalLength = v.(int) },
		extract: func(cfg Config) any { return cfg.Phone.NationalLength },
	},
	{
		key: "log.level", typ: kString, env: "DIALBOOK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "DIALBOOK_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
}

// applyBackend copies stored values into cfg. A value of the wrong type is
// reported on stderr and the previous value is kept.
func applyBackend(cfg *Config, b ConfigBackend) {
	for _, s := range specs {
		if s.secret {
			continue
		}
		var (
			v   any
			ok  bool
			err error
		)
		switch s.typ {
		case kString:
			v, ok, err = b.GetString(s.key)
		case kInt:
			v, ok, err = b.GetInt(s.key)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] ignoring config key %s: %v. Using default value.\n", s.key, err)
			continue
		}
		if ok {
			s.apply(cfg, v)
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
