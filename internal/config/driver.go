package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// StorageDriver selects the attempt ledger backend.
type StorageDriver int

const (
	Postgres StorageDriver = iota + 1
	Redis
)

// String converts the StorageDriver enum to a human-readable string.
func (d StorageDriver) String() string {
	switch d {
	case Redis:
		return "redis"
	case Postgres:
		return "postgres"
	}
	return "unknown"
}

// ParseRedisURL parses a connection string like redis://:password@host:port/db.
func ParseRedisURL(connectionString string) (RedisConfig, error) {
	u, err := url.Parse(connectionString)
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid redis connection string: %w", err)
	}
	if u.Host == "" {
		return RedisConfig{}, fmt.Errorf("invalid redis connection string %q: missing host", connectionString)
	}

	password := ""
	if u.User != nil {
		password, _ = u.User.Password()
	}

	db := 0
	if u.Path != "" && u.Path != "/" {
		db, err = strconv.Atoi(strings.TrimPrefix(u.Path, "/"))
		if err != nil {
			return RedisConfig{}, fmt.Errorf("invalid db number in redis connection string: %w", err)
		}
	}

	return RedisConfig{Address: u.Host, Password: password, DB: db}, nil
}
