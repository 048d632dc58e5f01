package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigNormalizeDefaults(t *testing.T) {
	var cfg Config
	cfg.Normalize()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, "5432", cfg.Port)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 5, cfg.MaxConnections)
}

func TestConfigURLEscapesCredentials(t *testing.T) {
	cfg := Config{Host: "db", Port: "5433", User: "synth", Password: "p@ss/word", Name: "synthbot", SSLMode: "require"}
	assert.Equal(t, "postgres://synth:p%40ss%2Fword@db:5433/synthbot?sslmode=require", cfg.URL())
}

func TestConfigKeywordDSNQuotes(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "synth", Password: "it's", Name: "synthbot", SSLMode: "disable"}
	assert.Equal(t,
		`user='synth' password='it\'s' host='db' port='5432' dbname='synthbot' sslmode='disable'`,
		cfg.KeywordDSN(),
	)
}

func TestConfigKeywordDSNEmptyValues(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "synth", Name: "synthbot", SSLMode: `dis\able`}
	assert.Equal(t,
		`user='synth' password='' host='db' port='5432' dbname='synthbot' sslmode='dis\\able'`,
		cfg.KeywordDSN(),
	)
}
