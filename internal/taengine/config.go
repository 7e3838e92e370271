package taengine

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"quantedge-ta/internal/indicator"
)

// Config holds all env-parsed configuration for the indicator service.
type Config struct {
	Symbol string
	Specs  []indicator.Spec

	// Batch mode: when InputCSV is set the service computes the whole file
	// and writes one output CSV per indicator, then exits.
	InputCSV  string
	OutputDir string

	// Streaming mode inputs.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	BarStream     string // redis stream carrying observation JSON

	SQLitePath        string
	SnapshotKey       string
	SnapshotIntervalS int
	HTTPAddr          string
}

// LoadConfig reads all environment variables and returns a Config.
func LoadConfig() (Config, error) {
	symbol := getEnv("SYMBOL", "BTCUSDT")
	specs, err := ParseSpecs(getEnv("INDICATOR_SPECS", ""))
	if err != nil {
		return Config{}, err
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	snapInterval, _ := strconv.Atoi(getEnv("SNAPSHOT_INTERVAL_SEC", "30"))
	if snapInterval <= 0 {
		snapInterval = 30
	}

	return Config{
		Symbol:            symbol,
		Specs:             specs,
		InputCSV:          getEnv("INPUT_CSV", ""),
		OutputDir:         getEnv("OUTPUT_DIR", "out"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           redisDB,
		BarStream:         getEnv("BAR_STREAM", "bars:"+symbol),
		SQLitePath:        getEnv("SQLITE_PATH", "data/indicators.db"),
		SnapshotKey:       getEnv("SNAPSHOT_KEY", "ta:snapshot:"+symbol),
		SnapshotIntervalS: snapInterval,
		HTTPAddr:          getEnv("HTTP_ADDR", ":9095"),
	}, nil
}

// ParseSpecs parses "TYPE:PERIOD[:MULTIPLIER],..." into indicator specs,
// e.g. "SMA:20,EMA:9,RSI:14,BB:20:2.5". An empty string selects defaults.
func ParseSpecs(s string) ([]indicator.Spec, error) {
	if strings.TrimSpace(s) == "" {
		return []indicator.Spec{
			{Type: "SMA", Period: 20},
			{Type: "EMA", Period: 9},
			{Type: "RSI", Period: 14},
			{Type: "BB", Period: 20},
		}, nil
	}

	var specs []indicator.Spec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("bad indicator spec %q, want TYPE:PERIOD[:MULTIPLIER]", part)
		}
		period, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("bad period in spec %q: %w", part, err)
		}
		spec := indicator.Spec{
			Type:   strings.ToUpper(strings.TrimSpace(fields[0])),
			Period: period,
		}
		if len(fields) == 3 {
			mult, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
			if err != nil {
				return nil, fmt.Errorf("bad multiplier in spec %q: %w", part, err)
			}
			spec.Multiplier = mult
		}
		specs = append(specs, spec)
	}
	if err := indicator.ValidateSpecs(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
