package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type EventsCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	Queue   int
}

type Config struct {
	Addr     string
	LogLevel string

	IndexURL       string
	DatasetBaseURL string

	WFSURL          string
	WFSTypeName     string
	SRSName         string
	WFSCount        int
	WFSRetryMax     int
	WFSRetryBackoff time.Duration

	BBoxEpsilon float64
	HTTPTimeout time.Duration

	CacheSize int
	CacheRes  int

	RedisAddr string

	SheetWarnThreshold int

	// Publication cadence of the bulk datasets; informational only, the
	// engine reports geometry misses as staleness events either way.
	DatasetRefreshHint time.Duration

	Events EventsCfg
}

const (
	defaultIndexURL = "https://raw.githubusercontent.com/ondata/dati_catastali/main/S_0000_ITALIA/anagrafica/index.parquet"
	defaultBaseURL  = "https://raw.githubusercontent.com/ondata/dati_catastali/main/S_0000_ITALIA/anagrafica/"
	defaultWFSURL   = "https://wfs.cartografia.agenziaentrate.gov.it/inspire/wfs/owfs01.php"
)

func FromEnv() Config {
	return Config{
		Addr:     getenv("ADDR", ":8090"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		IndexURL:       getenv("INDEX_URL", defaultIndexURL),
		DatasetBaseURL: getenv("DATASET_BASE_URL", defaultBaseURL),

		WFSURL:          getenv("WFS_URL", defaultWFSURL),
		WFSTypeName:     getenv("WFS_TYPENAME", "CP:CadastralParcel"),
		SRSName:         getenv("WFS_SRSNAME", "EPSG:6706"),
		WFSCount:        getint("WFS_COUNT", 10),
		WFSRetryMax:     getint("WFS_RETRY_MAX", 2),
		WFSRetryBackoff: getduration("WFS_RETRY_BACKOFF", 500*time.Millisecond),

		BBoxEpsilon: getfloat("BBOX_EPSILON", 1e-5),
		HTTPTimeout: getduration("HTTP_TIMEOUT", 30*time.Second),

		CacheSize: getint("WFS_CACHE_SIZE", 256),
		CacheRes:  getint("WFS_CACHE_RES", 13),

		RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),

		SheetWarnThreshold: getint("SHEET_WARN_THRESHOLD", 1000),

		DatasetRefreshHint: getduration("DATASET_REFRESH_HINT", 30*24*time.Hour),

		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("EVENTS_TOPIC", "parcel-commits"),
			Queue:   getint("EVENTS_QUEUE", 256),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
