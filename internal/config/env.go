package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"assetprocessor/internal/custom_errors"
)

// LoadFromEnv reads the worker configuration from the process environment,
// after loading the given dotenv files (default ".env") when they exist.
// Variables already set in the environment win over the file.
func LoadFromEnv(dotenvFiles ...string) (*WorkerConfig, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, path := range dotenvFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	parseErrs := &custom_errors.ValidationError{}
	seconds := func(key string, fallback time.Duration) time.Duration {
		return time.Duration(getEnvAsInt(key, int(fallback/time.Second), parseErrs)) * time.Second
	}

	opts := []Option{
		WithAPI(getEnv("API_BASE_URL", DefaultAPIBaseURL), getEnv("SERVER_API_KEY", "")),
		WithStuckJobThreshold(seconds("STUCK_JOB_THRESHOLD_SECONDS", DefaultStuckJobThreshold)),
		WithMaxJobAttempts(getEnvAsInt("MAX_JOB_ATTEMPTS", DefaultMaxJobAttempts, parseErrs)),
		WithWorkerCount(getEnvAsInt("MAX_NUM_WORKERS", DefaultWorkerCount, parseErrs)),
		WithHeartbeatInterval(seconds("HEARTBEAT_INTERVAL_SECONDS", DefaultHeartbeatInterval)),
		WithPollInterval(seconds("POLL_INTERVAL_SECONDS", DefaultPollInterval)),
		WithDispatchQueueSize(getEnvAsInt("DISPATCH_QUEUE_SIZE", DefaultDispatchQueueSize, parseErrs)),
		WithMaxChunkSizeBytes(int64(getEnvAsInt("MAX_CHUNK_SIZE_BYTES", int(DefaultMaxChunkSizeBytes), parseErrs))),
		WithMaxConcurrentTranscriptions(getEnvAsInt("MAX_CONCURRENT_TRANSCRIPTIONS", DefaultMaxConcurrentTranscriptions, parseErrs)),
		WithTranscription(TranscriptionConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Model:   getEnv("OPENAI_MODEL", DefaultTranscriptionModel),
			BaseURL: getEnv("OPENAI_BASE_URL", DefaultOpenAIBaseURL),
			Task:    getEnv("OPENAI_AUDIO_TASK", DefaultAudioTask),
		}),
		WithMedia(MediaConfig{
			FFmpegPath:  getEnv("FFMPEG_PATH", DefaultFFmpegPath),
			FFprobePath: getEnv("FFPROBE_PATH", DefaultFFprobePath),
		}),
		WithTokenizerEncoding(getEnv("TOKENIZER_ENCODING", DefaultTokenizerEncoding)),
		WithScratch(
			getEnv("SCRATCH_DIR", ""),
			getEnv("JANITOR_SCHEDULE", DefaultJanitorSchedule),
			time.Duration(getEnvAsInt("SCRATCH_MAX_AGE_MINUTES", int(DefaultScratchMaxAge/time.Minute), parseErrs))*time.Minute,
		),
		WithMetrics(MetricsConfig{
			Exporter:       getEnv("METRICS_EXPORTER", DefaultMetricsExporter),
			OTLPEndpoint:   getEnv("METRICS_OTLP_ENDPOINT", ""),
			ExportInterval: seconds("METRICS_EXPORT_INTERVAL_SECONDS", DefaultMetricsExportInterval),
		}),
		WithLogLevel(getEnv("LOG_LEVEL", DefaultLogLevel)),
	}

	if url := getEnv("POSTGRES_URL", ""); url != "" {
		opts = append(opts, WithPostgresConfig(PostgresConfig{ConnectionUrl: url}))
	}
	if url := getEnv("REDIS_URL", ""); url != "" {
		rc, err := ParseRedisURL(url)
		if err != nil {
			parseErrs.Add(err)
		} else {
			opts = append(opts, WithRedisConfig(rc))
		}
	}
	if url := getEnv("RABBITMQ_URL", ""); url != "" {
		opts = append(opts, WithRabbitMQConfig(RabbitMQConfig{
			URL:        url,
			Exchange:   getEnv("RABBITMQ_EXCHANGE", DefaultRabbitMQExchange),
			Queue:      getEnv("RABBITMQ_QUEUE", DefaultRabbitMQQueue),
			RoutingKey: getEnv("RABBITMQ_ROUTING_KEY", DefaultRabbitMQRoutingKey),
		}))
	}

	cfg, err := NewWorkerConfig(opts...)
	if parseErrs.HasError() {
		if err != nil {
			parseErrs.Add(err)
		}
		return nil, parseErrs
	}
	return cfg, err
}

// getEnv returns the trimmed value of key, with surrounding quotes removed.
func getEnv(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.Trim(strings.TrimSpace(value), `'"`)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int, errs *custom_errors.ValidationError) int {
	str := getEnv(key, "")
	if str == "" {
		return fallback
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		errs.Add(fmt.Errorf("%s must be an integer, got %q", key, str))
		return fallback
	}
	return val
}
