package config

import "time"

const (
	DefaultAPIBaseURL                  = "http://localhost:3000/api"
	DefaultStuckJobThreshold           = 30 * time.Second
	DefaultMaxJobAttempts              = 3
	DefaultWorkerCount                 = 2
	DefaultHeartbeatInterval           = 10 * time.Second
	DefaultMaxChunkSizeBytes     int64 = 24 * 1024 * 1024
	DefaultPollInterval                = 5 * time.Second
	DefaultMaxConcurrentTranscriptions = 4
	DefaultDispatchQueueSize           = 1000
	DefaultTranscriptionModel          = "whisper-1"
	DefaultOpenAIBaseURL               = "https://api.openai.com/v1"
	DefaultAudioTask                   = "transcriptions"
	DefaultTokenizerEncoding           = "o200k_base"
	DefaultFFmpegPath                  = "ffmpeg"
	DefaultFFprobePath                 = "ffprobe"
	DefaultJanitorSchedule             = "@every 1h"
	DefaultScratchMaxAge               = 60 * time.Minute
	DefaultRabbitMQExchange            = "assetprocessor"
	DefaultRabbitMQQueue               = "assetprocessor.outcomes"
	DefaultRabbitMQRoutingKey          = "jobs.outcome"
	DefaultMetricsExporter             = "none"
	DefaultMetricsExportInterval       = 60 * time.Second
	DefaultLogLevel                    = "info"
)
