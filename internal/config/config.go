package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Postgres  DBConfig
	Redis     RedisConfig
	S3        S3Config
	Logger    Logger
	Worker    WorkerConfig
	Queue     QueueConfig
	Retry     RetryConfig
	OpenAI    OpenAIConfig
	FFmpeg    FFmpegConfig
	TaskStore TaskStoreConfig
	Nats      NatsConfig
}

type ServerConfig struct {
	AppVersion   string
	Port         string
	Mode         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    string
	UploadDir    string
	// EmbedWorker runs the stage workers inside the server process.
	EmbedWorker bool
}

type WorkerConfig struct {
	ExtractConcurrency    int
	TranscribeConcurrency int
	SplitConcurrency      int
	MaxCPUUsage           float64
	FFmpegTimeout         time.Duration
	TranscribeTimeout     time.Duration
	UploadTimeout         time.Duration
	StoreTimeout          time.Duration
}

type QueueConfig struct {
	Prefix          string
	Attempts        int
	Backoff         time.Duration
	PollInterval    time.Duration
	LockDuration    time.Duration
	RetainCompleted time.Duration
}

type RetryConfig struct {
	MaxRetry  int
	BaseDelay time.Duration
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	PgDriver string
	SSLMode  string
}

type RedisConfig struct {
	RedisAddr     string
	RedisPassword string
	DB            int
	MinIdleConns  int
	PoolSize      int
	PoolTimeout   int
	TLS           bool
}

type S3Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Folder        string
	PublicBaseURL string
	PresignExpiry time.Duration
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Prompt  string
}

type FFmpegConfig struct {
	Path       string
	VideoCodec string
	AudioCodec string
}

type TaskStoreConfig struct {
	Driver   string
	BoltPath string
}

type NatsConfig struct {
	URL     string
	Subject string
}

type Logger struct {
	Development       bool
	DisableCaller     bool
	DisableStacktrace bool
	Encoding          string
	Level             string
}

func LoadConfig(filename string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFound) {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if c.Queue.Attempts < 1 {
		return nil, errors.New("queue.attempts must be at least 1")
	}
	if c.TaskStore.Driver != "postgres" && c.TaskStore.Driver != "bolt" {
		return nil, errors.New("taskStore.driver must be postgres or bolt")
	}
	// bbolt locks its file for one process
	if c.TaskStore.Driver == "bolt" && !c.Server.EmbedWorker {
		return nil, errors.New("taskStore.driver bolt needs server.embedWorker: the server and worker must share one process")
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":5000")
	v.SetDefault("server.mode", "Development")
	v.SetDefault("server.readTimeout", 10*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.bodyLimit", "500M")
	v.SetDefault("server.uploadDir", "uploads")
	v.SetDefault("server.embedWorker", false)

	v.SetDefault("worker.extractConcurrency", 1)
	v.SetDefault("worker.transcribeConcurrency", 1)
	v.SetDefault("worker.splitConcurrency", 1)
	v.SetDefault("worker.maxCPUUsage", 90.0)
	v.SetDefault("worker.ffmpegTimeout", 10*time.Minute)
	v.SetDefault("worker.transcribeTimeout", 5*time.Minute)
	v.SetDefault("worker.uploadTimeout", 2*time.Minute)
	v.SetDefault("worker.storeTimeout", 10*time.Second)

	v.SetDefault("queue.prefix", "clipper")
	v.SetDefault("queue.attempts", 3)
	v.SetDefault("queue.backoff", time.Second)
	v.SetDefault("queue.pollInterval", 500*time.Millisecond)
	v.SetDefault("queue.lockDuration", 30*time.Second)
	v.SetDefault("queue.retainCompleted", 24*time.Hour)

	v.SetDefault("retry.maxRetry", 3)
	v.SetDefault("retry.baseDelay", time.Second)

	v.SetDefault("openai.model", "whisper-1")
	v.SetDefault("openai.prompt", "Make segments in transcription strictly on meaningful sentences and on pauses.")

	v.SetDefault("ffmpeg.path", "ffmpeg")
	v.SetDefault("ffmpeg.videoCodec", "libx264")
	v.SetDefault("ffmpeg.audioCodec", "aac")

	v.SetDefault("taskStore.driver", "postgres")
	v.SetDefault("taskStore.boltPath", "tasks.db")

	v.SetDefault("s3.folder", "clips")
	v.SetDefault("s3.presignExpiry", 7*24*time.Hour)

	v.SetDefault("nats.subject", "clipper.tasks.lifecycle")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "console")
}
