package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-secure-stdlib/parseutil"
)

const (
	Port           = ":5003"
	RequestTimeout = 10 * time.Second
	EnvBaseURL     = "BASE_URL"
)

// 存储后端
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// 对象仓库后端
const (
	RegistryHTTP = "http"
	RegistryS3   = "s3"
)

// 统计接口字段风格
const (
	FieldStyleShort = "short" // key / file / count
	FieldStyleLong  = "long"  // objectKey / fileName / downloads
)

// S3Config S3 对象仓库配置
type S3Config struct {
	Endpoint        string
	BucketName      string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	Prefix          string
}

// Config 服务配置，全部来自环境变量
type Config struct {
	ListenAddr string
	DataDir    string
	LogFile    string
	LogLevel   string

	// 对象仓库
	BaseURL          string
	RegistryBackend  string
	RegistryBasePath string
	RegistryTimeout  time.Duration
	StaticDir        string
	S3               S3Config

	// 计数存储
	StoreBackend    string
	RedisTarget     string
	MemoryStoreSize int
	CounterAtomic   bool

	ObjectSuffix    string
	StatsFieldStyle string

	// 中间件
	CORSEnabled        bool
	CORSAllowedOrigins []string
	StatsCacheMaxAge   time.Duration
	RateLimitPerSecond int
	RateLimitBurst     int

	// 后台计数任务
	RecorderWorkers   int
	RecorderQueueSize int
	IncrementTimeout  time.Duration

	ShutdownTimeout time.Duration
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		ListenAddr:         Port,
		DataDir:            "data",
		LogFile:            "data/server.log",
		LogLevel:           "info",
		RegistryBackend:    RegistryHTTP,
		RegistryBasePath:   "/static",
		RegistryTimeout:    RequestTimeout,
		S3:                 S3Config{Region: "us-east-1"},
		StoreBackend:       StoreSQLite,
		RedisTarget:        "localhost:6379",
		MemoryStoreSize:    100000,
		CounterAtomic:      true,
		ObjectSuffix:       ".json",
		StatsFieldStyle:    FieldStyleShort,
		CORSEnabled:        true,
		CORSAllowedOrigins: []string{"*"},
		StatsCacheMaxAge:   10 * time.Minute,
		RateLimitPerSecond: 20,
		RateLimitBurst:     40,
		RecorderWorkers:    4,
		RecorderQueueSize:  1024,
		IncrementTimeout:   5 * time.Second,
		ShutdownTimeout:    10 * time.Second,
	}
}

// Load 读取环境变量并校验
func Load() (*Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (*Config, error) {
	c := Default()
	var errs *multierror.Error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := parseutil.ParseDurationSecond(v)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := parseutil.ParseBool(v)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := parseutil.ParseInt(v)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = int(n)
		}
	}

	str("LISTEN_ADDR", &c.ListenAddr)
	str("DATA_DIR", &c.DataDir)
	str("LOG_FILE", &c.LogFile)
	str("LOG_LEVEL", &c.LogLevel)

	str(EnvBaseURL, &c.BaseURL)
	str("REGISTRY_BACKEND", &c.RegistryBackend)
	str("REGISTRY_BASE_PATH", &c.RegistryBasePath)
	dur("REGISTRY_TIMEOUT", &c.RegistryTimeout)
	str("STATIC_DIR", &c.StaticDir)
	str("S3_ENDPOINT", &c.S3.Endpoint)
	str("S3_BUCKET", &c.S3.BucketName)
	str("S3_REGION", &c.S3.Region)
	str("S3_ACCESS_KEY_ID", &c.S3.AccessKeyID)
	str("S3_SECRET_ACCESS_KEY", &c.S3.SecretAccessKey)
	boolean("S3_USE_PATH_STYLE", &c.S3.UsePathStyle)
	str("S3_PREFIX", &c.S3.Prefix)

	str("STORE_BACKEND", &c.StoreBackend)
	str("REDIS_TARGET", &c.RedisTarget)
	integer("MEMORY_STORE_SIZE", &c.MemoryStoreSize)
	boolean("COUNTER_ATOMIC", &c.CounterAtomic)

	str("OBJECT_SUFFIX", &c.ObjectSuffix)
	str("STATS_FIELD_STYLE", &c.StatsFieldStyle)

	boolean("CORS_ENABLED", &c.CORSEnabled)
	if v, ok := lookup("CORS_ALLOWED_ORIGINS"); ok && v != "" {
		origins, err := parseutil.ParseCommaStringSlice(v)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("CORS_ALLOWED_ORIGINS: %w", err))
		} else {
			c.CORSAllowedOrigins = origins
		}
	}
	dur("STATS_CACHE_MAX_AGE", &c.StatsCacheMaxAge)
	integer("RATE_LIMIT_PER_SECOND", &c.RateLimitPerSecond)
	integer("RATE_LIMIT_BURST", &c.RateLimitBurst)

	integer("RECORDER_WORKERS", &c.RecorderWorkers)
	integer("RECORDER_QUEUE_SIZE", &c.RecorderQueueSize)
	dur("INCREMENT_TIMEOUT", &c.IncrementTimeout)
	dur("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate 检查配置组合是否合法
func (c *Config) Validate() error {
	var errs *multierror.Error

	switch c.StoreBackend {
	case StoreMemory:
		if c.MemoryStoreSize <= 0 {
			errs = multierror.Append(errs, fmt.Errorf("MEMORY_STORE_SIZE must be positive"))
		}
	case StoreRedis:
		if c.RedisTarget == "" {
			errs = multierror.Append(errs, fmt.Errorf("REDIS_TARGET is required for the redis store"))
		}
	case StoreSQLite:
		if c.DataDir == "" {
			errs = multierror.Append(errs, fmt.Errorf("DATA_DIR is required for the sqlite store"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.RegistryBackend {
	case RegistryHTTP:
		if !strings.HasPrefix(c.RegistryBasePath, "/") {
			errs = multierror.Append(errs, fmt.Errorf("REGISTRY_BASE_PATH must start with /"))
		}
		// 仓库地址只来自配置；未配置时退回本地 STATIC_DIR
		if c.BaseURL == "" && c.StaticDir == "" {
			errs = multierror.Append(errs, fmt.Errorf("%s or STATIC_DIR is required for the http registry", EnvBaseURL))
		}
		if c.BaseURL != "" {
			if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				errs = multierror.Append(errs, fmt.Errorf("%s must be an absolute http(s) URL", EnvBaseURL))
			}
		}
	case RegistryS3:
		if c.S3.BucketName == "" {
			errs = multierror.Append(errs, fmt.Errorf("S3_BUCKET is required for the s3 registry"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown REGISTRY_BACKEND %q", c.RegistryBackend))
	}

	if c.StatsFieldStyle != FieldStyleShort && c.StatsFieldStyle != FieldStyleLong {
		errs = multierror.Append(errs, fmt.Errorf("unknown STATS_FIELD_STYLE %q", c.StatsFieldStyle))
	}
	if c.ObjectSuffix == "" {
		errs = multierror.Append(errs, fmt.Errorf("OBJECT_SUFFIX must not be empty"))
	}
	if c.RecorderWorkers <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("RECORDER_WORKERS must be positive"))
	}
	if c.RecorderQueueSize <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("RECORDER_QUEUE_SIZE must be positive"))
	}
	if c.RateLimitPerSecond < 0 || c.RateLimitBurst < 0 {
		errs = multierror.Append(errs, fmt.Errorf("rate limit settings must not be negative"))
	}

	return errs.ErrorOrNil()
}
