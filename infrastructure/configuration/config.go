package configuration

import (
	"fmt"
	"os"
	"strconv"

	"skypress/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App         App         `json:"app"`
	Database    Database    `json:"database"`
	Media       Media       `json:"media"`
	Pubsub      Pubsub      `json:"pubsub"`
	ServiceBus  ServiceBus  `json:"serviceBus"`
	RedisClient RedisClient `json:"redisClient"`
	Sky         Sky         `json:"sky"`
	Scheduler   Scheduler   `json:"scheduler"`
}

type App struct {
	Port        int    `json:"port"`
	TLSEnabled  bool   `json:"tlsEnabled"`
	TLSCertFile string `json:"tlsCertFile"`
	TLSKeyFile  string `json:"tlsKeyFile"`
}

type Database struct {
	Psql  Db `json:"psql"`
	Mssql Db `json:"mssql"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// Media configures the MongoDB-backed media store.
type Media struct {
	Mongo      Db     `json:"mongo"`
	Collection string `json:"collection"`
}

type Pubsub struct {
	ProjectID    string `json:"projectID"`
	Topic        string `json:"topic"`
	Subscription string `json:"subscription"`
}

type ServiceBus struct {
	Namespace string `json:"namespace"`
	Queue     string `json:"queue"`
}

type RedisClient struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Sky configures the remote publish API.
type Sky struct {
	ServiceURL   string `json:"serviceURL"`
	MaxBlobBytes int64  `json:"maxBlobBytes"`
	MaxImages    int    `json:"maxImages"`
}

// Scheduler configures task routing, retry and session caching.
type Scheduler struct {
	QueueEnabled       bool   `json:"queueEnabled"`
	QueueBackend       string `json:"queueBackend"` // pubsub | servicebus
	Backpressure       bool   `json:"backpressure"`
	BaseDelaySeconds   int    `json:"baseDelaySeconds"`
	MaxAttempts        int    `json:"maxAttempts"`
	BatchSize          int    `json:"batchSize"`
	CachePostAgents    bool   `json:"cachePostAgents"`
	CacheRepostAgents  bool   `json:"cacheRepostAgents"`
	RetainedTextRunes  int    `json:"retainedTextRunes"`
	HandleCacheTTLMins int    `json:"handleCacheTTLMins"`
}

var C Config

func init() {
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
	initScheduler(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	if C.Database.Psql.Name == "" {
		C.Database.Psql.Name = os.Getenv("DB_NAME")
	}
	if C.Database.Psql.Host == "" {
		C.Database.Psql.Host = os.Getenv("DB_HOST")
	}
	if C.Database.Psql.User == "" {
		C.Database.Psql.User = os.Getenv("DB_USER")
	}
	if C.Database.Psql.Password == "" {
		C.Database.Psql.Password = os.Getenv("DB_PASSWORD")
	}
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = os.Getenv("DB_PORT")
	}
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = "5432"
	}

	// Optional MSSQL config via environment variables (Azure SQL in production)
	if v := os.Getenv("MSSQL_DB_NAME"); v != "" && C.Database.Mssql.Name == "" {
		C.Database.Mssql.Name = v
	}
	if v := os.Getenv("MSSQL_HOST"); v != "" && C.Database.Mssql.Host == "" {
		C.Database.Mssql.Host = v
	}
	if v := os.Getenv("MSSQL_USER"); v != "" && C.Database.Mssql.User == "" {
		C.Database.Mssql.User = v
	}
	if v := os.Getenv("MSSQL_PASSWORD"); v != "" && C.Database.Mssql.Password == "" {
		C.Database.Mssql.Password = v
	}
	if C.Database.Mssql.Port == "" {
		C.Database.Mssql.Port = "1433"
	}

	if C.Media.Mongo.Host == "" {
		C.Media.Mongo.Host = os.Getenv("MONGO_HOST")
	}
	if C.Media.Mongo.Port == "" {
		C.Media.Mongo.Port = "27017"
	}
	if C.Media.Collection == "" {
		C.Media.Collection = "media_blobs"
	}
}

func initApp(C *Config) {
	// Port resolution order (env overrides config): APP_PORT -> PORT -> config -> default 10002
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10002
	}
}

func initScheduler(C *Config) {
	if C.Sky.ServiceURL == "" {
		C.Sky.ServiceURL = os.Getenv("SKY_SERVICE_URL")
	}
	if C.Sky.ServiceURL == "" {
		C.Sky.ServiceURL = "https://bsky.social"
	}
	if C.Sky.MaxBlobBytes == 0 {
		C.Sky.MaxBlobBytes = 1_000_000
	}
	if C.Sky.MaxImages == 0 {
		C.Sky.MaxImages = 4
	}
	if C.Scheduler.QueueBackend == "" {
		C.Scheduler.QueueBackend = "pubsub"
	}
	if C.Scheduler.BaseDelaySeconds == 0 {
		C.Scheduler.BaseDelaySeconds = 30
	}
	if C.Scheduler.MaxAttempts == 0 {
		C.Scheduler.MaxAttempts = 5
	}
	if C.Scheduler.BatchSize == 0 {
		C.Scheduler.BatchSize = 25
	}
	if C.Scheduler.RetainedTextRunes == 0 {
		C.Scheduler.RetainedTextRunes = 256
	}
	if C.Scheduler.HandleCacheTTLMins == 0 {
		C.Scheduler.HandleCacheTTLMins = 720
	}
	// Posting agents are cached within a batch; repost batches login per task
	// unless explicitly enabled.
	if v := os.Getenv("CACHE_POST_AGENTS"); v != "" {
		C.Scheduler.CachePostAgents = v == "true"
	}
	if v := os.Getenv("CACHE_REPOST_AGENTS"); v != "" {
		C.Scheduler.CacheRepostAgents = v == "true"
	}
}
