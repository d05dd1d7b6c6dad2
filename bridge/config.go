package bridge

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	netconfig "github.com/suilotto/zkgateway/client/config"
)

const (
	DefaultRedisAddr = "127.0.0.1:6379"
	DefaultJWTSecret = "zkgateway-session-secret"
	DefaultHTTPPort  = 8080
	ShutdownTimeout  = 30 * time.Second
)

type Config struct {
	RedisAddr       string
	HTTPPort        int
	JWTSecret       []byte
	MongoURL        string
	Network         netconfig.NetworkConfig
	ShutdownTimeout time.Duration
	AsynqConfig     asynq.Config
}

func NewConfig() *Config {
	network := netconfig.FromEnv()
	if err := network.Validate(); err != nil {
		log.Fatalf("Invalid network configuration: %v", err)
	}

	return &Config{
		RedisAddr:       getRedisAddr(),
		HTTPPort:        getHTTPPort(),
		JWTSecret:       initializeJWTSecret(),
		MongoURL:        os.Getenv("MONGO_URL"),
		Network:         network,
		ShutdownTimeout: ShutdownTimeout,
		AsynqConfig: asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ShutdownTimeout: ShutdownTimeout,
			RetryDelayFunc:  asynq.DefaultRetryDelayFunc,
			IsFailure: func(err error) bool {
				return err != nil
			},
		},
	}
}

func initializeJWTSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = DefaultJWTSecret
		log.Printf("Warning: Using default JWT secret for session tokens")
		log.Printf("Set JWT_SECRET environment variable for production deployment")
	} else {
		log.Println("JWT secret loaded from environment")
	}
	return []byte(secret)
}

func getRedisAddr() string {
	// Check for REDIS_URL first (Docker Compose style)
	if url := os.Getenv("REDIS_URL"); url != "" {
		if len(url) > 8 && url[:8] == "redis://" {
			return url[8:]
		}
		return url
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	log.Printf("Using default Redis address: %s", DefaultRedisAddr)
	return DefaultRedisAddr
}

// getHTTPPort returns the HTTP port for the gateway service.
func getHTTPPort() int {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			return p
		}
	}
	return DefaultHTTPPort
}
