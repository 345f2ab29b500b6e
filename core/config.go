package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Debug        bool
	TestMode     bool
	AppName      string
	Env          string
	Build        string
	RollbarToken string

	Server struct {
		Host            string
		Address         string
		DebugHost       string
		DisableReqLogs  bool
		ShutdownTimeout time.Duration
	}

	Database struct {
		Engine        string
		Host          string
		Port          int
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Name          string
		DisableTLS    bool
	}

	Supabase struct {
		URL         string
		JWTSecret   string
		JWTAudience string
		JWTLeeway   time.Duration
	}

	Cache struct {
		Engine        string // memory | redis
		Size          int
		TTL           time.Duration
		RedisAddress  string
		RedisPassword string
		RedisDB       int
	}
}

// DatabaseAddress returns the database "host:port".
func (conf *Config) DatabaseAddress() string {
	return net.JoinHostPort(conf.Database.Host, strconv.Itoa(conf.Database.Port))
}

// NewConfig loads the app configuration from the environment (and optional .env file).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Computer Students Hub")
	v.SetDefault("build", "develop")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_address", ":8000")
	v.SetDefault("server_debugHost", ":4000")
	v.SetDefault("server_disableReqLogs", false)
	v.SetDefault("server_shutdownTimeout", 5*time.Second)

	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", 5432)
	v.SetDefault("database_user", "cshub")
	v.SetDefault("database_password", "cshub")
	v.SetDefault("database_adminUser", "postgres")
	v.SetDefault("database_adminPassword", "postgres")
	v.SetDefault("database_name", "cshub")
	v.SetDefault("database_disableTLS", true)

	v.SetDefault("supabase_url", "")
	v.SetDefault("supabase_jwtSecret", "super-secret-jwt-token-with-at-least-32-characters-long")
	v.SetDefault("supabase_jwtAudience", "authenticated")
	v.SetDefault("supabase_jwtLeeway", 10*time.Second)

	v.SetDefault("cache_engine", "memory")
	v.SetDefault("cache_size", 10000)
	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("cache_redisAddress", "localhost:6379")
	v.SetDefault("cache_redisPassword", "")
	v.SetDefault("cache_redisDB", 0)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("database_name", "cshub_test")
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		Env:          env,
		Build:        v.GetString("build"),
		RollbarToken: v.GetString("rollbarToken"),
	}

	conf.Server.Host = v.GetString("server_host")
	conf.Server.Address = v.GetString("server_address")
	conf.Server.DebugHost = v.GetString("server_debugHost")
	conf.Server.DisableReqLogs = v.GetBool("server_disableReqLogs")
	conf.Server.ShutdownTimeout = v.GetDuration("server_shutdownTimeout")

	conf.Database.Engine = v.GetString("database_engine")
	conf.Database.Host = v.GetString("database_host")
	conf.Database.Port = v.GetInt("database_port")
	conf.Database.User = v.GetString("database_user")
	conf.Database.Password = v.GetString("database_password")
	conf.Database.AdminUser = v.GetString("database_adminUser")
	conf.Database.AdminPassword = v.GetString("database_adminPassword")
	conf.Database.Name = v.GetString("database_name")
	conf.Database.DisableTLS = v.GetBool("database_disableTLS")

	conf.Supabase.URL = v.GetString("supabase_url")
	conf.Supabase.JWTSecret = v.GetString("supabase_jwtSecret")
	conf.Supabase.JWTAudience = v.GetString("supabase_jwtAudience")
	conf.Supabase.JWTLeeway = v.GetDuration("supabase_jwtLeeway")

	conf.Cache.Engine = v.GetString("cache_engine")
	conf.Cache.Size = v.GetInt("cache_size")
	conf.Cache.TTL = v.GetDuration("cache_ttl")
	conf.Cache.RedisAddress = v.GetString("cache_redisAddress")
	conf.Cache.RedisPassword = v.GetString("cache_redisPassword")
	conf.Cache.RedisDB = v.GetInt("cache_redisDB")

	return conf
}
