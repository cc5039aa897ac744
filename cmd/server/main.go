package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lockstep/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	secret = configVar[string]{
		envKey:       "SERVER_SECRET",
		flagKey:      "secret",
		defaultValue: "",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	logPath = configVar[string]{
		envKey:       "SERVER_LOG_PATH",
		flagKey:      "log-path",
		defaultValue: "",
	}
	tokenTTL = configVar[time.Duration]{
		envKey:       "SERVER_TOKEN_TTL",
		flagKey:      "token-ttl",
		defaultValue: 7 * 24 * time.Hour,
	}
	secureCookie = configVar[bool]{
		envKey:       "SERVER_SECURE_COOKIE",
		flagKey:      "secure-cookie",
		defaultValue: false,
	}
	wsSendBuffer = configVar[int]{
		envKey:       "SERVER_WS_SEND_BUFFER",
		flagKey:      "ws-send-buffer",
		defaultValue: 64,
	}
	wsPingPeriod = configVar[time.Duration]{
		envKey:       "SERVER_WS_PING_PERIOD",
		flagKey:      "ws-ping-period",
		defaultValue: 30 * time.Second,
	}
	wsReadLimit = configVar[int64]{
		envKey:       "SERVER_WS_READ_LIMIT",
		flagKey:      "ws-read-limit",
		defaultValue: 4096,
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(secret.flagKey, secret.defaultValue, "Secret used to sign session tokens")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.String(logPath.flagKey, logPath.defaultValue, "Log file path, stdout only when empty")
	pflag.Duration(tokenTTL.flagKey, tokenTTL.defaultValue, "Session token lifetime")
	pflag.Bool(secureCookie.flagKey, secureCookie.defaultValue, "Mark the session cookie secure")
	pflag.Int(wsSendBuffer.flagKey, wsSendBuffer.defaultValue, "Queued outbound messages per websocket connection")
	pflag.Duration(wsPingPeriod.flagKey, wsPingPeriod.defaultValue, "Websocket ping period")
	pflag.Int64(wsReadLimit.flagKey, wsReadLimit.defaultValue, "Maximum inbound websocket message size in bytes")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(secret.flagKey, secret.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(logPath.flagKey, logPath.envKey)
	viper.BindEnv(tokenTTL.flagKey, tokenTTL.envKey)
	viper.BindEnv(secureCookie.flagKey, secureCookie.envKey)
	viper.BindEnv(wsSendBuffer.flagKey, wsSendBuffer.envKey)
	viper.BindEnv(wsPingPeriod.flagKey, wsPingPeriod.envKey)
	viper.BindEnv(wsReadLimit.flagKey, wsReadLimit.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(secret.flagKey, secret.defaultValue)
	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(logPath.flagKey, logPath.defaultValue)
	viper.SetDefault(tokenTTL.flagKey, tokenTTL.defaultValue)
	viper.SetDefault(secureCookie.flagKey, secureCookie.defaultValue)
	viper.SetDefault(wsSendBuffer.flagKey, wsSendBuffer.defaultValue)
	viper.SetDefault(wsPingPeriod.flagKey, wsPingPeriod.defaultValue)
	viper.SetDefault(wsReadLimit.flagKey, wsReadLimit.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	return &app.AppConfig{
		Secret:        viper.GetString(secret.flagKey),
		Host:          viper.GetString(host.flagKey),
		Port:          viper.GetInt(port.flagKey),
		LogLevel:      viper.GetString(logLevel.flagKey),
		LogPath:       viper.GetString(logPath.flagKey),
		TokenTTL:      viper.GetDuration(tokenTTL.flagKey),
		SecureCookie:  viper.GetBool(secureCookie.flagKey),
		WSSendBuffer:  viper.GetInt(wsSendBuffer.flagKey),
		WSPingPeriod:  viper.GetDuration(wsPingPeriod.flagKey),
		WSReadLimit:   viper.GetInt64(wsReadLimit.flagKey),
		RedisPort:     viper.GetInt(redisPort.flagKey),
		RedisHost:     viper.GetString(redisHost.flagKey),
		RedisPassword: viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
