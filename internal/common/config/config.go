package config

import (
	"log"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Telegram struct {
		BotToken string `env:"BOT_TOKEN,required"`
		Debug    bool   `env:"TELEGRAM_DEBUG" envDefault:"false"`

		// Channel references (e.g. "@mychannel"). An empty value disables
		// the corresponding membership check.
		MainChannel    string `env:"MAIN_CHANNEL" envDefault:""`
		PremiumChannel string `env:"PREMIUM_CHANNEL" envDefault:""`
	}

	Gacha struct {
		AdminIDs          []int64 `env:"ADMIN_IDS" envSeparator:","`
		DailyLimitFree    int     `env:"DAILY_LIMIT_FREE" envDefault:"10"`
		DailyLimitPremium int     `env:"DAILY_LIMIT_PREMIUM" envDefault:"15"`
		GroupOnly         bool    `env:"GROUP_ONLY" envDefault:"false"`
		PrivatePassword   string  `env:"PRIVATE_PASSWORD" envDefault:"admin123"`
	}
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}

	return cfg
}
