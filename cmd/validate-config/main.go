package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/vladimiradmaev/pill-reminder/internal/config"
)

func main() {
	fmt.Println("🔍 Checking configuration...")

	envFile := ".env"
	if len(os.Args) > 1 {
		envFile = os.Args[1]
	}
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("⚠️  %s not found: %v\n", envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Configuration is invalid:\n%v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Configuration is valid!")
	fmt.Printf("📋 Details:\n")
	fmt.Printf("  - Telegram Token: %s\n", maskToken(cfg.TelegramToken))
	fmt.Printf("  - DB Driver: %s\n", cfg.DB.Driver)
	if cfg.DB.URL != "" {
		fmt.Printf("  - DB URL: %s\n", maskToken(cfg.DB.URL))
	} else if cfg.DB.Driver == "postgres" {
		fmt.Printf("  - DB Host: %s:%s\n", cfg.DB.Host, cfg.DB.Port)
		fmt.Printf("  - DB User: %s\n", cfg.DB.User)
		fmt.Printf("  - DB Password: %s\n", maskToken(cfg.DB.Password))
	}
	fmt.Printf("  - DB Name: %s\n", cfg.DB.DBName)
	fmt.Printf("  - DB Pool / Timeout: %d / %s\n", cfg.DB.MaxOpenConns, cfg.DB.Timeout)
	fmt.Printf("  - Scheduler: %s, %d workers\n", cfg.Scheduler.Timezone, cfg.Scheduler.Workers)
	fmt.Printf("  - Escalation Interval: %s\n", cfg.Scheduler.EscalationInterval)
	fmt.Printf("  - Send Timeout / Rate: %s / %d per second\n", cfg.Sender.Timeout, cfg.Sender.RatePerSec)
	fmt.Printf("  - Redis: %s\n", orUnset(cfg.Redis.Addr))
	fmt.Printf("  - Metrics: %s\n", orUnset(cfg.Metrics.Addr))
	fmt.Printf("  - Log Level: %v\n", cfg.Logger.Level)
	fmt.Printf("  - Log Output: %s\n", cfg.Logger.OutputPath)
	fmt.Printf("  - Log Format: %s\n", cfg.Logger.Format)
	if cfg.Debug {
		fmt.Println("  - ⚠️  DEBUG is on: all data is wiped on shutdown")
	}
}

func maskToken(token string) string {
	if token == "" {
		return "<not set>"
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func orUnset(v string) string {
	if v == "" {
		return "<not set>"
	}
	return v
}
