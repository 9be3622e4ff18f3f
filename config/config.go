package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full configuration surface of the strategy. Everything the
// trading loop needs is carried here explicitly; there is no ambient state.
type Config struct {
	// Exchange credentials
	BinanceAPIKey    string
	BinanceSecretKey string
	UseTestnet       bool

	// Paper trading
	Paper        bool
	PaperBalance float64
	PaperHedge   bool // simulate a hedge-mode account

	// Strategy
	Symbol       string
	Leverage     int
	RiskFraction float64 // fraction of balance put at risk per trade
	PollInterval time.Duration
	ProfitTarget float64 // percent of initial margin, e.g. 6.0
	StopLoss     float64 // percent of initial margin, e.g. -3.0
	PriceTrigger float64 // percent deviation from the moving average
	HistorySize  int     // moving-average window length

	// Order execution
	OpenRetries  int
	CloseRetries int
	RetryDelay   time.Duration

	// Integrations
	TelegramToken    string
	AuthorizedUserID int64
	Port             string
}

// Load reads .env plus the environment. Defaults mirror the reference
// strategy parameters.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	return &Config{
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceSecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		UseTestnet:       getBool("USE_TESTNET", false),

		Paper:        getBool("PAPER_TRADING", false),
		PaperBalance: getFloat("PAPER_BALANCE", 5000.0),
		PaperHedge:   getBool("PAPER_HEDGE", false),

		Symbol:       getString("SYMBOL", "DOGEUSDT"),
		Leverage:     getInt("LEVERAGE", 75),
		RiskFraction: getFloat("RISK_FRACTION", 0.01),
		PollInterval: getDuration("POLL_INTERVAL", time.Second),
		ProfitTarget: getFloat("PROFIT_TARGET", 6.0),
		StopLoss:     getFloat("STOP_LOSS", -3.0),
		PriceTrigger: getFloat("PRICE_TRIGGER", 0.05),
		HistorySize:  getInt("HISTORY_SIZE", 100),

		OpenRetries:  getInt("OPEN_RETRIES", 3),
		CloseRetries: getInt("CLOSE_RETRIES", 5),
		RetryDelay:   getDuration("RETRY_DELAY", time.Second),

		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		AuthorizedUserID: getInt64("AUTHORIZED_USER_ID", 0),
		Port:             getString("PORT", "8080"),
	}
}

// Validate rejects configurations the loop cannot run with.
func (c *Config) Validate() error {
	if !c.Paper && (c.BinanceAPIKey == "" || c.BinanceSecretKey == "") {
		return fmt.Errorf("BINANCE_API_KEY and BINANCE_SECRET_KEY are required outside paper trading")
	}
	if c.Symbol == "" {
		return fmt.Errorf("SYMBOL must not be empty")
	}
	if c.Leverage < 1 {
		return fmt.Errorf("LEVERAGE must be >= 1, got %d", c.Leverage)
	}
	if c.RiskFraction <= 0 || c.RiskFraction > 1 {
		return fmt.Errorf("RISK_FRACTION must be in (0, 1], got %v", c.RiskFraction)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.StopLoss >= c.ProfitTarget {
		return fmt.Errorf("STOP_LOSS (%v) must be below PROFIT_TARGET (%v)", c.StopLoss, c.ProfitTarget)
	}
	if c.HistorySize < 1 {
		return fmt.Errorf("HISTORY_SIZE must be >= 1, got %d", c.HistorySize)
	}
	if c.OpenRetries < 1 || c.CloseRetries < 1 {
		return fmt.Errorf("retry budgets must be >= 1")
	}
	return nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
