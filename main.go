package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"futures_bot/config"
	"futures_bot/internal/engine"
	"futures_bot/internal/exchange"
	"futures_bot/internal/models"
	"futures_bot/internal/telegram"
	"futures_bot/internal/web"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("🚀 Starting futures bot...")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	real := exchange.NewFuturesGateway(cfg.BinanceAPIKey, cfg.BinanceSecretKey, cfg.UseTestnet)

	var gw exchange.Gateway = real
	if cfg.Paper {
		// Live market data, in-memory account.
		mode := models.ModeOneWay
		if cfg.PaperHedge {
			mode = models.ModeHedge
		}
		gw = exchange.NewPaperGateway(real, cfg.PaperBalance, mode)
		log.Printf("📊 paper trading enabled, balance %.2f USDT (%s)", cfg.PaperBalance, mode)
	}

	eng := engine.New(gw, cfg)

	var bot *telegram.Bot
	if cfg.TelegramToken != "" && cfg.AuthorizedUserID != 0 {
		var err error
		bot, err = telegram.NewBot(cfg.TelegramToken, cfg.AuthorizedUserID, eng)
		if err != nil {
			log.Fatalf("failed to create Telegram bot: %v", err)
		}
		eng.SetCallbacks(bot.SendTradeOpen, bot.SendTradeClose)
		go bot.Start()
	}

	web.NewServer(eng, cfg.Port).Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := eng.Run(ctx)
	if err != nil {
		if bot != nil {
			bot.SendFatal(err)
		}
		log.Printf("🛑 strategy stopped: %v", err)
	}

	if bot != nil {
		bot.Stop()
	}
	log.Println("👋 Goodbye!")
}
