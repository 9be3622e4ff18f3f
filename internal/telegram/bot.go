package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"futures_bot/internal/engine"
	"futures_bot/internal/models"
)

// Bot is the Telegram notification and remote-control surface: it reads
// engine state, relays trade events and can stop the monitoring loop.
type Bot struct {
	bot          *tele.Bot
	engine       *engine.Engine
	authorizedID int64
}

func NewBot(token string, authorizedID int64, eng *engine.Engine) (*Bot, error) {
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	bot := &Bot{
		bot:          b,
		engine:       eng,
		authorizedID: authorizedID,
	}
	bot.setupHandlers()
	return bot, nil
}

func (b *Bot) Start() {
	log.Println("📱 Telegram bot started")
	b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
}

var (
	btnStatus    = tele.Btn{Text: "📊 Статус", Unique: "status"}
	btnPositions = tele.Btn{Text: "📋 Позиции", Unique: "positions"}
	btnTrades    = tele.Btn{Text: "📜 Сделки", Unique: "trades"}
	btnStop      = tele.Btn{Text: "⏸️ Остановить", Unique: "stop_trading"}
	btnBack      = tele.Btn{Text: "🔙 Назад", Unique: "back"}
)

func (b *Bot) setupHandlers() {
	b.bot.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender().ID != b.authorizedID {
				return c.Send("⛔ Unauthorized")
			}
			return next(c)
		}
	})

	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/status", b.handleStatus)
	b.bot.Handle("/positions", b.handlePositions)
	b.bot.Handle("/trades", b.handleTrades)
	b.bot.Handle("/stop", b.handleStopTrading)

	b.bot.Handle(&btnStatus, b.handleStatus)
	b.bot.Handle(&btnPositions, b.handlePositions)
	b.bot.Handle(&btnTrades, b.handleTrades)
	b.bot.Handle(&btnStop, b.handleStopTrading)
	b.bot.Handle(&btnBack, b.handleStart)
}

func (b *Bot) handleStart(c tele.Context) error {
	st := b.engine.Status()

	menu := &tele.ReplyMarkup{}
	rows := []tele.Row{
		menu.Row(btnStatus, btnPositions),
		menu.Row(btnTrades),
	}
	if st.Running {
		rows = append(rows, menu.Row(btnStop))
	}
	menu.Inline(rows...)

	msg := fmt.Sprintf(`🤖 *Бот Binance Futures: %s*

🔄 Статус: %s

Выберите действие:`, st.Symbol, runningLabel(st.Running))

	return c.Send(msg, menu, tele.ModeMarkdown)
}

func (b *Bot) handleStatus(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st := b.engine.Status()
	stats := b.engine.Stats()
	balance, _ := b.engine.Balance(ctx)

	mode := "⚡ Реальная торговля"
	if st.Paper {
		mode = "📊 Бумажная торговля"
	}

	msg := fmt.Sprintf(`📊 *Статус стратегии*

🔄 Статус: %s
🎯 Режим: %s
💰 Баланс: %.2f USDT
📈 Цена %s: %.6f
📉 Средняя цена: %.6f
📅 Сделок всего: %d
🏆 Прибыльных: %d
📉 Убыточных: %d
📊 Винрейт: %.1f%%
💰 Реализованный P&L: %+.2f USDT

🕐 Время работы: %s`,
		runningLabel(st.Running),
		mode,
		balance,
		st.Symbol,
		st.LastPrice,
		st.AveragePrice,
		stats.TotalTrades,
		stats.Wins,
		stats.Losses,
		stats.WinRate,
		stats.RealizedPL,
		formatUptime(st.Uptime),
	)

	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(btnStatus, btnPositions),
		menu.Row(btnBack),
	)
	return c.Send(msg, menu, tele.ModeMarkdown)
}

func (b *Bot) handleStopTrading(c tele.Context) error {
	if !b.engine.Status().Running {
		return c.Send("⏸️ Торговля уже остановлена")
	}
	b.engine.Stop()

	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(btnBack))
	return c.Send("⏸️ *Торговля остановлена*\n\nОткрытые позиции не закрываются автоматически.", menu, tele.ModeMarkdown)
}

func (b *Bot) handlePositions(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	positions, err := b.engine.Positions(ctx)
	if err != nil {
		return c.Send(fmt.Sprintf("⚠️ Не удалось получить позиции: %v", err))
	}

	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(btnBack))

	if len(positions) == 0 {
		return c.Send("📋 Нет открытых позиций", menu)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 *Открытые позиции (%d)*\n\n", len(positions)))
	for _, p := range positions {
		emoji := "🟢"
		if p.IsShort() {
			emoji = "🔴"
		}
		sb.WriteString(fmt.Sprintf(`%s *%s %s*
   📊 Объём: %.6f | Вход: %.6f
   💰 P&L: %+.4f USDT

`, emoji, p.Side, p.Symbol, p.Amount, p.EntryPrice, p.UnrealizedProfit))
	}
	return c.Send(sb.String(), menu, tele.ModeMarkdown)
}

func (b *Bot) handleTrades(c tele.Context) error {
	trades := b.engine.Trades()

	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(btnBack))

	if len(trades) == 0 {
		return c.Send("📜 Журнал сделок пуст", menu)
	}

	// Last 10, newest first.
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📜 *Сделки (%d)*\n\n", len(trades)))
	start := len(trades) - 10
	if start < 0 {
		start = 0
	}
	for i := len(trades) - 1; i >= start; i-- {
		t := trades[i]
		sb.WriteString(fmt.Sprintf("%s %s %s | %+.2f USDT (%+.2f%%) | %s\n",
			plEmoji(t.RealizedPL), t.Side, t.Symbol, t.RealizedPL, t.PnLPercent, t.CloseReason))
	}
	return c.Send(sb.String(), menu, tele.ModeMarkdown)
}

// SendTradeOpen notifies about a filled entry order.
func (b *Bot) SendTradeOpen(order models.Order, price float64) {
	side := "📈 LONG"
	if order.Side == models.SideSell {
		side = "📉 SHORT"
	}
	msg := fmt.Sprintf(`✅ *ПОЗИЦИЯ ОТКРЫТА*

%s *%s*
📊 Количество: %v
💵 Цена: %.6f

⏰ %s`, side, order.Symbol, order.Quantity, price, time.Now().Format("15:04:05"))

	b.send(msg)
}

// SendTradeClose notifies about a closed position.
func (b *Bot) SendTradeClose(trade models.Trade) {
	msg := fmt.Sprintf(`%s *ПОЗИЦИЯ ЗАКРЫТА*

*%s %s* (%s)
💰 P&L: %+.2f USDT (%+.2f%%)
📊 %.6f → %.6f

⏰ %s`,
		plEmoji(trade.RealizedPL),
		trade.Side, trade.Symbol, trade.CloseReason,
		trade.RealizedPL, trade.PnLPercent,
		trade.EntryPrice, trade.ExitPrice,
		trade.ClosedAt.Format("15:04:05"))

	b.send(msg)
}

// SendFatal notifies that the loop stopped on an unrecoverable error.
func (b *Bot) SendFatal(err error) {
	b.send(fmt.Sprintf("🛑 *ТОРГОВЛЯ ОСТАНОВЛЕНА*\n\n%v", err))
}

func (b *Bot) send(msg string) {
	if _, err := b.bot.Send(&tele.User{ID: b.authorizedID}, msg, tele.ModeMarkdown); err != nil {
		log.Printf("⚠️ telegram send failed: %v", err)
	}
}

func runningLabel(running bool) string {
	if running {
		return "▶️ Активен"
	}
	return "⏸️ Остановлен"
}

func plEmoji(pl float64) string {
	if pl < 0 {
		return "⚠️"
	}
	return "✅"
}

func formatUptime(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dч %dмин", hours, minutes)
	}
	return fmt.Sprintf("%dмин", minutes)
}
