package bot

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"ton_miner/internal/domain"
	"ton_miner/internal/logger"
	"ton_miner/internal/repository"
	"ton_miner/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

// Sender is the part of the Bot API the admin bot uses
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// AdminBot handles admin commands via Telegram and delivers withdrawal notices
type AdminBot struct {
	bot          *tgbotapi.BotAPI
	sender       Sender
	adminService *service.AdminService
	adminIDs     []int64 // Telegram user IDs who can use admin commands
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	log          *slog.Logger
}

// Connect authorizes the bot token against the Bot API
func Connect(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	logger.Component("admin_bot").Info("bot authorized", "username", api.Self.UserName)
	return api, nil
}

// NewAdminBot creates a new admin bot
func NewAdminBot(api *tgbotapi.BotAPI, adminService *service.AdminService, adminIDs []int64) *AdminBot {
	b := newAdminBot(api, adminService, adminIDs)
	b.bot = api
	return b
}

func newAdminBot(sender Sender, adminService *service.AdminService, adminIDs []int64) *AdminBot {
	return &AdminBot{
		sender:       sender,
		adminService: adminService,
		adminIDs:     adminIDs,
		stopCh:       make(chan struct{}),
		log:          logger.Component("admin_bot"),
	}
}

// Start listens for commands until Stop
func (b *AdminBot) Start() {
	if b.bot == nil {
		return
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.bot.GetUpdatesChan(u)
	b.log.Info("starting bot update loop")

	for {
		select {
		case <-b.stopCh:
			b.log.Info("stopping bot update loop")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			if !b.isAdmin(update.Message.From.ID) || !update.Message.IsCommand() {
				continue
			}

			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleCommand(msg)
			}(update.Message)
		}
	}
}

// Stop gracefully stops the bot
func (b *AdminBot) Stop() {
	b.stopOnce.Do(func() {
		b.log.Info("stopping admin bot...")
		close(b.stopCh)
		if b.bot != nil {
			b.bot.StopReceivingUpdates()
		}
	})

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("admin bot stopped gracefully")
	case <-time.After(10 * time.Second):
		b.log.Warn("admin bot shutdown timeout, some handlers may not have completed")
	}
}

func (b *AdminBot) isAdmin(userID int64) bool {
	for _, id := range b.adminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *AdminBot) handleCommand(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	response := b.execute(ctx, msg.Command(), msg.CommandArguments())

	reply := tgbotapi.NewMessage(msg.Chat.ID, response)
	reply.ParseMode = "HTML"
	reply.ReplyToMessageID = msg.MessageID

	if _, err := b.sender.Send(reply); err != nil {
		b.log.Error("error sending message", "error", err)
	}
}

func (b *AdminBot) execute(ctx context.Context, command, args string) string {
	switch command {
	case "start", "help":
		return helpMessage
	case "withdrawals":
		return b.handleWithdrawals(ctx, args)
	case "approve":
		return b.handleSetStatus(ctx, args, domain.WithdrawalStatusCompleted)
	case "reject":
		return b.handleSetStatus(ctx, args, domain.WithdrawalStatusRejected)
	case "grant":
		return b.handleGrant(ctx, args)
	case "reset":
		return b.handleReset(ctx, args)
	case "settings":
		return b.handleSettings()
	case "audit":
		return b.handleAudit(ctx, args)
	default:
		return "❌ Неизвестная команда. Используйте /help для списка команд."
	}
}

const helpMessage = `<b>🤖 Команды администратора</b>

<b>💸 Выводы:</b>
/withdrawals [Processing|Completed|Rejected|all] - Список выводов
/approve &lt;id&gt; - Отметить вывод выполненным
/reject &lt;id&gt; - Отклонить вывод

<b>👤 Пользователи:</b>
/grant &lt;tg_id&gt; &lt;сумма&gt; - Начислить TON
/reset &lt;tg_id&gt; - Сбросить аккаунт
/audit [tg_id] - Журнал действий

<b>⚙️ Настройки:</b>
/settings - Текущие награды и таймеры`

func (b *AdminBot) handleWithdrawals(ctx context.Context, args string) string {
	status := domain.WithdrawalStatusProcessing
	switch arg := strings.TrimSpace(args); {
	case strings.EqualFold(arg, "all"):
		status = ""
	case arg != "":
		status = domain.WithdrawalStatus(arg)
	}

	refs, err := b.adminService.ListWithdrawals(ctx, status, 20)
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	if len(refs) == 0 {
		return "✅ Нет выводов"
	}

	var sb strings.Builder
	sb.WriteString("<b>💸 Выводы</b>\n\n")
	for _, w := range refs {
		sb.WriteString(fmt.Sprintf("🆔 <code>%s</code> | TG: %d | %s\n", w.ID, w.UserID, w.Status))
		sb.WriteString(fmt.Sprintf("💰 Сумма: %s TON\n", w.Amount.String()))
		sb.WriteString(fmt.Sprintf("💳 Кошелёк: <code>%s</code>\n", html.EscapeString(w.Address)))
		sb.WriteString(fmt.Sprintf("📅 %s\n\n", w.CreatedAt.Format("02.01.2006 15:04")))
	}
	sb.WriteString("/approve &lt;id&gt; — выполнен\n/reject &lt;id&gt; — отклонить")
	return sb.String()
}

func (b *AdminBot) handleSetStatus(ctx context.Context, args string, status domain.WithdrawalStatus) string {
	id := strings.TrimSpace(args)
	if id == "" {
		return fmt.Sprintf("❌ Использование: /%s <id>", commandFor(status))
	}

	ref, err := b.adminService.SetWithdrawalStatus(ctx, strings.ToUpper(id), status)
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	if status == domain.WithdrawalStatusCompleted {
		return fmt.Sprintf("✅ Вывод %s отмечен выполненным", ref.ID)
	}
	return fmt.Sprintf("❌ Вывод %s отклонён", ref.ID)
}

func commandFor(status domain.WithdrawalStatus) string {
	if status == domain.WithdrawalStatusCompleted {
		return "approve"
	}
	return "reject"
}

func (b *AdminBot) handleGrant(ctx context.Context, args string) string {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return "❌ Использование: /grant <tg_id> <сумма>"
	}

	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || userID <= 0 {
		return "❌ Неверный Telegram ID"
	}
	amount, err := decimal.NewFromString(parts[1])
	if err != nil {
		return "❌ Неверная сумма"
	}

	snap, err := b.adminService.Grant(ctx, userID, amount)
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	return fmt.Sprintf("✅ Начислено %s TON пользователю %d. Новый баланс: %s", amount.String(), userID, snap.Balance.String())
}

func (b *AdminBot) handleReset(ctx context.Context, args string) string {
	userID, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil || userID <= 0 {
		return "❌ Использование: /reset <tg_id>"
	}
	if _, err := b.adminService.ResetAccount(ctx, userID); err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	return fmt.Sprintf("♻️ Аккаунт %d сброшен", userID)
}

func (b *AdminBot) handleSettings() string {
	s := b.adminService.Settings()
	return fmt.Sprintf(`<b>⚙️ Настройки</b>

⛏ Сессия: %s за %s
🎁 Ежедневный подарок: %s (раз в %s)
🚰 Кран: %s (раз в %s)
💸 Мин. вывод: %s TON
👥 Реферальная комиссия: %s%%, бонус за приглашение: %s
📋 Заданий: %d`,
		s.SessionReward.String(), s.SessionDuration.Std(),
		s.DailyGiftAmount.String(), s.DailyGiftCooldown.Std(),
		s.FaucetReward.String(), s.FaucetCooldown.Std(),
		s.MinWithdrawal.String(),
		s.ReferralCommissionPercent.String(), s.ReferralJoinBonus.String(),
		len(s.Tasks),
	)
}

func (b *AdminBot) handleAudit(ctx context.Context, args string) string {
	var filter repository.AuditFilter
	filter.Limit = 15
	if arg := strings.TrimSpace(args); arg != "" {
		userID, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || userID <= 0 {
			return "❌ Использование: /audit [tg_id]"
		}
		filter.UserID = userID
	}

	entries, err := b.adminService.Audit(ctx, filter)
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	if len(entries) == 0 {
		return "📭 Журнал пуст"
	}

	var sb strings.Builder
	sb.WriteString("<b>📜 Журнал действий</b>\n\n")
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("%s | TG: %d | <b>%s</b>", e.CreatedAt.Format("02.01 15:04"), e.UserID, e.Action))
		if amount, ok := e.Details["amount"].(string); ok {
			sb.WriteString(fmt.Sprintf(" | %s TON", html.EscapeString(amount)))
		}
		if id, ok := e.Details["withdrawal_id"].(string); ok {
			sb.WriteString(fmt.Sprintf(" | <code>%s</code>", html.EscapeString(id)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
