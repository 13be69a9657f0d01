package bot

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"ton_miner/internal/domain"
	"ton_miner/internal/logger"
	"ton_miner/internal/service"
	"ton_miner/internal/ton"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier posts withdrawal requests to the configured chats and every admin
type Notifier struct {
	sender   Sender
	adminIDs []int64
	network  ton.Network
	log      *slog.Logger
}

func NewNotifier(sender Sender, adminIDs []int64, network ton.Network) *Notifier {
	return &Notifier{
		sender:   sender,
		adminIDs: adminIDs,
		network:  network,
		log:      logger.Component("notifier"),
	}
}

func (nf *Notifier) NotifyWithdrawal(ctx context.Context, n service.WithdrawalNotice) {
	name := n.DisplayName
	if name == "" {
		name = "—"
	}
	message := fmt.Sprintf(`🔔 <b>Новый запрос на вывод!</b>

👤 Пользователь: %s (TG: %d)
💰 Сумма: %s TON
💳 Кошелек: <code>%s</code> (<a href="%s">обозреватель</a>)

ID: <code>%s</code>
%s%s
/approve %s - выполнен
/reject %s - отклонить`,
		html.EscapeString(name), n.UserID, n.Record.Amount.String(), html.EscapeString(n.Record.Address),
		html.EscapeString(ton.ExplorerLink(nf.network, n.Record.Address)),
		n.Record.ID, nf.addressWarning(n.Record.Address), nf.payLine(n.Record), n.Record.ID, n.Record.ID)

	for _, chatID := range recipients(n.ChatIDs, nf.adminIDs) {
		if ctx.Err() != nil {
			nf.log.Warn("withdrawal notice interrupted", "id", n.Record.ID, "error", ctx.Err())
			return
		}
		msg := tgbotapi.NewMessage(chatID, message)
		msg.ParseMode = "HTML"
		if _, err := nf.sender.Send(msg); err != nil {
			nf.log.Error("failed to notify chat", "chat_id", chatID, "error", err)
		}
	}
}

func (nf *Notifier) addressWarning(addr string) string {
	info := ton.Inspect(addr)
	switch {
	case !info.Valid:
		return "⚠️ Адрес не распознан, проверьте перед оплатой\n"
	case !info.MatchesNetwork(nf.network):
		return "⚠️ Адрес предназначен для testnet\n"
	}
	return ""
}

// payLine is a one-tap payout link; the record id goes into the transfer comment
func (nf *Notifier) payLine(rec domain.WithdrawalRecord) string {
	link, err := ton.UniversalTransferLink(rec.Address, rec.Amount, rec.ID)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("💸 <a href=\"%s\">Оплатить</a>\n", html.EscapeString(link))
}

func recipients(lists ...[]int64) []int64 {
	var out []int64
	seen := make(map[int64]struct{})
	for _, ids := range lists {
		for _, id := range ids {
			if _, ok := seen[id]; ok || id == 0 {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
