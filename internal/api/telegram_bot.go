// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/abelzeko/onemine/internal/entities"
	"github.com/abelzeko/onemine/internal/integration/network"
	"github.com/abelzeko/onemine/internal/integration/openai"
	"github.com/abelzeko/onemine/internal/usecases"
)

const (
	genericError   = "Error fetching data. Please try again later."
	unknownCommand = "Unknown command. Use /help to see available commands."
	notUnderstood  = "I don't understand. Use /help to see available commands."
	historyLimit   = 10
)

// Handler turns bot commands into reply texts
type Handler struct {
	Machines *usecases.MachineUseCase
	Cartirs  *usecases.CartirUseCase
	Tags     *usecases.TagUseCase
	History  *usecases.HistoryUseCase // nil disables /history
	Pinger   *network.Pinger
	Log      logrus.FieldLogger
	Timeout  time.Duration

	// Interpreter maps free text to a command. nil disables free-text chat.
	Interpreter openai.OpenAIService
}

// Reply answers one command. args is the text after the command.
func (h *Handler) Reply(ctx context.Context, command, args string) string {
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	args = strings.TrimSpace(args)

	switch command {
	case "start":
		return "Welcome to the OneMine bot! Use /machines to see the machines or /help for more information."
	case "help":
		return "Available commands:\n" +
			"/machines - List the machines\n" +
			"/ping [machine] - Check that a machine answers\n" +
			"/shift - Current shift report\n" +
			"/synced - Machines synced with today's Cartir\n" +
			"/side [machine] - Last side selected on a machine\n" +
			"/history - Recent syncs\n" +
			"/help - Show this help message"
	case "machines":
		return h.machines(ctx)
	case "ping":
		return h.ping(ctx, args)
	case "shift":
		return h.shift(ctx)
	case "synced":
		return h.synced(ctx)
	case "side":
		return h.side(ctx, args)
	case "history":
		return h.history(ctx)
	default:
		return unknownCommand
	}
}

// Converse answers a message that is not a command by asking the
// interpreter which command the user meant
func (h *Handler) Converse(ctx context.Context, text string) string {
	if h.Interpreter == nil {
		return notUnderstood
	}
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	var names []string
	if machines, err := h.Machines.List(ctx); err != nil {
		h.Log.Warnf("Interpreting without the machine list: %v", err)
	} else {
		names = usecases.Names(machines)
	}

	resp, err := h.Interpreter.InterpretUserQuery(ctx, text, names)
	if err != nil {
		h.Log.Errorf("Error interpreting user query: %v", err)
		return "Sorry, I'm having trouble understanding right now. Please try again later or use /help."
	}
	h.Log.Infof("Agent response: Command='%s', Machine='%s', Message='%s'", resp.CommandName, resp.Machine, resp.UserMessage)

	switch resp.CommandName {
	case openai.CommandGeneral:
		if resp.UserMessage == "" {
			return notUnderstood
		}
		return resp.UserMessage
	case openai.CommandMachines, openai.CommandPing, openai.CommandShift,
		openai.CommandSynced, openai.CommandSide, openai.CommandHistory:
		reply := h.Reply(ctx, resp.CommandName, resp.Machine)
		if resp.UserMessage == "" {
			return reply
		}
		return resp.UserMessage + "\n\n" + reply
	default:
		h.Log.Warnf("Agent returned unexpected command: %s", resp.CommandName)
		return "I'm not sure how to respond to that. You can use /help for commands."
	}
}

func (h *Handler) fail(what string, err error) string {
	h.Log.Errorf("Error handling %s: %v", what, err)
	if errors.Is(err, usecases.ErrMachineNotFound) {
		return "Machine not found. Use /machines to see the available machines."
	}
	return genericError
}

func (h *Handler) machines(ctx context.Context) string {
	machines, err := h.Machines.List(ctx)
	if err != nil {
		return h.fail("/machines", err)
	}
	if len(machines) == 0 {
		return "No machines registered."
	}

	var b strings.Builder
	b.WriteString("Machines:\n\n")
	for _, m := range machines {
		fmt.Fprintf(&b, "• %s (%s)\n", m.Name, m.IPAddress)
	}
	b.WriteString("\nUse /ping [machine] to check one.")
	return b.String()
}

func (h *Handler) ping(ctx context.Context, name string) string {
	if name == "" {
		return "Please specify a machine. Example: /ping LE001"
	}
	m, err := h.Machines.Find(ctx, name)
	if err != nil {
		return h.fail("/ping", err)
	}
	res, err := h.Pinger.Once(ctx, m.IPAddress)
	if err != nil {
		return h.fail("/ping", err)
	}
	return fmt.Sprintf("%s (%s): %s", m.Name, m.IPAddress, res)
}

func (h *Handler) shift(ctx context.Context) string {
	report, err := h.Cartirs.Report(ctx)
	if err != nil {
		return h.fail("/shift", err)
	}
	return FormatShiftReport(report)
}

// FormatShiftReport renders the report with its totals per macro and street
func FormatShiftReport(report *usecases.ShiftReport) string {
	if !report.Found() {
		return "No Cartir found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Cartir %d - %s\n", report.Header.ID, report.Header.Name)
	fmt.Fprintf(&b, "Turno actual: %s\n", report.Shift)
	fmt.Fprintf(&b, "Total: %s (%d registros)\n", number(report.Summary.Total), report.Summary.Entries)

	if len(report.Details) == 0 {
		b.WriteString("\nNo hay Tasks asociadas al turno actual.")
		return b.String()
	}
	for _, m := range report.MacroTotals {
		fmt.Fprintf(&b, "\n%s - Total: %s\n", m.Macro, number(m.Total))
		for _, s := range report.StreetTotals {
			if s.Macro == m.Macro {
				fmt.Fprintf(&b, "  %s - Total: %s\n", s.Street, number(s.Total))
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (h *Handler) synced(ctx context.Context) string {
	machines, err := h.Machines.List(ctx)
	if err != nil {
		return h.fail("/synced", err)
	}
	report, err := h.Cartirs.Synced(usecases.Names(machines))
	if err != nil {
		return h.fail("/synced", err)
	}

	executed := report.Status.Executed
	if executed == "" {
		executed = "No sync recorded yet."
	}
	reply := fmt.Sprintf("%s\n\n✅ Synced (%d): %s\n❌ Missing (%d): %s",
		executed,
		len(report.Status.Machines), listOrDash(report.Status.Machines),
		len(report.Missing), listOrDash(report.Missing))
	if h.History == nil {
		return reply
	}
	return reply + h.lastSyncs(ctx, usecases.Names(machines))
}

// lastSyncs is the history footer of /synced. History errors only drop the footer.
func (h *Handler) lastSyncs(ctx context.Context, names []string) string {
	last, err := h.History.LastCartirSync(ctx)
	if err != nil {
		h.Log.Warnf("Skipping sync history in /synced: %v", err)
		return ""
	}
	run, err := h.History.LastRun(ctx)
	if err != nil {
		h.Log.Warnf("Skipping sync history in /synced: %v", err)
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nLast successful sync:")
	for _, name := range names {
		at := last[name]
		if at == "" {
			at = "never"
		}
		fmt.Fprintf(&b, "\n• %s: %s", name, at)
	}
	if run != "" {
		fmt.Fprintf(&b, "\nLast run at %s", run)
	}
	return b.String()
}

func listOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}

func (h *Handler) side(ctx context.Context, name string) string {
	if name == "" {
		return "Please specify a machine. Example: /side LE001"
	}
	m, err := h.Machines.Find(ctx, name)
	if err != nil {
		return h.fail("/side", err)
	}
	side, err := h.Tags.LastSide(ctx, m)
	if err != nil {
		return h.fail("/side", err)
	}
	if side == "" {
		return fmt.Sprintf("No side selection recorded on %s.", m.Name)
	}
	return fmt.Sprintf("%s: %s", m.Name, side)
}

func (h *Handler) history(ctx context.Context) string {
	if h.History == nil {
		return "Sync history is not available."
	}
	records, err := h.History.Recent(ctx, historyLimit)
	if err != nil {
		return h.fail("/history", err)
	}
	if records.Empty() {
		return "No syncs recorded yet."
	}

	var b strings.Builder
	b.WriteString("Recent syncs:\n")
	for _, row := range records.Select("CreatedAt", "Machine", "Kind", "Status", "Rows", "Error").Rows {
		status := "✅"
		if row[3] != entities.SyncStatusOK {
			status = "❌"
		}
		fmt.Fprintf(&b, "\n%s %s %s %s (%s rows)", status, row[0], row[1], row[2], row[4])
		if row[5] != "" {
			fmt.Fprintf(&b, ": %s", row[5])
		}
	}
	return b.String()
}

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot     *tgbotapi.BotAPI
	handler *Handler
	log     logrus.FieldLogger
}

// NewTelegramBot creates a new Telegram bot handler
func NewTelegramBot(botToken string, handler *Handler, log logrus.FieldLogger) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &TelegramBot{
		bot:     bot,
		handler: handler,
		log:     log,
	}, nil
}

// Start listens for and handles Telegram messages until ctx is done
func (t *TelegramBot) Start(ctx context.Context) {
	t.log.Infof("Authorized on Telegram account %s", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	t.log.Info("Bot is now listening for messages...")

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			t.log.Info("Bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			t.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage processes a Telegram message
func (t *TelegramBot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	log := t.log.WithFields(logrus.Fields{"user": userName(message), "chat": message.Chat.ID})
	log.Infof("Received message: %s", message.Text)

	msg := tgbotapi.NewMessage(message.Chat.ID, "")
	if message.IsCommand() {
		msg.Text = t.handler.Reply(ctx, message.Command(), message.CommandArguments())
	} else {
		msg.Text = t.handler.Converse(ctx, message.Text)
	}

	if _, err := t.bot.Send(msg); err != nil {
		log.Errorf("Error sending message: %v", err)
	}
}

func userName(message *tgbotapi.Message) string {
	if message.From == nil {
		return ""
	}
	return message.From.UserName
}
