package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"weekplan/internal/model"
	"weekplan/internal/repository"
	"weekplan/internal/service"
	"weekplan/internal/snapshot"
	"weekplan/internal/syncer"
)

// maxSnapshotSize bounds documents accepted by /import.
const maxSnapshotSize = 1 << 20

// CycleRunner is the part of the sync orchestrator the bot triggers on /sync.
type CycleRunner interface {
	RunCycle(ctx context.Context) (syncer.CycleReport, error)
}

// Options holds optional collaborators.
type Options struct {
	Sync     CycleRunner
	Location *time.Location
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api      *tgbotapi.BotAPI
	userRepo *repository.UserRepository
	planner  *service.PlannerService
	reports  *service.ReportService
	cycles   CycleRunner
	loc      *time.Location
	client   *http.Client
	states   map[int64]viewState
	mu       sync.Mutex
}

func New(token string, userRepo *repository.UserRepository, planner *service.PlannerService, reports *service.ReportService, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Bot{
		api:      api,
		userRepo: userRepo,
		planner:  planner,
		reports:  reports,
		cycles:   opts.Sync,
		loc:      loc,
		client:   &http.Client{Timeout: 30 * time.Second},
		states:   make(map[int64]viewState),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

func (b *Bot) now() time.Time {
	return time.Now().In(b.loc)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	chatID := msg.Chat.ID

	if msg.Document != nil {
		return b.importDocument(ctx, msg)
	}

	if !msg.IsCommand() && isCancelInput(msg.Text) {
		b.setState(chatID, b.state(chatID).idle())
		return b.sendText(chatID, "⏪ Ввод отменён.")
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		b.setState(chatID, b.state(chatID).idle())
		return b.handleCommand(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	st := b.state(chatID)
	switch {
	case st.editing != nil:
		return b.finishEdit(ctx, chatID, *st.editing, msg.Text)
	case st.adding != nil:
		return b.continueAdding(ctx, chatID, *st.adding, msg.Text)
	}

	return b.sendText(chatID, "Я пока не понял сообщение. Набери /today, чтобы открыть план на сегодня, или /help для списка команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(chatID)
	case "today":
		return b.showDay(ctx, chatID, model.DateKey(b.now()), 0)
	case "tomorrow":
		return b.showDay(ctx, chatID, model.DateKey(b.now().AddDate(0, 0, 1)), 0)
	case "day":
		date, err := resolveDate(args, b.now())
		if err != nil {
			return b.sendText(chatID, "Укажи дату, например: /day 2026-10-19 или /day 19.10")
		}
		return b.showDay(ctx, chatID, date, 0)
	case "week":
		return b.showWeek(ctx, chatID)
	case "add":
		return b.handleAdd(ctx, chatID, args)
	case "remove":
		return b.handleRemove(ctx, chatID, args)
	case "reset":
		return b.handleReset(ctx, chatID, args, false)
	case "clear":
		return b.handleReset(ctx, chatID, args, true)
	case "report":
		return b.handleReport(ctx, chatID)
	case "reports":
		return b.handleReports(ctx, msg, args)
	case "sync":
		return b.handleSync(ctx, chatID)
	case "export":
		return b.handleExport(ctx, chatID)
	case "import":
		return b.sendText(chatID, "📥 Пришли файл снимка (.json) сообщением, я объединю его с текущими данными.")
	case "cancel":
		return b.sendText(chatID, "⏪ Ввод отменён.")
	default:
		return b.sendText(chatID, "Неизвестная команда. Набери /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}

	text := fmt.Sprintf(
		"👋 Привет, %s!\n<b>Я веду недельное расписание и план на каждый день.</b>\n\n"+
			"Открой /today, отмечай прогресс кнопками ➕/➖ и ✅, а расписание недели смотри в /week.\n"+
			"Полный список команд: /help",
		escape(name),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(chatID int64) error {
	text := "ℹ️ <b>Подсказки</b>\n" +
		"• /today, /tomorrow — план на день\n" +
		"• /day &lt;дата&gt; — план на любую дату (2026-10-19 или 19.10)\n" +
		"• /week — расписание на неделю\n" +
		"• /add &lt;день&gt; &lt;минуты&gt; &lt;название&gt; — добавить задачу в расписание (без аргументов — пошагово)\n" +
		"• /remove &lt;день&gt; &lt;номер&gt; — убрать задачу из расписания\n" +
		"• /reset [дата] — пересобрать день из расписания\n" +
		"• /clear [дата] — очистить день\n" +
		"• /sync — синхронизировать с сервером\n" +
		"• /export, /import — снимок данных файлом\n" +
		"• /reports on|off — ежедневный отчёт\n" +
		"• /cancel — отменить текущий ввод"
	return b.sendText(chatID, text)
}

func (b *Bot) handleAdd(ctx context.Context, chatID int64, args string) error {
	if args == "" {
		b.setState(chatID, b.state(chatID).startAdding())
		return b.sendWithReplyMarkup(chatID, "📅 На какой день недели добавить задачу?", weekdayKeyboard())
	}
	weekday, in, err := parseAddArgs(args)
	if err != nil {
		return b.sendText(chatID, "Формат: /add понедельник 30 Математика")
	}
	return b.addScheduleTask(ctx, chatID, weekday, in)
}

func (b *Bot) continueAdding(ctx context.Context, chatID int64, draft addDraft, text string) error {
	st := b.state(chatID)
	switch draft.stage {
	case addWeekday:
		weekday, err := parseWeekday(text)
		if err != nil {
			return b.sendWithReplyMarkup(chatID, "Выбери день недели кнопкой.", weekdayKeyboard())
		}
		draft.weekday = weekday
		draft.stage = addTitle
		st.adding = &draft
		b.setState(chatID, st)
		return b.sendWithReplyMarkup(chatID, "✍️ Как назвать задачу?", cancelKeyboard())
	case addTitle:
		title := strings.TrimSpace(text)
		if title == "" {
			return b.sendWithReplyMarkup(chatID, "Название не может быть пустым.", cancelKeyboard())
		}
		draft.title = title
		draft.stage = addMinutes
		st.adding = &draft
		b.setState(chatID, st)
		return b.sendWithReplyMarkup(chatID, "⏱ Сколько минут она занимает?", cancelKeyboard())
	default:
		minutes, err := parseMinutes(text)
		if err != nil {
			return b.sendWithReplyMarkup(chatID, "Нужно целое число минут, например 30.", cancelKeyboard())
		}
		b.setState(chatID, st.idle())
		return b.addScheduleTask(ctx, chatID, draft.weekday, model.TaskInput{Title: draft.title, Minutes: minutes})
	}
}

func (b *Bot) addScheduleTask(ctx context.Context, chatID int64, weekday string, in model.TaskInput) error {
	task, err := b.planner.AddTask(ctx, weekday, in)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось добавить задачу: %s", escape(err.Error())))
	}
	return b.sendText(chatID, fmt.Sprintf("✅ Добавлено на %s: %s", strings.ToLower(service.WeekdayTitle(weekday)), service.FormatTask(task)))
}

func (b *Bot) handleRemove(ctx context.Context, chatID int64, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return b.sendText(chatID, "Формат: /remove понедельник 2 (номер из /week)")
	}
	weekday, err := parseWeekday(fields[0])
	if err != nil {
		return b.sendText(chatID, "Не понимаю день недели.")
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return b.sendText(chatID, "Номер задачи должен быть числом.")
	}

	sched, err := b.planner.Schedule(ctx)
	if err != nil {
		return err
	}
	tasks := sched.Tasks(weekday)
	if n < 1 || n > len(tasks) {
		return b.sendText(chatID, "Задачи с таким номером нет.")
	}
	if _, err := b.planner.RemoveTask(ctx, weekday, tasks[n-1].ID); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось удалить задачу: %s", escape(err.Error())))
	}
	return b.sendText(chatID, fmt.Sprintf("🗑 Удалено: %s", escape(normalizeTitle(tasks[n-1].Title))))
}

// handleReset rebuilds (or empties) the day in args, or the day on screen.
func (b *Bot) handleReset(ctx context.Context, chatID int64, args string, empty bool) error {
	date := b.state(chatID).date
	if args != "" || date == "" {
		var err error
		if date, err = resolveDate(args, b.now()); err != nil {
			return b.sendText(chatID, "Не понимаю дату.")
		}
	}

	var err error
	if empty {
		_, err = b.planner.ClearDay(ctx, date)
	} else {
		_, err = b.planner.ResetDay(ctx, date)
	}
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось обновить день: %s", escape(err.Error())))
	}
	return b.showDay(ctx, chatID, date, 0)
}

func (b *Bot) finishEdit(ctx context.Context, chatID int64, cur editCursor, text string) error {
	patch, err := parseTaskEdit(text)
	if err != nil {
		return b.sendWithReplyMarkup(chatID, "Формат: <code>Название | минуты</code>", cancelKeyboard())
	}
	b.setState(chatID, b.state(chatID).idle())
	if _, _, err := b.planner.EditDayTask(ctx, cur.date, cur.taskID, patch); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось изменить задачу: %s", escape(err.Error())))
	}
	return b.showDay(ctx, chatID, cur.date, 0)
}

func (b *Bot) handleReport(ctx context.Context, chatID int64) error {
	text, err := b.reports.DailySummary(ctx, b.now())
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось сформировать отчёт: %s", escape(err.Error())))
	}
	return b.sendText(chatID, text)
}

func (b *Bot) handleReports(ctx context.Context, msg *tgbotapi.Message, args string) error {
	var enabled bool
	switch strings.ToLower(args) {
	case "on", "вкл":
		enabled = true
	case "off", "выкл":
	default:
		return b.sendText(msg.Chat.ID, "Формат: /reports on или /reports off")
	}
	if _, err := b.ensureUser(ctx, msg); err != nil {
		return err
	}
	if err := b.userRepo.SetReports(ctx, msg.From.ID, enabled); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(msg.Chat.ID, "Сначала набери /start.")
		}
		return err
	}
	if enabled {
		return b.sendText(msg.Chat.ID, "🔔 Ежедневный отчёт включён.")
	}
	return b.sendText(msg.Chat.ID, "🔕 Ежедневный отчёт выключен.")
}

func (b *Bot) handleSync(ctx context.Context, chatID int64) error {
	if b.cycles == nil {
		return b.sendText(chatID, "Синхронизация не настроена.")
	}
	report, err := b.cycles.RunCycle(ctx)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("⚠️ Синхронизация не удалась: %s", escape(err.Error())))
	}
	if report.Unchanged {
		return b.sendText(chatID, "🔄 Всё уже синхронизировано.")
	}
	text := fmt.Sprintf("🔄 Синхронизировано: расписание %s, дней %d", yesNo(report.ScheduleApplied), len(report.OverridesApplied))
	if len(report.Skipped) > 0 {
		text += fmt.Sprintf(", пропущено %d", len(report.Skipped))
	}
	return b.sendText(chatID, text)
}

func (b *Bot) handleExport(ctx context.Context, chatID int64) error {
	now := b.now()
	doc, err := b.planner.Export(ctx, now)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось выгрузить данные: %s", escape(err.Error())))
	}
	data, err := snapshot.Encode(doc)
	if err != nil {
		return err
	}
	file := tgbotapi.FileBytes{Name: fmt.Sprintf("weekplan-%s.json", model.DateKey(now)), Bytes: data}
	upload := tgbotapi.NewDocument(chatID, file)
	upload.Caption = fmt.Sprintf("📦 Снимок: дней %d", len(doc.Overrides))
	_, err = b.api.Send(upload)
	return err
}

func (b *Bot) importDocument(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	if msg.Document.FileSize > maxSnapshotSize {
		return b.sendText(chatID, "Файл слишком большой для снимка.")
	}
	data, err := b.download(ctx, msg.Document.FileID)
	if err != nil {
		log.Printf("download snapshot from %d: %v", msg.From.ID, err)
		return b.sendText(chatID, "Не удалось скачать файл.")
	}

	res, err := b.planner.Import(ctx, data)
	switch {
	case errors.Is(err, snapshot.ErrNoSnapshot):
		return b.sendText(chatID, "В файле нет снимка.")
	case errors.Is(err, snapshot.ErrMalformedSnapshot):
		return b.sendText(chatID, fmt.Sprintf("Снимок повреждён: %s", escape(err.Error())))
	case err != nil:
		return err
	}

	text := fmt.Sprintf("📥 Импорт завершён: расписание %s, дней %d", yesNo(res.ScheduleWritten), res.OverridesWritten)
	if len(res.Failed) > 0 {
		text += fmt.Sprintf("\n⚠️ Не записано: %s", escape(strings.Join(res.Failed, ", ")))
	}
	return b.sendText(chatID, text)
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	link, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxSnapshotSize))
}

// SendDailyReports sends today's plan to every chat with reports enabled.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.userRepo.ListReportable(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return nil
	}
	text, err := b.reports.DailySummary(ctx, b.now())
	if err != nil {
		return err
	}
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := b.sendText(user.ChatID, text); err != nil {
			log.Printf("send summary to %d: %v", user.TelegramID, err)
		}
	}
	return nil
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelToday):
		return true, b.showDay(ctx, chatID, model.DateKey(b.now()), 0)
	case strings.ToLower(menuLabelTomorow):
		return true, b.showDay(ctx, chatID, model.DateKey(b.now().AddDate(0, 0, 1)), 0)
	case strings.ToLower(menuLabelWeek):
		return true, b.showWeek(ctx, chatID)
	case strings.ToLower(menuLabelAdd):
		return true, b.handleAdd(ctx, chatID, "")
	case strings.ToLower(menuLabelSync):
		return true, b.handleSync(ctx, chatID)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(chatID)
	default:
		return false, nil
	}
}

func (b *Bot) ensureUser(ctx context.Context, msg *tgbotapi.Message) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, msg.From.ID, msg.Chat.ID, msg.From.FirstName, msg.From.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func yesNo(v bool) string {
	if v {
		return "да"
	}
	return "нет"
}

func escape(s string) string {
	return html.EscapeString(s)
}
