package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paycrm/offerbot/internal/models"
)

const (
	searchLimit        = 20
	defaultRecentLimit = 10
)

// OfferStore is the persistence surface the dispatcher needs.
type OfferStore interface {
	Create(ctx context.Context, payload *models.OfferPayload, rawText string) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Offer, error)
	ListRecent(ctx context.Context, limit int) ([]models.Offer, error)
	Search(ctx context.Context, filter *models.SearchFilter, limit int) ([]models.Offer, error)
}

// Interpreter classifies one inbound message.
type Interpreter interface {
	Interpret(ctx context.Context, text string) (*models.InterpretResult, error)
}

// Service routes interpreted messages to the offer store and renders
// replies. Every handler returns reply text and never an error: any
// failure from the interpreter or the store is logged and rendered as
// an error reply so that the message loop cannot crash.
type Service struct {
	store       OfferStore
	interpreter Interpreter
	logger      *zap.Logger
	startedAt   time.Time
}

func New(store OfferStore, interpreter Interpreter, logger *zap.Logger) *Service {
	return &Service{
		store:       store,
		interpreter: interpreter,
		logger:      logger,
		startedAt:   time.Now().UTC(),
	}
}

// HandleText classifies free-form text and dispatches on the result.
func (s *Service) HandleText(ctx context.Context, text string) string {
	result, err := s.interpreter.Interpret(ctx, text)
	if err != nil {
		s.logger.Error("interpretation failed", zap.Error(err))
		return errorReply(err)
	}

	switch result.Mode {
	case models.ModeOffer:
		return s.saveOffer(ctx, result.Offer, text)
	case models.ModeSearch:
		return s.searchOffers(ctx, result.Search)
	default:
		return "Я не понял, это оффер или поиск 🤔\n" +
			"Попробуй переформулировать или начни с чего-то вроде:\n" +
			"— 'дай офферы по ...'\n" +
			"— или просто пришли оффер."
	}
}

func (s *Service) saveOffer(ctx context.Context, payload *models.OfferPayload, rawText string) string {
	id, err := s.store.Create(ctx, payload, rawText)
	if err != nil {
		s.logger.Error("offer save failed", zap.Error(err))
		return errorReply(err)
	}

	if payload == nil {
		payload = &models.OfferPayload{}
	}

	lines := []string{
		fmt.Sprintf("✅ Оффер сохранён. ID: *%d*", id),
		"",
		fmt.Sprintf("*Тип:* %s", orDash(payload.Kind)),
		fmt.Sprintf("*Страна:* %s", orDash(payload.Country)),
		fmt.Sprintf("*Метод:* %s", orDash(payload.Method)),
		fmt.Sprintf("*Комиссия:* %s", orDash(payload.Fee)),
		fmt.Sprintf("*Курс:* %s", orDash(payload.Rate)),
		fmt.Sprintf("*Лимиты:* %s", orDash(payload.Limits)),
		fmt.Sprintf("*Условия:* %s", orDash(payload.Conditions)),
	}

	if feePercent := models.CoerceFloat(payload.FeePercent); feePercent != nil {
		lines = append(lines, fmt.Sprintf("*Комиссия, %%:* %s", formatFloat(*feePercent)))
	}
	if payload.ShortSummary != "" {
		lines = append(lines, "", fmt.Sprintf("_Краткое резюме:_ %s", payload.ShortSummary))
	}

	return strings.Join(lines, "\n")
}

func (s *Service) searchOffers(ctx context.Context, filter *models.SearchFilter) string {
	offers, err := s.store.Search(ctx, filter, searchLimit)
	if err != nil {
		s.logger.Error("offer search failed", zap.Error(err))
		return errorReply(err)
	}

	if len(offers) == 0 {
		return "Ничего не нашёл по этому запросу 🤷‍♂️"
	}

	lines := []string{"📋 *Результаты поиска:*", ""}
	for _, o := range offers {
		lines = append(lines, summaryLine(o))
	}
	return strings.Join(lines, "\n")
}

// HandleRecent renders the most recently created offers, newest first.
func (s *Service) HandleRecent(ctx context.Context, limit int) string {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	offers, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Error("list recent failed", zap.Error(err))
		return errorReply(err)
	}

	if len(offers) == 0 {
		return "Пока офферов нет. Отправь первый текст оффера."
	}

	lines := []string{"📋 *Последние офферы:*", ""}
	for _, o := range offers {
		lines = append(lines, summaryLine(o))
	}
	return strings.Join(lines, "\n")
}

// HandleByID renders one offer in full. A non-integer argument is a
// user error, a missing row a normal negative reply.
func (s *Service) HandleByID(ctx context.Context, arg string) string {
	if strings.TrimSpace(arg) == "" {
		return "Использование: /offer <id>"
	}

	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		return "ID должен быть числом, пример: /offer 12"
	}

	offer, err := s.store.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("get offer failed", zap.Int64("id", id), zap.Error(err))
		return errorReply(err)
	}
	if offer == nil {
		return fmt.Sprintf("Оффер с ID %d не найден.", id)
	}

	lines := []string{
		fmt.Sprintf("📄 *Оффер ID %d*", offer.ID),
		fmt.Sprintf("Тип: _%s_", orDash(offer.Kind)),
		fmt.Sprintf("Статус: _%s_", offer.Status),
		"",
		fmt.Sprintf("*Страна:* %s", orDash(offer.Country)),
		fmt.Sprintf("*Метод:* %s", orDash(offer.Method)),
		fmt.Sprintf("*Комиссия:* %s", feeDisplay(offer.Fee, offer.FeePercent)),
		fmt.Sprintf("*Курс:* %s", orDash(offer.Rate)),
		fmt.Sprintf("*Лимиты:* %s", orDash(offer.Limits)),
		fmt.Sprintf("*Условия:* %s", orDash(offer.Conditions)),
		"",
		fmt.Sprintf("*Создан:* %s", offer.CreatedAt.Format(time.RFC3339)),
		fmt.Sprintf("*Обновлён:* %s", offer.UpdatedAt.Format(time.RFC3339)),
		"",
		"*Исходный текст:*",
		offer.RawText,
	}

	return strings.Join(lines, "\n")
}

// StartMessage is the /start and /help reply.
func (s *Service) StartMessage() string {
	return "👋 Привет! Я CRM-бот агрегатора.\n\n" +
		"Я умею:\n" +
		"1) Принимать офферы (каналы/мерчи) и сохранять их в базу.\n" +
		"2) Искать по базе простыми фразами.\n\n" +
		"Примеры:\n" +
		"- RU SBP вход 1.8% курс 98 лимиты 10k–300k\n" +
		"- дай все офферы по индии\n" +
		"- дай офферы по сбп рф дешевле 11%\n\n" +
		"Последние офферы: /offers\n" +
		"Оффер по ID: /offer 10"
}

// VersionMessage reports when this process started.
func (s *Service) VersionMessage() string {
	return fmt.Sprintf("ℹ️ *Версия бота*\nЗапущен: %s", s.startedAt.Format(time.RFC3339))
}

func errorReply(err error) string {
	return fmt.Sprintf("❌ Ошибка при обработке:\n%v", err)
}

func orDash(v *string) string {
	if v == nil || *v == "" {
		return "—"
	}
	return *v
}

// feeDisplay prefers the free-text fee, then the numeric percentage,
// then a placeholder.
func feeDisplay(fee *string, feePercent *float64) string {
	if fee != nil && *fee != "" {
		return *fee
	}
	if feePercent != nil {
		return formatFloat(*feePercent) + "%"
	}
	return "—"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func summaryLine(o models.Offer) string {
	rate := "курс ?"
	if o.Rate != nil && *o.Rate != "" {
		rate = *o.Rate
	}
	return fmt.Sprintf("ID *%d* — [%s] %s / %s / %s / %s — _%s_",
		o.ID, orDash(o.Kind), orDash(o.Country), orDash(o.Method),
		feeDisplay(o.Fee, o.FeePercent), rate, o.Status)
}
