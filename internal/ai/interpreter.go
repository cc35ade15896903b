package ai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/paycrm/offerbot/internal/models"
)

// ErrMalformedResponse signals that the model returned content that
// does not decode into the expected mode/payload shape. The caller must
// not guess a mode in that case.
var ErrMalformedResponse = eris.New("ai: malformed interpreter response")

const systemPrompt = `Ты ассистент CRM агрегатора платежей.
Пользователь может:
1) прислать ОФФЕР (описание платёжного канала или мерчанта);
2) задать ПОИСКОВЫЙ ЗАПРОС по базе офферов простыми словами.

Твоя задача — определить режим и вернуть ТОЛЬКО валидный JSON.
Никакого текста кроме JSON.

Формат ответа:
{"mode": "offer", "offer": {...}} или {"mode": "search", "search": {...}}

Правила классификации:
- 'search' если пользователь просит показать, найти, выдать, дай, нужны и т.п.
- 'offer' если перечислены условия конкретного канала/мерчанта (комиссия, курс, лимиты и т.д.).
- Если сомневаешься — выбери 'offer' и сохрани весь текст в 'conditions'.

Парсинг оффера:
- Извлеки country, method, fee, rate, limits, kind (channel/merchant), fee_percent.
- Всё, что не удалось разложить по полям, обязательно помести в 'conditions' (комментарии).
- 'short_summary' — одно предложение о сути оффера.

Парсинг поиска:
- Поля: country, method, status, kind, min_fee_percent, max_fee_percent.
- Понимай проценты: 'дешевле 11%' => max_fee_percent = 11.0.
- Учитывай любые указания по стране/методу/статусу/kind.
- Если явного запроса нет, но текст похож на оффер — верни 'offer'.`

// Interpreter classifies free-form text into an offer submission or a
// search query via a single chat completion. Each call is independent:
// no retries, no caching.
type Interpreter struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

func NewInterpreter(apiKey, model string, logger *zap.Logger) *Interpreter {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Interpreter{client: client, model: model, logger: logger}
}

// Interpret sends text to the model and validates the structured
// response. A response that does not parse as a JSON object with a mode
// discriminator is a hard failure, never a silent default.
func (i *Interpreter) Interpret(ctx context.Context, text string) (*models.InterpretResult, error) {
	response, err := i.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(i.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(systemPrompt),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(text),
					},
				},
			},
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, eris.Wrap(err, "ai: openai request failed")
	}

	if len(response.Choices) == 0 {
		return nil, eris.New("ai: no response from openai")
	}

	content := response.Choices[0].Message.Content
	i.logger.Debug("interpreter response", zap.String("content", content))

	return decodeResult(content)
}

// rawResult is the wire shape of the model's answer.
type rawResult struct {
	Mode   string               `json:"mode"`
	Offer  *models.OfferPayload `json:"offer"`
	Search *models.SearchFilter `json:"search"`
}

func decodeResult(content string) (*models.InterpretResult, error) {
	trimmed := stripCodeFence(content)

	var raw rawResult
	dec := json.NewDecoder(strings.NewReader(trimmed))
	if err := dec.Decode(&raw); err != nil {
		return nil, eris.Wrapf(ErrMalformedResponse, "%v; ответ: %s", err, content)
	}

	switch raw.Mode {
	case models.ModeOffer:
		payload := raw.Offer
		if payload == nil {
			payload = &models.OfferPayload{}
		}
		return &models.InterpretResult{Mode: models.ModeOffer, Offer: payload}, nil
	case models.ModeSearch:
		filter := raw.Search
		if filter == nil {
			filter = &models.SearchFilter{}
		}
		return &models.InterpretResult{Mode: models.ModeSearch, Search: filter}, nil
	default:
		return &models.InterpretResult{Mode: models.ModeUnrecognized}, nil
	}
}

// stripCodeFence removes a markdown code fence the model sometimes
// wraps around the JSON despite the prompt.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
