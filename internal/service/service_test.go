package service

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paycrm/offerbot/internal/models"
)

type fakeInterpreter struct {
	result *models.InterpretResult
	err    error
}

func (f *fakeInterpreter) Interpret(_ context.Context, _ string) (*models.InterpretResult, error) {
	return f.result, f.err
}

type fakeStore struct {
	createCalls int
	lastPayload *models.OfferPayload
	lastRaw     string
	createID    int64
	createErr   error

	getOffer *models.Offer
	getErr   error

	recentLimit  int
	recentOffers []models.Offer
	recentErr    error

	searchCalls  int
	lastFilter   *models.SearchFilter
	searchLimit  int
	searchOffers []models.Offer
	searchErr    error
}

func (f *fakeStore) Create(_ context.Context, payload *models.OfferPayload, rawText string) (int64, error) {
	f.createCalls++
	f.lastPayload = payload
	f.lastRaw = rawText
	return f.createID, f.createErr
}

func (f *fakeStore) GetByID(_ context.Context, _ int64) (*models.Offer, error) {
	return f.getOffer, f.getErr
}

func (f *fakeStore) ListRecent(_ context.Context, limit int) ([]models.Offer, error) {
	f.recentLimit = limit
	return f.recentOffers, f.recentErr
}

func (f *fakeStore) Search(_ context.Context, filter *models.SearchFilter, limit int) ([]models.Offer, error) {
	f.searchCalls++
	f.lastFilter = filter
	f.searchLimit = limit
	return f.searchOffers, f.searchErr
}

func str(s string) *string   { return &s }
func num(f float64) *float64 { return &f }

func newService(st *fakeStore, in *fakeInterpreter) *Service {
	return New(st, in, zap.NewNop())
}

func TestHandleTextOffer(t *testing.T) {
	st := &fakeStore{createID: 7}
	svc := newService(st, &fakeInterpreter{result: &models.InterpretResult{
		Mode: models.ModeOffer,
		Offer: &models.OfferPayload{
			Country:      str("RU"),
			Method:       str("SBP"),
			Fee:          str("1.8%"),
			FeePercent:   1.8,
			ShortSummary: "Канал RU/SBP",
		},
	}})

	reply := svc.HandleText(context.Background(), "RU SBP вход 1.8% курс 98")

	assert.Equal(t, 1, st.createCalls)
	assert.Equal(t, "RU SBP вход 1.8% курс 98", st.lastRaw)

	assert.Contains(t, reply, "✅ Оффер сохранён. ID: *7*")
	assert.Contains(t, reply, "*Страна:* RU")
	assert.Contains(t, reply, "*Метод:* SBP")
	assert.Contains(t, reply, "*Комиссия:* 1.8%")
	assert.Contains(t, reply, "*Комиссия, %:* 1.8")
	assert.Contains(t, reply, "_Краткое резюме:_ Канал RU/SBP")
	// Absent fields render as a placeholder.
	assert.Contains(t, reply, "*Курс:* —")
	assert.Contains(t, reply, "*Лимиты:* —")
}

func TestHandleTextOfferWithoutFeePercent(t *testing.T) {
	st := &fakeStore{createID: 1}
	svc := newService(st, &fakeInterpreter{result: &models.InterpretResult{
		Mode:  models.ModeOffer,
		Offer: &models.OfferPayload{Conditions: str("всё в условиях")},
	}})

	reply := svc.HandleText(context.Background(), "непонятный оффер")

	assert.Contains(t, reply, "*Условия:* всё в условиях")
	assert.NotContains(t, reply, "Комиссия, %")
	assert.NotContains(t, reply, "Краткое резюме")
}

func TestHandleTextSearch(t *testing.T) {
	st := &fakeStore{searchOffers: []models.Offer{
		{
			ID:      3,
			Country: str("India"),
			Method:  str("UPI"),
			Fee:     str("9% вход"),
			Rate:    str("кросс-курс"),
			Kind:    str(models.KindChannel),
			Status:  models.StatusNew,
		},
		{
			ID:         2,
			Country:    str("RU"),
			FeePercent: num(1.8),
			Status:     models.StatusActive,
		},
	}}
	svc := newService(st, &fakeInterpreter{result: &models.InterpretResult{
		Mode:   models.ModeSearch,
		Search: &models.SearchFilter{Country: "india"},
	}})

	reply := svc.HandleText(context.Background(), "дай офферы по индии")

	assert.Equal(t, 1, st.searchCalls)
	assert.Equal(t, 20, st.searchLimit)
	require.NotNil(t, st.lastFilter)
	assert.Equal(t, "india", st.lastFilter.Country)

	assert.Contains(t, reply, "📋 *Результаты поиска:*")
	assert.Contains(t, reply, "ID *3* — [channel] India / UPI / 9% вход / кросс-курс — _new_")
	// Free-text fee is absent, so the numeric fallback kicks in; rate
	// falls back to its own placeholder.
	assert.Contains(t, reply, "ID *2* — [—] RU / — / 1.8% / курс ? — _active_")
}

func TestHandleTextSearchEmpty(t *testing.T) {
	st := &fakeStore{}
	svc := newService(st, &fakeInterpreter{result: &models.InterpretResult{
		Mode:   models.ModeSearch,
		Search: &models.SearchFilter{Country: "india"},
	}})

	reply := svc.HandleText(context.Background(), "дай офферы по индии")
	assert.Equal(t, "Ничего не нашёл по этому запросу 🤷‍♂️", reply)
}

func TestHandleTextUnrecognized(t *testing.T) {
	st := &fakeStore{}
	svc := newService(st, &fakeInterpreter{result: &models.InterpretResult{
		Mode: models.ModeUnrecognized,
	}})

	reply := svc.HandleText(context.Background(), "???")

	assert.Contains(t, reply, "Я не понял")
	assert.Zero(t, st.createCalls)
	assert.Zero(t, st.searchCalls)
}

func TestHandleTextInterpreterFailure(t *testing.T) {
	st := &fakeStore{}
	svc := newService(st, &fakeInterpreter{err: eris.New("ответ не парсится")})

	reply := svc.HandleText(context.Background(), "оффер")

	assert.Contains(t, reply, "❌ Ошибка при обработке:")
	assert.Contains(t, reply, "ответ не парсится")
	// No store mutation on interpretation failure.
	assert.Zero(t, st.createCalls)
	assert.Zero(t, st.searchCalls)
}

func TestHandleTextStoreFailure(t *testing.T) {
	st := &fakeStore{createErr: eris.New("disk I/O error")}
	svc := newService(st, &fakeInterpreter{result: &models.InterpretResult{
		Mode:  models.ModeOffer,
		Offer: &models.OfferPayload{},
	}})

	reply := svc.HandleText(context.Background(), "оффер")
	assert.Contains(t, reply, "❌ Ошибка при обработке:")
}

func TestHandleRecent(t *testing.T) {
	st := &fakeStore{recentOffers: []models.Offer{
		{ID: 2, Status: models.StatusNew},
		{ID: 1, Status: models.StatusNew},
	}}
	svc := newService(st, &fakeInterpreter{})

	reply := svc.HandleRecent(context.Background(), 0)

	// Zero limit falls back to the default.
	assert.Equal(t, 10, st.recentLimit)
	assert.Contains(t, reply, "📋 *Последние офферы:*")
	assert.Contains(t, reply, "ID *2*")
	assert.Contains(t, reply, "ID *1*")
}

func TestHandleRecentEmpty(t *testing.T) {
	svc := newService(&fakeStore{}, &fakeInterpreter{})

	reply := svc.HandleRecent(context.Background(), 10)
	assert.Equal(t, "Пока офферов нет. Отправь первый текст оффера.", reply)
}

func TestHandleByID(t *testing.T) {
	offer := &models.Offer{
		ID:      12,
		RawText: "India UPI 9% кросс",
		Country: str("India"),
		Method:  str("UPI"),
		Kind:    str(models.KindMerchant),
		Status:  models.StatusNew,
	}
	svc := newService(&fakeStore{getOffer: offer}, &fakeInterpreter{})

	reply := svc.HandleByID(context.Background(), "12")

	assert.Contains(t, reply, "📄 *Оффер ID 12*")
	assert.Contains(t, reply, "Тип: _merchant_")
	assert.Contains(t, reply, "Статус: _new_")
	assert.Contains(t, reply, "*Исходный текст:*\nIndia UPI 9% кросс")
	assert.Contains(t, reply, "*Комиссия:* —")
}

func TestHandleByIDValidation(t *testing.T) {
	st := &fakeStore{getErr: eris.New("must not be called")}
	svc := newService(st, &fakeInterpreter{})

	assert.Equal(t, "Использование: /offer <id>", svc.HandleByID(context.Background(), ""))
	assert.Equal(t, "ID должен быть числом, пример: /offer 12",
		svc.HandleByID(context.Background(), "abc"))
}

func TestHandleByIDNotFound(t *testing.T) {
	svc := newService(&fakeStore{}, &fakeInterpreter{})

	reply := svc.HandleByID(context.Background(), "999")
	assert.Equal(t, "Оффер с ID 999 не найден.", reply)
}

func TestHandleByIDStoreFailure(t *testing.T) {
	svc := newService(&fakeStore{getErr: eris.New("database is locked")}, &fakeInterpreter{})

	reply := svc.HandleByID(context.Background(), "1")
	assert.Contains(t, reply, "❌ Ошибка при обработке:")
}

func TestStartMessage(t *testing.T) {
	svc := newService(&fakeStore{}, &fakeInterpreter{})

	msg := svc.StartMessage()
	assert.Contains(t, msg, "/offers")
	assert.Contains(t, msg, "/offer 10")
}
