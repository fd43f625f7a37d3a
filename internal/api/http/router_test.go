package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/eris-support/triage-service/internal/api/http/handlers"
	"github.com/eris-support/triage-service/internal/auth"
	"github.com/eris-support/triage-service/internal/autoreply"
	"github.com/eris-support/triage-service/internal/config"
	"github.com/eris-support/triage-service/internal/domain"
	"github.com/eris-support/triage-service/internal/export"
	"github.com/eris-support/triage-service/internal/observability"
	"github.com/eris-support/triage-service/internal/repository"
	"github.com/eris-support/triage-service/internal/service"
	"github.com/eris-support/triage-service/internal/store"
)

const testBotSecret = "bot-secret"

type testServer struct {
	app   *fiber.App
	token string
}

func newTestServer(t *testing.T, tickets ...domain.Ticket) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	backend := repository.NewMemoryBackend()
	for _, tk := range tickets {
		backend.Seed(tk)
	}
	st := store.New(store.Dependencies{Backend: backend, Logger: logger})
	if err := st.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	operators := repository.NewMemoryOperatorRepository()
	authService := service.NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 30,
		BcryptCost:            bcrypt.MinCost,
	}, operators)
	if _, err := authService.CreateOperator(ctx, "op@example.com", "Оператор", "secret1", domain.OperatorRoleOperator); err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}
	if _, err := authService.CreateOperator(ctx, "admin@example.com", "Администратор", "secret1", domain.OperatorRoleAdmin); err != nil {
		t.Fatalf("CreateOperator admin: %v", err)
	}
	for email, telegramID := range map[string]int64{"op@example.com": 1001, "admin@example.com": 2002} {
		if _, err := authService.LinkTelegram(ctx, email, telegramID); err != nil {
			t.Fatalf("LinkTelegram %s: %v", email, err)
		}
	}

	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      st,
		Replier:    autoreply.StaticReplier{Text: "Здравствуйте! Уточните, пожалуйста, модель прибора."},
		Serializer: export.NewSerializer(time.UTC),
		Logger:     logger,
	})
	metrics := observability.NewMetrics()

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(handlers.HealthDependencies{ServiceName: "triage", Store: st, Metrics: metrics}),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Chat:           handlers.NewChatHandler(ticketService),
		Events:         handlers.NewEventsHandler(st, logger),
		Telegram:       handlers.NewTelegramHandler(ticketService, authService),
		KnowledgeBase:  handlers.NewKnowledgeBaseHandler(service.NewKnowledgeBaseService(repository.NewMemoryKnowledgeBase(sampleSections()...))),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), operators),
		BotSecret:      testBotSecret,
	})

	srv := &testServer{app: app}
	resp, body := srv.do(t, fiber.MethodPost, "/api/auth/login", `{"email":"op@example.com","password":"secret1"}`, nil)
	if resp != fiber.StatusOK {
		t.Fatalf("login status = %d, body = %s", resp, body)
	}
	var login struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &login); err != nil || login.Data.Token == "" {
		t.Fatalf("login body = %s, err = %v", body, err)
	}
	srv.token = login.Data.Token
	return srv
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func (s *testServer) authed(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	return s.do(t, method, path, body, map[string]string{fiber.HeaderAuthorization: "Bearer " + s.token})
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode error body %s: %v", body, err)
	}
	return env.Error.Code
}

func sampleTickets() []domain.Ticket {
	return []domain.Ticket{
		{
			FullName:     "Иванов Иван",
			Company:      "Завод Прибор",
			Email:        "ivanov@zavod.ru",
			Phone:        "+7 900 000-00-00",
			DateReceived: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
			Category:     domain.CategoryMalfunction,
			Sentiment:    domain.SentimentNegative,
			Status:       domain.TicketStatusInProgress,
		},
		{
			FullName:     "Петрова Анна",
			Company:      "НИИ Метрологии",
			DateReceived: time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC),
			Category:     domain.CategoryCalibration,
			Sentiment:    domain.SentimentNeutral,
			Status:       domain.TicketStatusOpen,
			AIResponse:   "Для калибровки направьте прибор в сервисный центр.",
		},
	}
}

func TestRoutes_RequireSession(t *testing.T) {
	srv := newTestServer(t, sampleTickets()...)

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{name: "no header", want: fiber.StatusUnauthorized},
		{name: "garbage token", headers: map[string]string{fiber.HeaderAuthorization: "Bearer nope"}, want: fiber.StatusUnauthorized},
		{name: "valid token", headers: map[string]string{fiber.HeaderAuthorization: "Bearer " + srv.token}, want: fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := srv.do(t, fiber.MethodGet, "/api/tickets", "", tt.headers)
			if status != tt.want {
				t.Errorf("status = %d, want %d (%s)", status, tt.want, body)
			}
		})
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := newTestServer(t)
	status, body := srv.do(t, fiber.MethodPost, "/api/auth/login", `{"email":"op@example.com","password":"wrong"}`, nil)
	if status != fiber.StatusUnauthorized || errorCode(t, body) != "UNAUTHORIZED" {
		t.Errorf("status = %d, body = %s", status, body)
	}
}

func TestMe(t *testing.T) {
	srv := newTestServer(t)
	status, body := srv.authed(t, fiber.MethodGet, "/api/auth/me", "")
	if status != fiber.StatusOK || !bytes.Contains(body, []byte(`"email":"op@example.com"`)) {
		t.Errorf("status = %d, body = %s", status, body)
	}
}

func TestListTickets_FilterAndSort(t *testing.T) {
	srv := newTestServer(t, sampleTickets()...)

	status, body := srv.authed(t, fiber.MethodGet, "/api/tickets?q=%D0%B7%D0%B0%D0%B2%D0%BE%D0%B4", "")
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, body = %s", status, body)
	}
	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].ID != "1" {
		t.Errorf("filtered = %+v", list.Data)
	}

	_, body = srv.authed(t, fiber.MethodGet, "/api/tickets", "")
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Data) != 2 || list.Data[0].ID != "2" {
		t.Errorf("default order = %+v, want newest first", list.Data)
	}

	status, body = srv.authed(t, fiber.MethodGet, "/api/tickets?sort=colour", "")
	if status != fiber.StatusBadRequest || errorCode(t, body) != "INVALID_INPUT" {
		t.Errorf("unknown sort status = %d, body = %s", status, body)
	}
}

func TestGetTicket_NotFound(t *testing.T) {
	srv := newTestServer(t)
	status, body := srv.authed(t, fiber.MethodGet, "/api/tickets/404", "")
	if status != fiber.StatusNotFound || errorCode(t, body) != "NOT_FOUND" {
		t.Errorf("status = %d, body = %s", status, body)
	}
}

func TestChat_EscalationFlow(t *testing.T) {
	srv := newTestServer(t, sampleTickets()...)

	status, body := srv.authed(t, fiber.MethodPost, "/api/tickets/1/chat", `{"role":"operator","text":"Здравствуйте"}`)
	if status != fiber.StatusConflict || errorCode(t, body) != "INVALID_STATE" {
		t.Fatalf("operator before escalation: status = %d, body = %s", status, body)
	}

	status, body = srv.authed(t, fiber.MethodPost, "/api/tickets/1/chat", `{"role":"user","text":"Please call operator now"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("trigger: status = %d, body = %s", status, body)
	}
	var posted struct {
		Data struct {
			Status    string          `json:"status"`
			Escalated bool            `json:"escalated"`
			Reply     json.RawMessage `json:"reply"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &posted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if posted.Data.Status != "needs_operator" || !posted.Data.Escalated || posted.Data.Reply != nil {
		t.Errorf("trigger response = %s", body)
	}

	status, body = srv.authed(t, fiber.MethodPost, "/api/tickets/1/chat", `{"role":"bot","text":"auto"}`)
	if status != fiber.StatusConflict {
		t.Errorf("bot after escalation: status = %d, body = %s", status, body)
	}
	status, body = srv.authed(t, fiber.MethodPost, "/api/tickets/1/chat", `{"role":"operator","text":"Добрый день, я на связи"}`)
	if status != fiber.StatusCreated {
		t.Errorf("operator after escalation: status = %d, body = %s", status, body)
	}

	_, body = srv.authed(t, fiber.MethodGet, "/api/tickets/1/affordances", "")
	if !bytes.Contains(body, []byte(`"operator_input":true`)) || !bytes.Contains(body, []byte(`"auto_reply":false`)) {
		t.Errorf("affordances = %s", body)
	}

	_, body = srv.authed(t, fiber.MethodGet, "/api/tickets/1/history", "")
	if !bytes.Contains(body, []byte(`"reason":"escalation_trigger"`)) {
		t.Errorf("history = %s", body)
	}
}

func TestChat_ClientMessageGetsAutoReply(t *testing.T) {
	srv := newTestServer(t, sampleTickets()...)
	status, body := srv.authed(t, fiber.MethodPost, "/api/tickets/2/chat", `{"role":"user","text":"прибор не включается"}`)
	if status != fiber.StatusCreated || !bytes.Contains(body, []byte(`"role":"bot"`)) {
		t.Errorf("status = %d, body = %s", status, body)
	}

	status, body = srv.authed(t, fiber.MethodPost, "/api/tickets/2/chat", `{"role":"robot","text":"x"}`)
	if status != fiber.StatusBadRequest {
		t.Errorf("unknown role status = %d, body = %s", status, body)
	}
}

func TestUpdateAndSend(t *testing.T) {
	srv := newTestServer(t, sampleTickets()...)

	status, body := srv.authed(t, fiber.MethodPatch, "/api/tickets/1", `{"status":"open"}`)
	if status != fiber.StatusConflict {
		t.Errorf("backwards status = %d, body = %s", status, body)
	}
	status, body = srv.authed(t, fiber.MethodPatch, "/api/tickets/1", `{}`)
	if status != fiber.StatusBadRequest {
		t.Errorf("empty patch = %d, body = %s", status, body)
	}
	status, body = srv.authed(t, fiber.MethodPatch, "/api/tickets/1", `{"ai_response":"Черновик ответа"}`)
	if status != fiber.StatusOK || !bytes.Contains(body, []byte("Черновик ответа")) {
		t.Errorf("draft = %d, body = %s", status, body)
	}
	status, body = srv.authed(t, fiber.MethodPost, "/api/tickets/1/send", "")
	if status != fiber.StatusOK || !bytes.Contains(body, []byte(`"status":"closed"`)) {
		t.Errorf("send = %d, body = %s", status, body)
	}
	status, _ = srv.authed(t, fiber.MethodPatch, "/api/tickets/1", `{"ai_response":"ещё"}`)
	if status != fiber.StatusConflict {
		t.Errorf("edit closed = %d", status)
	}
}

func TestIntake(t *testing.T) {
	srv := newTestServer(t)
	status, body := srv.authed(t, fiber.MethodPost, "/api/tickets", `{"full_name":"Сидоров","company":"ООО Вектор","category":"documentation","sentiment":"positive","device_serials":["SN-9"]}`)
	if status != fiber.StatusCreated || !bytes.Contains(body, []byte(`"status":"open"`)) {
		t.Errorf("intake = %d, body = %s", status, body)
	}

	_, body = srv.authed(t, fiber.MethodGet, "/api/tickets/stats", "")
	if !bytes.Contains(body, []byte(`"total":1`)) {
		t.Errorf("stats = %s", body)
	}
}

func TestExport_CSV(t *testing.T) {
	srv := newTestServer(t, sampleTickets()...)

	req := httptest.NewRequest(fiber.MethodGet, "/api/tickets/export?format=csv&sort=id&dir=asc", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+srv.token)
	resp, err := srv.app.Test(req, -1)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	if cd := resp.Header.Get(fiber.HeaderContentDisposition); !strings.Contains(cd, "tickets_") || !strings.Contains(cd, ".csv") {
		t.Errorf("content disposition = %q", cd)
	}
	if ct := resp.Header.Get(fiber.HeaderContentType); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	if !bytes.HasPrefix(body, []byte("\ufeff")) || bytes.Count(body, []byte("\n")) != 2 {
		t.Errorf("body = %q", body)
	}

	status, _ := srv.authed(t, fiber.MethodGet, "/api/tickets/export?format=pdf", "")
	if status != fiber.StatusBadRequest {
		t.Errorf("pdf status = %d", status)
	}
}

func TestTelegramEndpoints(t *testing.T) {
	srv := newTestServer(t, sampleTickets()...)
	secret := map[string]string{"X-Bot-Secret": testBotSecret}

	status, body := srv.do(t, fiber.MethodGet, "/api/telegram/tickets/1/contacts", "", secret)
	if status != fiber.StatusOK || !bytes.Contains(body, []byte("ivanov@zavod.ru")) {
		t.Errorf("contacts = %d, body = %s", status, body)
	}
	_, body = srv.do(t, fiber.MethodGet, "/api/telegram/tickets/1/generated-answer", "", secret)
	if !bytes.Contains(body, []byte(handlers.MissingAnswerText)) {
		t.Errorf("missing answer = %s", body)
	}
	_, body = srv.do(t, fiber.MethodGet, "/api/telegram/tickets/2/generated-answer", "", secret)
	if !bytes.Contains(body, []byte("сервисный центр")) {
		t.Errorf("answer = %s", body)
	}

	status, _ = srv.do(t, fiber.MethodGet, "/api/telegram/tickets/1/contacts", "", map[string]string{"X-Bot-Secret": "wrong"})
	if status != fiber.StatusUnauthorized && status != fiber.StatusForbidden {
		t.Errorf("wrong secret status = %d", status)
	}
}

func TestTelegramAllowedUsers(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, fiber.MethodGet, "/api/telegram/allowed-users", "", map[string]string{"X-Bot-Secret": testBotSecret})
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, body = %s", status, body)
	}
	var got struct {
		Users  []int64 `json:"users"`
		Admins []int64 `json:"admins"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	if len(got.Users) != 2 || got.Users[0] != 1001 || got.Users[1] != 2002 {
		t.Errorf("users = %v", got.Users)
	}
	if len(got.Admins) != 1 || got.Admins[0] != 2002 {
		t.Errorf("admins = %v", got.Admins)
	}

	status, _ = srv.do(t, fiber.MethodGet, "/api/telegram/allowed-users", "", nil)
	if status != fiber.StatusUnauthorized && status != fiber.StatusForbidden {
		t.Errorf("missing secret status = %d", status)
	}
}

func sampleSections() []domain.KBSection {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return []domain.KBSection{
		{ID: "2", Title: "Поверка", Order: 2, CreatedAt: created},
		{
			ID:          "1",
			Title:       "Руководства",
			Description: "Инструкции по эксплуатации",
			Order:       1,
			CreatedAt:   created,
			Files: []domain.KBFile{
				{ID: "10", SectionID: "1", Title: "Паспорт ЭРИС-210", FilePath: "kb/1/eris-210.pdf", Size: 2048, MimeType: "application/pdf", CreatedAt: created},
			},
		},
	}
}

func TestKnowledgeBase(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name    string
		path    string
		status  int
		check   func(t *testing.T, body []byte)
		noToken bool
	}{
		{
			name:   "list is ordered with files",
			path:   "/api/kb/sections",
			status: fiber.StatusOK,
			check: func(t *testing.T, body []byte) {
				var env struct {
					Data []struct {
						ID          string  `json:"id"`
						Description *string `json:"description"`
						Files       []struct {
							FileSize *int64 `json:"file_size"`
						} `json:"files"`
					} `json:"data"`
				}
				if err := json.Unmarshal(body, &env); err != nil {
					t.Fatalf("decode %s: %v", body, err)
				}
				if len(env.Data) != 2 || env.Data[0].ID != "1" || env.Data[1].ID != "2" {
					t.Fatalf("sections = %s", body)
				}
				if len(env.Data[0].Files) != 1 || env.Data[0].Files[0].FileSize == nil || *env.Data[0].Files[0].FileSize != 2048 {
					t.Errorf("files = %s", body)
				}
				if env.Data[1].Description != nil || env.Data[1].Files == nil {
					t.Errorf("empty section = %s", body)
				}
			},
		},
		{
			name:   "single section",
			path:   "/api/kb/sections/1",
			status: fiber.StatusOK,
			check: func(t *testing.T, body []byte) {
				if !bytes.Contains(body, []byte("eris-210.pdf")) {
					t.Errorf("body = %s", body)
				}
			},
		},
		{
			name:   "unknown section",
			path:   "/api/kb/sections/99",
			status: fiber.StatusNotFound,
			check: func(t *testing.T, body []byte) {
				if code := errorCode(t, body); code != "NOT_FOUND" {
					t.Errorf("code = %s", code)
				}
			},
		},
		{name: "requires session", path: "/api/kb/sections", status: fiber.StatusUnauthorized, noToken: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var status int
			var body []byte
			if tc.noToken {
				status, body = srv.do(t, fiber.MethodGet, tc.path, "", nil)
			} else {
				status, body = srv.authed(t, fiber.MethodGet, tc.path, "")
			}
			if status != tc.status {
				t.Fatalf("status = %d, want %d, body = %s", status, tc.status, body)
			}
			if tc.check != nil {
				tc.check(t, body)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	status, body := srv.do(t, fiber.MethodGet, "/health/live", "", nil)
	if status != fiber.StatusOK || !bytes.Contains(body, []byte(`"alive"`)) {
		t.Errorf("live = %d, body = %s", status, body)
	}
	status, body = srv.do(t, fiber.MethodGet, "/health/ready", "", nil)
	if status != fiber.StatusOK || !bytes.Contains(body, []byte(`"store":"ok"`)) {
		t.Errorf("ready = %d, body = %s", status, body)
	}
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	srv := newTestServer(t)
	status, body := srv.do(t, fiber.MethodGet, "/nowhere", "", nil)
	if status != fiber.StatusNotFound || errorCode(t, body) != "NOT_FOUND" {
		t.Errorf("status = %d, body = %s", status, body)
	}
}
