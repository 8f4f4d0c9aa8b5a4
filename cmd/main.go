package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/mchatly/chat-engine/internal/ai"
	"github.com/mchatly/chat-engine/internal/chat"
	"github.com/mchatly/chat-engine/internal/db"
	"github.com/mchatly/chat-engine/internal/escalation"
	"github.com/mchatly/chat-engine/internal/knowledge"
	"github.com/mchatly/chat-engine/internal/live"
)

func main() {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	// --- DB ---
	database, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.PingContext(ctx); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	if err := db.Migrate(database); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	// --- Knowledge ---
	aiClient := ai.NewOpenAIClient()
	index, err := knowledge.NewQdrantIndex()
	if err != nil {
		log.Fatalf("qdrant error: %v", err)
	}
	defer index.Close()
	matcher := knowledge.NewMatcher(aiClient, index)

	// --- Chat + live handoff ---
	chatRepo := chat.NewRepo(database)

	transport, err := live.NewAblyTransport()
	if err != nil {
		log.Fatalf("ably error: %v", err)
	}
	defer transport.Close()
	coordinator := live.NewCoordinator(transport, chat.NewLiveSink(chatRepo))

	// --- Escalation ---
	delay := 30 * time.Minute
	if raw := os.Getenv("ESCALATION_DELAY"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("bad ESCALATION_DELAY: %v", err)
		}
		delay = d
	}

	subStore := escalation.NewStore(database)
	notifier := escalation.NewNotifier(subStore, escalation.NewWebPushSender(), dashboardBaseURL())

	condition := func(ctx context.Context, tenantID, sessionID string, armedAt time.Time) (bool, error) {
		reply, err := chatRepo.FindOperatorReplyAfter(ctx, tenantID, sessionID, armedAt)
		if err != nil {
			return false, err
		}
		return reply != nil, nil
	}
	scheduler := escalation.NewScheduler(delay, condition, notifier.NotifyWaiting)

	phrase := os.Getenv("ESCALATION_TRIGGER_PHRASE")
	if phrase == "" {
		phrase = "Someone will contact you shortly"
	}
	trigger := func(reply string) bool {
		return strings.Contains(reply, phrase)
	}

	// --- Module wiring ---
	chatService := chat.NewService(chatRepo, matcher, aiClient, coordinator, scheduler, trigger)
	chat.RegisterRoutes(r, chat.NewHandler(chatService))
	escalation.RegisterRoutes(r, escalation.NewHandler(subStore))

	// --- health ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	log.Printf("listening on :%s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func dashboardBaseURL() string {
	base := os.Getenv("DASHBOARD_BASE_URL")
	if base == "" {
		base = "https://app.mchatly.app/dashboard"
	}
	return strings.TrimRight(base, "/")
}
