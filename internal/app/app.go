package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"os/signal"
	"reviewbot/internal/config"
	"reviewbot/internal/domain"
	"reviewbot/internal/events"
	"reviewbot/internal/httpx"
	"reviewbot/internal/integrations/devrev"
	"reviewbot/internal/integrations/github"
	"reviewbot/internal/integrations/gitlab"
	"reviewbot/internal/integrations/gptzero"
	"reviewbot/internal/integrations/llm"
	"reviewbot/internal/integrations/reviews"
	"reviewbot/internal/integrations/sentiment"
	slackbot "reviewbot/internal/integrations/slack"
	"reviewbot/internal/schedule"
	"reviewbot/internal/storage/sqlite"
	"reviewbot/internal/ticketing"
	"reviewbot/internal/triage"
	"strings"
	"syscall"

	"github.com/slack-go/slack"
)

func Main() {
	cfg := config.LoadConfig()
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf(
		"Config loaded. App=%s Sources=%s LLMProvider=%s LLMModel=%s Tracker=%s Timezone=%s CallTimeout=%s ExternalHTTPTimeout=%s",
		cfg.AppName,
		sourceNames(cfg.EnabledSources()),
		cfg.LLMProvider,
		cfg.LLMModel,
		cfg.Tracker,
		cfg.Timezone,
		cfg.CallTimeout(),
		appliedHTTPTimeout,
	)

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	log.Printf("Database initialized at %s", cfg.DBPath)
	defer db.Close()

	recorder, publisher := buildRecorder(cfg, db)
	if publisher != nil {
		defer publisher.Close()
	}

	oracle, safetyOracle := buildOracles(cfg)
	pipeline := buildPipeline(cfg, oracle, safetyOracle, recorder)
	tracker, mirrors := buildTicketing(cfg)

	api := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ReportChannelID != "" {
		scheduled := &ticketing.Fanout{
			Tracker:    tracker,
			Messengers: append([]ticketing.Messenger{slackbot.NewChannelMessenger(api, cfg.ReportChannelID)}, mirrors...),
		}
		schedule.StartAutoTriageScheduler(ctx, cfg, pipeline, scheduled)
	} else if cfg.AutoTriageSchedule != "" {
		log.Println("Auto-triage disabled: report_channel_id not set")
	}

	bot := slackbot.NewBot(cfg, api, db, pipeline, tracker, mirrors...)
	log.Println("Starting Review Triage Bot...")
	err = bot.Start(ctx)
	logUsage("oracle", oracle)
	if safetyOracle != oracle {
		logUsage("safety oracle", safetyOracle)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Slack bot error: %v", err)
	}
	log.Println("Review Triage Bot stopped")
}

// buildOracles shares one limiter between the main and safety models so
// llm_requests_per_minute bounds the provider as a whole.
func buildOracles(cfg config.Config) (*llm.Client, *llm.Client) {
	limiter := llm.NewLimiter(cfg.LLMRequestsPerMinute)
	oracle := llm.NewClient(cfg, cfg.LLMModel, limiter)
	if cfg.LLMSafetyModel == "" {
		return oracle, oracle
	}
	return oracle, llm.NewClient(cfg, cfg.LLMSafetyModel, limiter)
}

func buildPipeline(cfg config.Config, oracle, safetyOracle triage.Oracle, recorder triage.Recorder) *triage.Pipeline {
	deps := triage.Deps{
		Sources:      buildSources(cfg),
		Oracle:       oracle,
		SafetyOracle: safetyOracle,
		Recorder:     recorder,
	}
	if cfg.GPTZeroAPIKey != "" {
		deps.Safety = gptzero.NewClient(cfg.GPTZeroURL, cfg.GPTZeroAPIKey)
	}
	if cfg.SentimentAPIKey != "" {
		deps.Sentiment = sentiment.NewClient(cfg.SentimentURL, cfg.SentimentAPIHost, cfg.SentimentAPIKey)
	}

	appIDs := make(map[domain.Source]string)
	for _, src := range cfg.EnabledSources() {
		appIDs[src] = cfg.AppID(src)
	}
	return triage.New(deps, triage.Options{
		AppName:               cfg.AppName,
		AppIDs:                appIDs,
		Country:               cfg.AppStoreCountry,
		Taxonomy:              cfg.Taxonomy,
		AIGeneratedThreshold:  cfg.AIGeneratedThreshold,
		CallTimeout:           cfg.CallTimeout(),
		VisibilityDelay:       cfg.MessageVisibility(),
		NotifyDuplicates:      cfg.NotifyDuplicates,
		KnowledgeGapAsMessage: cfg.KnowledgeGapAsMessage,
		DefaultOwner:          cfg.DefaultOwnerID,
		DefaultPart:           cfg.DefaultPartID,
	})
}

func buildSources(cfg config.Config) map[domain.Source]triage.ReviewSource {
	sources := make(map[domain.Source]triage.ReviewSource)
	if cfg.SourceEnabled(domain.SourcePlayStore) {
		sources[domain.SourcePlayStore] = reviews.NewPlayStore(cfg.PlayStoreReviewsURL, cfg.PlayStoreAPIKey, cfg.PlayStoreAPIHost)
	}
	if cfg.SourceEnabled(domain.SourceAppStore) {
		sources[domain.SourceAppStore] = reviews.NewAppStore("")
	}
	return sources
}

// buildTicketing returns the configured tracker plus the DevRev snap-in
// timeline as a message mirror when one is configured.
func buildTicketing(cfg config.Config) (ticketing.Tracker, []ticketing.Messenger) {
	var devrevClient *devrev.Client
	if cfg.DevRevEndpoint != "" && cfg.DevRevToken != "" {
		devrevClient = devrev.NewClient(cfg.DevRevEndpoint, cfg.DevRevToken, cfg.DevRevSnapInID)
	}

	var mirrors []ticketing.Messenger
	if devrevClient != nil && cfg.DevRevSnapInID != "" {
		mirrors = append(mirrors, devrevClient)
	}

	switch cfg.Tracker {
	case "github":
		return github.NewIssueTracker(cfg.GitHubToken, cfg.GitHubRepo), mirrors
	case "gitlab":
		return gitlab.NewIssueTracker(cfg.GitLabURL, cfg.GitLabToken, cfg.GitLabProject), mirrors
	}
	if devrevClient == nil {
		return nil, mirrors
	}
	return devrevClient, mirrors
}

// buildRecorder always records to the SQLite ledger and additionally to
// Kafka when brokers are configured.
func buildRecorder(cfg config.Config, db *sql.DB) (triage.Recorder, *events.Publisher) {
	recorders := triage.MultiRecorder{sqlite.NewLedger(db)}
	if !cfg.KafkaConfigured() {
		return recorders, nil
	}
	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	log.Printf("Outcome events enabled. Brokers=%s Topic=%s", strings.Join(cfg.KafkaBrokers, ","), cfg.KafkaTopic)
	return append(recorders, publisher), publisher
}

func logUsage(name string, c *llm.Client) {
	u := c.Usage()
	log.Printf("llm usage %s model=%s input=%d output=%d cache_read=%d total=%d",
		name, c.Model(), u.InputTokens, u.OutputTokens, u.CacheReadInputTokens, u.TotalTokens())
}

func sourceNames(sources []domain.Source) string {
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, string(s))
	}
	return strings.Join(names, ",")
}
