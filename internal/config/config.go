package config

import (
	"fmt"
	"log"
	"os"
	"reviewbot/internal/domain"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)
const defaultCallTimeoutSeconds = 60

const (
	defaultGPTZeroURL       = "https://api.gptzero.me/v2/predict/text"
	defaultSentimentURL     = "https://twinword-sentiment-analysis.p.rapidapi.com/analyze/"
	defaultSentimentAPIHost = "twinword-sentiment-analysis.p.rapidapi.com"
	defaultKafkaTopic       = "review-triage-outcomes"
)

type Config struct {
	SlackBotToken   string   `yaml:"slack_bot_token"`
	SlackAppToken   string   `yaml:"slack_app_token"`
	ReportChannelID string   `yaml:"report_channel_id"`
	TriageOperators []string `yaml:"triage_operators"` // Slack IDs or names; empty allows everyone

	LLMProvider          string `yaml:"llm_provider"`
	LLMModel             string `yaml:"llm_model"`
	LLMSafetyModel       string `yaml:"llm_safety_model"`
	LLMBaseURL           string `yaml:"llm_base_url"`
	LLMMaxTokens         int    `yaml:"llm_max_tokens"`
	LLMRequestsPerMinute int    `yaml:"llm_requests_per_minute"`
	AnthropicAPIKey      string `yaml:"anthropic_api_key"`
	OpenAIAPIKey         string `yaml:"openai_api_key"`

	GPTZeroAPIKey        string  `yaml:"gptzero_api_key"`
	GPTZeroURL           string  `yaml:"gptzero_url"`
	AIGeneratedThreshold float64 `yaml:"ai_generated_threshold"`

	SentimentAPIKey  string `yaml:"sentiment_api_key"`
	SentimentAPIHost string `yaml:"sentiment_api_host"`
	SentimentURL     string `yaml:"sentiment_url"`

	AppName             string `yaml:"app_name"`
	PlayStoreAppID      string `yaml:"playstore_app_id"`
	PlayStoreReviewsURL string `yaml:"playstore_reviews_url"`
	PlayStoreAPIKey     string `yaml:"playstore_api_key"`
	PlayStoreAPIHost    string `yaml:"playstore_api_host"`
	AppStoreID          string `yaml:"appstore_id"`
	AppStoreCountry     string `yaml:"appstore_country"`

	Tracker        string `yaml:"tracker"`
	DevRevEndpoint string `yaml:"devrev_endpoint"`
	DevRevToken    string `yaml:"devrev_token"`
	DevRevSnapInID string `yaml:"devrev_snap_in_id"`
	DefaultOwnerID string `yaml:"default_owner_id"`
	DefaultPartID  string `yaml:"default_part_id"`
	GitHubToken    string `yaml:"github_token"`
	GitHubRepo     string `yaml:"github_repo"`
	GitLabURL      string `yaml:"gitlab_url"`
	GitLabToken    string `yaml:"gitlab_token"`
	GitLabProject  string `yaml:"gitlab_project"`

	Tags                     map[string]string `yaml:"tags"`
	NotifyDuplicates         bool              `yaml:"notify_duplicates"`
	KnowledgeGapAsMessage    bool              `yaml:"knowledge_gap_as_message"`
	MessageVisibilitySeconds int               `yaml:"message_visibility_seconds"` // 0 keeps tracker messages forever

	DBPath       string   `yaml:"db_path"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds"`
	CallTimeoutSeconds         int `yaml:"call_timeout_seconds"`

	AutoTriageSchedule string   `yaml:"auto_triage_schedule"`
	AutoTriageSources  []string `yaml:"auto_triage_sources"`
	AutoTriageCount    string   `yaml:"auto_triage_count"`
	Timezone           string   `yaml:"timezone"`

	Location *time.Location  `yaml:"-"` // computed from Timezone, not from YAML
	Taxonomy domain.Taxonomy `yaml:"-"` // computed from Tags
}

func LoadConfig() Config {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverride(&cfg.ReportChannelID, "REPORT_CHANNEL_ID")
	envOverrideList(&cfg.TriageOperators, "TRIAGE_OPERATORS")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.LLMSafetyModel, "LLM_SAFETY_MODEL")
	envOverride(&cfg.LLMBaseURL, "LLM_BASE_URL")
	envOverrideInt(&cfg.LLMMaxTokens, "LLM_MAX_TOKENS")
	envOverrideInt(&cfg.LLMRequestsPerMinute, "LLM_REQUESTS_PER_MINUTE")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.GPTZeroAPIKey, "GPTZERO_API_KEY")
	envOverride(&cfg.GPTZeroURL, "GPTZERO_URL")
	envOverrideFloat(&cfg.AIGeneratedThreshold, "AI_GENERATED_THRESHOLD")
	envOverride(&cfg.SentimentAPIKey, "SENTIMENT_API_KEY")
	envOverride(&cfg.SentimentAPIHost, "SENTIMENT_API_HOST")
	envOverride(&cfg.SentimentURL, "SENTIMENT_URL")
	envOverride(&cfg.AppName, "APP_NAME")
	envOverride(&cfg.PlayStoreAppID, "PLAYSTORE_APP_ID")
	envOverride(&cfg.PlayStoreReviewsURL, "PLAYSTORE_REVIEWS_URL")
	envOverride(&cfg.PlayStoreAPIKey, "PLAYSTORE_API_KEY")
	envOverride(&cfg.PlayStoreAPIHost, "PLAYSTORE_API_HOST")
	envOverride(&cfg.AppStoreID, "APPSTORE_ID")
	envOverride(&cfg.AppStoreCountry, "APPSTORE_COUNTRY")
	envOverride(&cfg.Tracker, "TRACKER")
	envOverride(&cfg.DevRevEndpoint, "DEVREV_ENDPOINT")
	envOverride(&cfg.DevRevToken, "DEVREV_TOKEN")
	envOverride(&cfg.DevRevSnapInID, "DEVREV_SNAP_IN_ID")
	envOverride(&cfg.DefaultOwnerID, "DEFAULT_OWNER_ID")
	envOverride(&cfg.DefaultPartID, "DEFAULT_PART_ID")
	envOverride(&cfg.GitHubToken, "GITHUB_TOKEN")
	envOverride(&cfg.GitHubRepo, "GITHUB_REPO")
	envOverride(&cfg.GitLabURL, "GITLAB_URL")
	envOverride(&cfg.GitLabToken, "GITLAB_TOKEN")
	envOverride(&cfg.GitLabProject, "GITLAB_PROJECT")
	envOverrideBool(&cfg.NotifyDuplicates, "NOTIFY_DUPLICATES")
	envOverrideBool(&cfg.KnowledgeGapAsMessage, "KNOWLEDGE_GAP_AS_MESSAGE")
	envOverrideInt(&cfg.MessageVisibilitySeconds, "MESSAGE_VISIBILITY_SECONDS")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverrideList(&cfg.KafkaBrokers, "KAFKA_BROKERS")
	envOverride(&cfg.KafkaTopic, "KAFKA_TOPIC")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverrideInt(&cfg.CallTimeoutSeconds, "CALL_TIMEOUT_SECONDS")
	envOverride(&cfg.AutoTriageSchedule, "AUTO_TRIAGE_SCHEDULE")
	envOverrideList(&cfg.AutoTriageSources, "AUTO_TRIAGE_SOURCES")
	envOverride(&cfg.AutoTriageCount, "AUTO_TRIAGE_COUNT")
	envOverride(&cfg.Timezone, "TIMEZONE")

	if tags := os.Getenv("TAXONOMY_TAGS"); tags != "" {
		parsed, err := parseTagList(tags)
		if err != nil {
			log.Fatalf("invalid TAXONOMY_TAGS: %v", err)
		}
		cfg.Tags = parsed
	}

	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	if cfg.LLMMaxTokens == 0 {
		cfg.LLMMaxTokens = 1024
	}
	if cfg.GPTZeroURL == "" {
		cfg.GPTZeroURL = defaultGPTZeroURL
	}
	if cfg.AIGeneratedThreshold == 0 {
		cfg.AIGeneratedThreshold = 0.8
	}
	if cfg.SentimentURL == "" {
		cfg.SentimentURL = defaultSentimentURL
	}
	if cfg.SentimentAPIHost == "" {
		cfg.SentimentAPIHost = defaultSentimentAPIHost
	}
	if cfg.AppStoreCountry == "" {
		cfg.AppStoreCountry = "us"
	}
	if cfg.AppName == "" {
		cfg.AppName = firstNonEmpty(cfg.PlayStoreAppID, cfg.AppStoreID)
	}
	if cfg.Tracker == "" {
		cfg.Tracker = "devrev"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./reviewbot.db"
	}
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = defaultKafkaTopic
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.CallTimeoutSeconds == 0 {
		cfg.CallTimeoutSeconds = defaultCallTimeoutSeconds
	}
	if cfg.AutoTriageCount == "" {
		cfg.AutoTriageCount = "10"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	required := map[string]string{
		"slack_bot_token": cfg.SlackBotToken,
		"slack_app_token": cfg.SlackAppToken,
	}
	for name, val := range required {
		if val == "" {
			log.Fatalf("Required config '%s' is not set (via config.yaml or env var)", name)
		}
	}

	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Fatalf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatalf("openai_api_key is required when llm_provider=openai")
		}
	default:
		log.Fatalf("llm_provider must be 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
	}

	switch cfg.Tracker {
	case "devrev":
		if cfg.DevRevEndpoint == "" || cfg.DevRevToken == "" {
			log.Fatalf("devrev_endpoint and devrev_token are required when tracker=devrev")
		}
	case "github":
		if cfg.GitHubToken == "" || !strings.Contains(cfg.GitHubRepo, "/") {
			log.Fatalf("github_token and github_repo (owner/name) are required when tracker=github")
		}
	case "gitlab":
		if cfg.GitLabURL == "" || cfg.GitLabToken == "" || cfg.GitLabProject == "" {
			log.Fatalf("gitlab_url, gitlab_token and gitlab_project are required when tracker=gitlab")
		}
	default:
		log.Fatalf("tracker must be 'devrev', 'github' or 'gitlab', got '%s'", cfg.Tracker)
	}

	sources := cfg.EnabledSources()
	if len(sources) == 0 {
		log.Fatalf("no review source configured: set playstore_app_id and/or appstore_id")
	}
	if cfg.PlayStoreAppID != "" && cfg.PlayStoreReviewsURL == "" {
		log.Fatalf("playstore_reviews_url is required when playstore_app_id is set")
	}
	if cfg.GPTZeroAPIKey == "" {
		log.Printf("WARNING: gptzero_api_key not set. Machine-generated detection will fail open.")
	}
	if cfg.SentimentAPIKey == "" {
		log.Printf("WARNING: sentiment_api_key not set. Sentiment will default to neutral.")
	}

	taxonomy, err := domain.NewTaxonomy(cfg.Tags, sources...)
	if err != nil {
		log.Fatalf("invalid tags: %v", err)
	}
	cfg.Taxonomy = taxonomy

	for _, s := range cfg.AutoTriageSources {
		src, err := domain.ParseSource(s)
		if err != nil {
			log.Fatalf("invalid auto_triage_sources entry: %v", err)
		}
		if !cfg.SourceEnabled(src) {
			log.Fatalf("auto_triage_sources lists %s but it is not configured", src)
		}
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	if cfg.AIGeneratedThreshold <= 0 || cfg.AIGeneratedThreshold > 1 {
		log.Fatalf("invalid ai_generated_threshold '%f': must be in (0, 1]", cfg.AIGeneratedThreshold)
	}
	if cfg.LLMMaxTokens < 64 {
		log.Fatalf("invalid llm_max_tokens '%d': must be >= 64", cfg.LLMMaxTokens)
	}
	if cfg.LLMRequestsPerMinute < 0 {
		log.Fatalf("invalid llm_requests_per_minute '%d': must be >= 0", cfg.LLMRequestsPerMinute)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 5 {
		log.Fatalf("invalid external_http_timeout_seconds '%d': must be >= 5", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.CallTimeoutSeconds < 1 {
		log.Fatalf("invalid call_timeout_seconds '%d': must be >= 1", cfg.CallTimeoutSeconds)
	}
	if cfg.MessageVisibilitySeconds < 0 {
		log.Fatalf("invalid message_visibility_seconds '%d': must be >= 0", cfg.MessageVisibilitySeconds)
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideList(field *[]string, envKey string) {
	val := os.Getenv(envKey)
	if val == "" {
		return
	}
	*field = nil
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			*field = append(*field, part)
		}
	}
}

// parseTagList reads "bug=TAG-1,feedback=TAG-2" into a tag map.
func parseTagList(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("expected name=id, got %q", pair)
		}
		out[k] = v
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// EnabledSources lists the sources with an app identifier configured.
func (c Config) EnabledSources() []domain.Source {
	var out []domain.Source
	if c.PlayStoreAppID != "" {
		out = append(out, domain.SourcePlayStore)
	}
	if c.AppStoreID != "" {
		out = append(out, domain.SourceAppStore)
	}
	return out
}

func (c Config) SourceEnabled(src domain.Source) bool {
	for _, s := range c.EnabledSources() {
		if s == src {
			return true
		}
	}
	return false
}

// AppID returns the identifier passed to the review source for src.
func (c Config) AppID(src domain.Source) string {
	if src == domain.SourceAppStore {
		return c.AppStoreID
	}
	return c.PlayStoreAppID
}

func (c Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

func (c Config) MessageVisibility() time.Duration {
	return time.Duration(c.MessageVisibilitySeconds) * time.Second
}

func (c Config) KafkaConfigured() bool {
	return len(c.KafkaBrokers) > 0
}
