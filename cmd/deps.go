package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/joescharf/focus/internal/analysis"
	"github.com/joescharf/focus/internal/llm"
	"github.com/joescharf/focus/internal/logging"
	"github.com/joescharf/focus/internal/monitor"
	"github.com/joescharf/focus/internal/notify"
	"github.com/joescharf/focus/internal/screen"
	"github.com/joescharf/focus/internal/sessions"
	"github.com/joescharf/focus/internal/store"
)

// analysisClient is a model provider that can also check its credential.
type analysisClient interface {
	analysis.Client
	ValidateKey(ctx context.Context) error
}

// newAnalysisClient creates the configured provider's client, or returns nil
// if no API key is configured.
func newAnalysisClient() (analysisClient, error) {
	switch provider := viper.GetString("provider"); provider {
	case "anthropic", "":
		apiKey := viper.GetString("anthropic.api_key")
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, nil
		}
		return llm.NewClient(apiKey, viper.GetString("anthropic.model")), nil
	case "gemini":
		apiKey := viper.GetString("gemini.api_key")
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, nil
		}
		return llm.NewGeminiClient(apiKey, viper.GetString("gemini.model"), ""), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want anthropic or gemini)", provider)
	}
}

// newScreenSource returns a directory source when screen.dir is set, else the
// platform capture tools.
func newScreenSource() screen.Source {
	width := viper.GetInt("screen.thumbnail_width")
	if dir := viper.GetString("screen.dir"); dir != "" {
		return screen.NewDirSource(dir, width)
	}
	return screen.NewCommandSource(width)
}

func newLogger(w io.Writer) zerolog.Logger {
	return logging.New(viper.GetString("log.level"), viper.GetString("log.format"), w)
}

func profileFromConfig() sessions.Profile {
	return sessions.Profile{
		Background:       viper.GetString("profile.background"),
		CaptureInterval:  time.Duration(viper.GetInt("profile.capture_interval_sec")) * time.Second,
		ReminderInterval: time.Duration(viper.GetInt("profile.reminder_minutes")) * time.Minute,
		Screens:          viper.GetStringSlice("profile.screens"),
	}
}

// app is the wired engine with its collaborators.
type app struct {
	store      store.Store
	hub        *notify.WindowHub
	dispatcher *notify.Dispatcher
	engine     *monitor.Engine
	sessions   *sessions.Manager
	logger     zerolog.Logger
	analyzing  bool
}

// newApp wires the engine from config. Logs go to logOut.
func newApp(logOut io.Writer) (*app, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	client, err := newAnalysisClient()
	if err != nil {
		return nil, err
	}

	logger := newLogger(logOut)
	random := analysis.NewRandom(uint64(time.Now().UnixNano()))
	source := newScreenSource()
	hub := notify.NewWindowHub()

	var osNotifier notify.OSNotifier = notify.NopNotifier{}
	if viper.GetBool("notify.enabled") {
		osNotifier = notify.NewCommandNotifier("focus")
	}
	dispatcher := notify.NewDispatcher(notify.Options{
		Windows: hub,
		OS:      osNotifier,
		Picker:  random,
		Logger:  logger,
	})

	var c analysis.Client
	if client != nil {
		c = client
	}
	pipeline := analysis.NewPipeline(analysis.Options{
		Client: c,
		Random: random,
		Logger: logger,
	})

	engine := monitor.New(monitor.Options{
		Source:   source,
		Analyzer: pipeline,
		Notifier: dispatcher,
		Store:    s,
		Random:   random,
		Logger:   logger,
	})

	return &app{
		store:      s,
		hub:        hub,
		dispatcher: dispatcher,
		engine:     engine,
		sessions:   sessions.NewManager(engine, s, source, profileFromConfig()),
		logger:     logger,
		analyzing:  pipeline.Configured(),
	}, nil
}

// Close stops every session and releases notification watchers.
func (a *app) Close(ctx context.Context) error {
	err := a.engine.Shutdown(ctx)
	a.dispatcher.Close()
	return err
}
