// Package app runs one prompt end to end: negotiate a layout, persist it, and
// inpaint every object onto a blank canvas.
package app

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"layoutpaint/pkg/agent"
	"layoutpaint/pkg/agent/llm"
	"layoutpaint/pkg/agent/middleware/metrics"
	"layoutpaint/pkg/cache"
	"layoutpaint/pkg/config"
	"layoutpaint/pkg/eventlog"
	"layoutpaint/pkg/imagesvc"
	"layoutpaint/pkg/inpaint"
	"layoutpaint/pkg/layout"
	"layoutpaint/pkg/logx"
	"layoutpaint/pkg/negotiation"
	"layoutpaint/pkg/runerrors"
)

// Services are the remote collaborators of a run. Nil fields are built from
// the configuration; tests inject fakes.
type Services struct {
	Proposer  llm.LLMClient
	Verifier  llm.LLMClient
	Persister llm.LLMClient
	Editor    imagesvc.Editor
	Fetcher   inpaint.Fetcher
}

// Report summarizes a finished run.
type Report struct {
	Layout    *layout.Layout
	RunID     string
	SessionID string
	FinalPath string
	Steps     []inpaint.StepResult
	Messages  int
}

// Run executes the whole flow for prompt. Credentials are checked before any
// network call, and the pipeline reads the layout back from the file the
// negotiation persisted.
func Run(ctx context.Context, cfg *config.Config, prompt string, svc Services) (*Report, error) {
	const op = "app.run"

	if strings.TrimSpace(prompt) == "" {
		return nil, runerrors.Configuration(op, "prompt must not be empty")
	}
	if err := config.RequireCredentials(cfg); err != nil {
		return nil, err
	}

	report := &Report{RunID: uuid.New().String()}
	logger := logx.NewLogger("app")
	logger.Info("Run %s: %q on a %dx%d canvas with %s", report.RunID, prompt, cfg.ImageWidth, cfg.ImageHeight, cfg.MaskGenModel)

	recorder, flush := newRecorder(cfg, logger)
	defer flush()

	llmCache, err := cache.Open(cache.Options{
		Backend:   cfg.LLMCache.Backend,
		Dir:       cfg.LLMCache.Dir,
		RedisAddr: cfg.LLMCache.RedisAddr,
	})
	if err != nil {
		return nil, runerrors.Wrap(runerrors.KindConfiguration, op, err, "llm_cache")
	}
	defer func() {
		if err := llmCache.Close(); err != nil {
			logger.Warn("Failed to close LLM cache: %v", err)
		}
	}()

	if err := buildClients(cfg, &svc, recorder, llmCache, logger); err != nil {
		return nil, err
	}

	negOpts := negotiation.OptionsFromConfig(cfg, recorder)
	if cfg.EventLogDir != "" {
		events, err := eventlog.NewWriter(cfg.EventLogDir)
		if err != nil {
			return nil, runerrors.IO(op, err, "event log %s", cfg.EventLogDir)
		}
		defer func() {
			if err := events.Close(); err != nil {
				logger.Warn("Failed to close event log: %v", err)
			}
		}()
		negOpts.OnMessage = transcriptWriter(events, report.RunID, logger)
	}

	out := negotiation.New(negOpts, svc.Proposer, svc.Verifier, svc.Persister).Negotiate(ctx, prompt)
	report.SessionID = out.SessionID
	report.Messages = out.Round
	if _, err := out.Result(); err != nil {
		return report, err
	}

	l, err := layout.Load(cfg.LayoutPath)
	if err != nil {
		return report, err
	}
	report.Layout = l

	opts, err := inpaint.OptionsFromConfig(cfg)
	if err != nil {
		return report, err
	}
	result, err := inpaint.NewPipeline(opts, svc.Editor, svc.Fetcher, recorder).Run(ctx, l)
	if result != nil {
		report.Steps = result.Steps
		report.FinalPath = result.FinalPath
	}
	if err != nil {
		return report, err
	}

	logger.Info("Run %s finished: %s", report.RunID, report.FinalPath)
	return report, nil
}

// buildClients fills every nil service from the configuration.
func buildClients(cfg *config.Config, svc *Services, recorder metrics.Recorder, llmCache cache.Cache, logger *logx.Logger) error {
	const op = "app.clients"

	for _, slot := range []struct {
		client *llm.LLMClient
		name   string
	}{
		{&svc.Proposer, negotiation.NameProposer},
		{&svc.Verifier, negotiation.NameVerifier},
		{&svc.Persister, negotiation.NamePersister},
	} {
		if *slot.client != nil {
			continue
		}
		client, err := agent.NewClient(cfg, cfg.MaskGenModel, agent.Deps{
			Recorder:    recorder,
			Cache:       llmCache,
			Logger:      logger,
			Participant: slot.name,
		})
		if err != nil {
			return err
		}
		*slot.client = client
	}

	if svc.Editor == nil {
		key, err := config.GetAPIKey(config.ProviderOpenAI)
		if err != nil {
			return runerrors.Wrap(runerrors.KindConfiguration, op, err, "image edits")
		}
		svc.Editor = imagesvc.WithRetry(
			imagesvc.NewOpenAIEditor(key, cfg.ImageService.BaseURL),
			imagesvc.NewPolicy(cfg.ImageService),
			imagesvc.Timeout(cfg.ImageService),
		)
	}
	if svc.Fetcher == nil {
		svc.Fetcher = imagesvc.NewFetcher(nil, imagesvc.NewPolicy(cfg.ImageService), imagesvc.Timeout(cfg.ImageService))
	}
	return nil
}

// transcriptWriter appends every negotiation message to the event log. Write
// failures are logged and never stop the negotiation.
func transcriptWriter(w *eventlog.Writer, runID string, logger *logx.Logger) func(*negotiation.Session, negotiation.Message) {
	return func(s *negotiation.Session, m negotiation.Message) {
		err := w.Write(eventlog.Event{
			RunID:     runID,
			SessionID: s.ID,
			Index:     s.Len(),
			Sender:    m.Sender,
			Kind:      m.Kind.String(),
			State:     s.State.String(),
			Content:   m.Text(),
			Failure:   m.Failure,
		})
		if err != nil {
			logger.Warn("Failed to record message %d: %v", s.Len(), err)
		}
	}
}

// newRecorder returns the Prometheus recorder when metrics_path is set, along
// with a flush that writes its textfile.
func newRecorder(cfg *config.Config, logger *logx.Logger) (metrics.Recorder, func()) {
	if cfg.MetricsPath == "" {
		return metrics.Nop(), func() {}
	}
	recorder := metrics.NewPrometheusRecorder()
	return recorder, func() {
		if err := recorder.WriteTextfile(cfg.MetricsPath); err != nil {
			logger.Warn("Failed to write metrics to %s: %v", cfg.MetricsPath, err)
		}
	}
}
