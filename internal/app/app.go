// Package app wires the Fae core together: configuration, providers, memory,
// scheduler, agent loop, pipeline coordinator, and the host command channel.
// The cmd binaries and the C ABI all build on this package so the wiring
// exists exactly once.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saorsa-labs/fae/internal/agent"
	"github.com/saorsa-labs/fae/internal/config"
	"github.com/saorsa-labs/fae/internal/credential"
	ferrors "github.com/saorsa-labs/fae/internal/errors"
	"github.com/saorsa-labs/fae/internal/health"
	"github.com/saorsa-labs/fae/internal/host"
	"github.com/saorsa-labs/fae/internal/hotctx"
	"github.com/saorsa-labs/fae/internal/memory/journal"
	"github.com/saorsa-labs/fae/internal/memory/orchestrator"
	"github.com/saorsa-labs/fae/internal/observe"
	"github.com/saorsa-labs/fae/internal/mcp"
	"github.com/saorsa-labs/fae/internal/mcp/mcphost"
	"github.com/saorsa-labs/fae/internal/onboarding"
	"github.com/saorsa-labs/fae/internal/pipeline"
	"github.com/saorsa-labs/fae/internal/resilience"
	"github.com/saorsa-labs/fae/internal/scheduler"
	"github.com/saorsa-labs/fae/internal/session"
	"github.com/saorsa-labs/fae/internal/transcript"
	"github.com/saorsa-labs/fae/internal/transcript/phonetic"
	"github.com/saorsa-labs/fae/pkg/audio"
	"github.com/saorsa-labs/fae/pkg/provider/llm"
	"github.com/saorsa-labs/fae/pkg/provider/llm/anyllm"
	"github.com/saorsa-labs/fae/pkg/provider/llm/openai"
	"github.com/saorsa-labs/fae/pkg/provider/stt"
	sttmock "github.com/saorsa-labs/fae/pkg/provider/stt/mock"
	"github.com/saorsa-labs/fae/pkg/provider/stt/whisper"
	"github.com/saorsa-labs/fae/pkg/provider/tts"
	ttsmock "github.com/saorsa-labs/fae/pkg/provider/tts/mock"
	"github.com/saorsa-labs/fae/pkg/types"
)

// App is the assembled Fae core.
type App struct {
	cfg        *config.Config
	cfgPath    string
	platform   audio.Platform
	sttP       stt.Provider
	ttsP       tts.Provider
	llmP       llm.Provider
	tools      *mcphost.Host
	memory     *session.MemoryGuard
	journal    *journal.Store
	channel    *host.Channel
	core       *host.Core
	health     *health.Handler
	lease      *scheduler.LeaderLease
	ledger     *scheduler.RunKeyLedger
	contextMgr *session.ContextManager
	prefetch   *hotctx.PreFetcher

	mu           sync.Mutex
	coordinator  *pipeline.Coordinator
	pipelineDone chan struct{}
	cancelRun    context.CancelFunc
}

// Option overrides a collaborator during construction (tests, host shells
// with their own device layer).
type Option func(*App)

// WithAudioPlatform replaces the audio device backend.
func WithAudioPlatform(p audio.Platform) Option {
	return func(a *App) { a.platform = p }
}

// WithSTTProvider replaces the speech-to-text backend.
func WithSTTProvider(p stt.Provider) Option {
	return func(a *App) { a.sttP = p }
}

// WithTTSProvider replaces the text-to-speech backend.
func WithTTSProvider(p tts.Provider) Option {
	return func(a *App) { a.ttsP = p }
}

// WithLLMProvider replaces the language model backend.
func WithLLMProvider(p llm.Provider) Option {
	return func(a *App) { a.llmP = p }
}

// New assembles the core from cfg. cfgPath is where permission and
// onboarding mutations are written back; empty disables write-through.
func New(cfg *config.Config, cfgPath string, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, cfgPath: cfgPath}
	for _, o := range opts {
		o(a)
	}

	if a.platform == nil {
		a.platform = audio.NullPlatform{}
	}

	// ── Providers ─────────────────────────────────────────────────────────
	if a.llmP == nil {
		p, err := buildLLMProvider(cfg)
		if err != nil {
			return nil, err
		}
		a.llmP = p
	}
	if a.sttP == nil {
		a.sttP = buildSTTProvider(cfg)
	}
	if a.ttsP == nil {
		// Concrete TTS backends (Kokoro, Chatterbox, Fish-Speech) live in
		// the host shell; headless runs synthesise silence.
		a.ttsP = &ttsmock.Provider{}
	}

	// ── Memory ────────────────────────────────────────────────────────────
	root := cfg.Memory.RootDir
	if root == "" {
		root = defaultDataRoot()
	}
	a.journal = journal.New(root)
	if err := a.journal.EnsureLayout(); err != nil {
		return nil, err
	}
	if _, err := a.journal.MigrateIfNeeded(journal.CurrentSchemaVersion); err != nil {
		return nil, err
	}

	var extractor orchestrator.Extractor
	if cfg.Memory.CaptureEnabled && a.llmP != nil {
		extractor = orchestrator.NewLLMExtractor(a.llmP)
	}
	orch := orchestrator.New(a.journal, extractor,
		orchestrator.WithMaxResults(cfg.Memory.MaxResults))
	a.memory = session.NewMemoryGuard(orch)

	// ── Conversation context ──────────────────────────────────────────────
	a.contextMgr = session.NewContextManager(session.ContextManagerConfig{
		MaxTokens:  a.llmP.Capabilities().ContextWindow,
		Summariser: session.NewLLMSummariser(a.llmP),
	})

	// ── Scheduler authority ───────────────────────────────────────────────
	schedRoot := cfg.Scheduler.RootDir
	if schedRoot == "" {
		schedRoot = filepath.Join(root, "scheduler")
	}
	holderID := fmt.Sprintf("fae-%s", uuid.NewString()[:8])
	a.lease = scheduler.NewLeaderLease(holderID, os.Getpid(),
		filepath.Join(schedRoot, "scheduler.leader.lock"),
		scheduler.LeaseConfig{TTLMs: cfg.Scheduler.LeaseTTLMs, HeartbeatMs: cfg.Scheduler.HeartbeatMs})
	a.ledger = scheduler.NewRunKeyLedger(filepath.Join(schedRoot, "scheduler.run_keys.jsonl"))

	// ── Tools ─────────────────────────────────────────────────────────────
	a.tools = mcphost.New()
	a.registerBuiltinTools()

	// ── Host command channel ──────────────────────────────────────────────
	a.channel = host.NewChannel()
	a.core = host.NewCore(a.channel,
		host.WithPipeline(&pipelineController{app: a}),
		host.WithDevices(a.platform),
		host.WithPermissions(&permissionStore{app: a}),
		host.WithOnboarding(onboarding.NewMachine(&onboardingStore{app: a})),
	)

	// ── Health ────────────────────────────────────────────────────────────
	a.health = health.New(
		health.Checker{Name: "memory", Check: func(context.Context) error {
			_, err := a.journal.SchemaVersion()
			return err
		}},
		health.Checker{Name: "scheduler", Check: func(context.Context) error {
			_, err := a.lease.TryAcquireOrRenewAt(time.Now().UnixMilli())
			return err
		}},
	)

	return a, nil
}

// Channel returns the host command channel.
func (a *App) Channel() *host.Channel { return a.channel }

// Health returns the aggregate health handler.
func (a *App) Health() *health.Handler { return a.health }

// Memory returns the guarded memory backend.
func (a *App) Memory() *session.MemoryGuard { return a.memory }

// Platform returns the audio device backend.
func (a *App) Platform() audio.Platform { return a.platform }

// RecordRunOnce records a background-task run key, returning true exactly
// once per key across all processes sharing the data root.
func (a *App) RecordRunOnce(key string) (bool, error) {
	return a.ledger.RecordOnce(key)
}

// RunPipeline starts and blocks on a pipeline run in the given mode.
func (a *App) RunPipeline(ctx context.Context, mode pipeline.Mode) error {
	coordinator := a.buildCoordinator(mode)

	a.mu.Lock()
	if a.coordinator != nil {
		a.mu.Unlock()
		return ferrors.New(ferrors.KindPipeline, "app.RunPipeline", "pipeline already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.coordinator = coordinator
	a.cancelRun = cancel
	a.pipelineDone = done
	a.mu.Unlock()

	// Forward coordinator events onto the host channel, feeding partial
	// transcripts to the recall prefetcher on the way past.
	go func() {
		for event := range coordinator.Events() {
			if event.Name == pipeline.EventTranscriptInterm && a.prefetch != nil {
				if text, ok := event.Payload["text"].(string); ok {
					a.prefetch.Observe(runCtx, text)
				}
			}
			a.channel.EmitEvent(host.EventEnvelope{
				Event:     event.Name,
				Payload:   event.Payload,
				EmittedAt: event.EmittedAt,
			})
		}
	}()

	// Periodically flush the conversation tail to the journal so a crash
	// never loses more than one consolidation interval.
	consolidator := session.NewConsolidator(session.ConsolidatorConfig{
		Store:          &journalTranscriptStore{store: a.journal},
		ContextMgr:     a.contextMgr,
		ConversationID: uuid.NewString(),
		Interval:       5 * time.Minute,
	})
	consolidator.Start(runCtx)

	err := coordinator.Run(runCtx)
	consolidator.Stop()
	if flushErr := consolidator.ConsolidateNow(context.Background()); flushErr != nil {
		slog.Warn("final transcript consolidation failed", "err", flushErr)
	}

	a.mu.Lock()
	a.coordinator = nil
	a.cancelRun = nil
	a.pipelineDone = nil
	a.mu.Unlock()
	close(done)
	cancel()
	return err
}

// Shutdown stops any pipeline run and releases tool connections.
func (a *App) Shutdown(ctx context.Context) error {
	a.stopPipeline(ctx)
	a.channel.Close()
	return a.tools.Close()
}

func (a *App) stopPipeline(ctx context.Context) {
	a.mu.Lock()
	cancel := a.cancelRun
	done := a.pipelineDone
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
}

// buildCoordinator assembles a pipeline coordinator for one run.
func (a *App) buildCoordinator(mode pipeline.Mode) *pipeline.Coordinator {
	cfg := pipeline.Config{
		Mode:             mode,
		GateEnabled:      a.cfg.Conversation.GateEnabled,
		WakePhrase:       a.cfg.Conversation.WakePhrase,
		StopPhrase:       a.cfg.Conversation.StopPhrase,
		BargeIn:          a.cfg.Conversation.BargeIn,
		SampleRate:       a.cfg.Audio.SampleRate,
		FrameMs:          a.cfg.Audio.FrameMs,
		InputDevice:      a.cfg.Audio.InputDevice,
		OutputDevice:     a.cfg.Audio.OutputDevice,
		Language:         a.cfg.STT.Language,
		PlaybackBufferMs: a.cfg.Audio.PlaybackBufferMs,
		Voice: types.VoiceProfile{
			ID:            a.cfg.TTS.Voice,
			Provider:      a.cfg.TTS.Provider.Name,
			SpeedFactor:   a.cfg.TTS.Speed,
			ReferencePath: a.cfg.TTS.VoiceReference,
		},
	}

	corrector := transcript.NewPipeline(
		transcript.WithPhoneticMatcher(phonetic.New()),
	)
	entities := []string{"Fae", a.cfg.Conversation.WakePhrase, a.cfg.Conversation.StopPhrase}

	responder := a.newResponder()
	capture := pipeline.CaptureHook(func(turnID, user, assistant string) {
		if !a.cfg.Memory.CaptureEnabled {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = a.memory.CaptureTurn(ctx, turnID, user, assistant)
	})

	return pipeline.New(cfg, a.platform, a.sttP, a.ttsP,
		pipeline.WithResponder(responder),
		pipeline.WithCaptureHook(capture),
		pipeline.WithCorrector(corrector, entities),
	)
}

// ── Responder ─────────────────────────────────────────────────────────────────

// responder runs the agent loop for one utterance, with hot context
// assembled from memory and the running conversation.
type responder struct {
	app       *App
	assembler *hotctx.Assembler
}

func (a *App) newResponder() *responder {
	if a.prefetch == nil {
		a.prefetch = hotctx.NewPreFetcher(a.memory)
	}
	assembler := hotctx.NewAssembler(a.memory, &contextTail{mgr: a.contextMgr},
		hotctx.WithPreFetcher(a.prefetch))
	return &responder{app: a, assembler: assembler}
}

// Respond implements [pipeline.Responder].
func (r *responder) Respond(ctx context.Context, userText string) (string, error) {
	a := r.app

	hctx, err := r.assembler.Assemble(ctx, userText)
	if err != nil {
		return "", err
	}
	system := hotctx.FormatSystemPrompt(hctx, a.cfg.LLM.SystemPrompt)

	if err := a.contextMgr.AddMessages(ctx, llm.Message{Role: "user", Content: userText}); err != nil {
		slog.Warn("context manager add failed", "err", err)
	}

	loop := agent.NewLoop(agent.Config{
		SystemPrompt:        system,
		MaxTurns:            a.cfg.LLM.MaxTurns,
		MaxToolCallsPerTurn: a.cfg.LLM.MaxToolCallsPerTurn,
		RequestTimeout:      time.Duration(a.cfg.LLM.RequestTimeoutSeconds) * time.Second,
		ToolTimeout:         time.Duration(a.cfg.LLM.ToolTimeoutSeconds) * time.Second,
		ToolOutputMaxBytes:  a.cfg.LLM.ToolOutputMaxBytes,
	}, a.llmP, &toolRegistry{app: a})

	metrics := observe.DefaultMetrics()
	var result *agent.Result
	_ = observe.Stage(ctx, "agent.turn", metrics.TurnDuration, func(ctx context.Context) error {
		result = loop.Run(ctx, a.contextMgr.Messages())
		return result.Err
	})
	metrics.RecordTurn(ctx, string(result.StopReason))
	switch result.StopReason {
	case agent.StopCompleted, agent.StopMaxTurns, agent.StopToolBudgetExceeded:
		if result.FinalText != "" {
			if err := a.contextMgr.AddMessages(ctx, llm.Message{Role: "assistant", Content: result.FinalText}); err != nil {
				slog.Warn("context manager add failed", "err", err)
			}
		}
		return result.FinalText, nil
	case agent.StopCancelled:
		return "", ferrors.New(ferrors.KindCancelled, "app.Respond", "turn cancelled")
	case agent.StopRequestTimeout:
		return "", ferrors.New(ferrors.KindTimeout, "app.Respond", "model request timed out")
	default:
		return "", ferrors.Wrap(ferrors.KindProvider, "app.Respond", "agent loop failed", result.Err)
	}
}

// contextTail adapts the context manager to [hotctx.TranscriptSource].
type contextTail struct {
	mgr *session.ContextManager
}

func (c *contextTail) Recent(n int) []llm.Message {
	msgs := c.mgr.Messages()
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs
}

// ── Tool registry adapter ─────────────────────────────────────────────────────

// toolRegistry adapts the MCP host to [agent.ToolRegistry], applying the
// configured tool mode and the user's permission grants.
type toolRegistry struct {
	app *App
}

func (t *toolRegistry) Tools() []types.ToolDefinition {
	return t.app.tools.AvailableTools(t.app.cfg.LLM.ToolMode, t.app.cfg.Permissions)
}

func (t *toolRegistry) Execute(ctx context.Context, name, args string) (string, bool, error) {
	result, err := t.app.tools.ExecuteTool(ctx, name, args)
	if err != nil {
		return "", false, ferrors.Wrap(ferrors.KindTool, "app.toolRegistry", "tool transport failed", err)
	}
	return result.Content, result.IsError, nil
}

// registerBuiltinTools wires the in-process tools every deployment carries.
func (a *App) registerBuiltinTools() {
	_ = a.tools.RegisterBuiltin(mcphost.BuiltinTool{
		Definition: types.ToolDefinition{
			Name:        "recall_memory",
			Description: "Recall what is known about the user relevant to a query.",
			ReadOnly:    true,
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
				},
				"required": []any{"query"},
			},
		},
		DeclaredP50: 5,
		Handler: func(ctx context.Context, args string) (string, error) {
			query := jsonStringField(args, "query")
			text, ok, err := a.memory.RecallContext(ctx, query)
			if err != nil {
				return "", err
			}
			if !ok {
				return "Nothing relevant is on record.", nil
			}
			return text, nil
		},
	})

	_ = a.tools.RegisterBuiltin(mcphost.BuiltinTool{
		Definition: types.ToolDefinition{
			Name:        "remember",
			Description: "Store a durable fact about the user.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"fact": map[string]any{"type": "string"},
				},
				"required": []any{"fact"},
			},
		},
		DeclaredP50: 10,
		Handler: func(ctx context.Context, args string) (string, error) {
			fact := jsonStringField(args, "fact")
			if fact == "" {
				return "", fmt.Errorf("fact must not be empty")
			}
			if err := a.memory.CaptureTurn(ctx, "tool-"+uuid.NewString()[:8], fact, ""); err != nil {
				return "", err
			}
			return "Noted.", nil
		},
	})
}

// RegisterMCPServers connects the configured external MCP servers.
func (a *App) RegisterMCPServers(ctx context.Context, servers []mcp.ServerConfig) error {
	var errs []error
	for _, server := range servers {
		if err := a.tools.RegisterServer(ctx, server); err != nil {
			slog.Warn("mcp server registration failed", "server", server.Name, "err", err)
			errs = append(errs, err)
		}
	}
	return ferrors.Join(errs...)
}

// ── Host channel glue ─────────────────────────────────────────────────────────

// journalTranscriptStore persists consolidated conversation entries as
// event records in the memory journal.
type journalTranscriptStore struct {
	store *journal.Store
}

func (j *journalTranscriptStore) WriteEntry(_ context.Context, conversationID string, entry session.TranscriptEntry) error {
	now := entry.Timestamp.Unix()
	return j.store.Append(journal.Record{
		ID:        uuid.NewString(),
		Kind:      journal.KindEvent,
		Text:      entry.Role + ": " + entry.Text,
		Tags:      []string{"conversation", conversationID},
		Status:    journal.StatusArchived,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// pipelineController implements [host.PipelineController].
type pipelineController struct {
	app *App
}

func (p *pipelineController) Start(mode string) error {
	// A fresh run starts with fresh breaker verdicts.
	if fallback, ok := p.app.llmP.(*resilience.LLMFallback); ok {
		fallback.ResetBreakers()
	}

	pipelineMode := pipeline.ModeConversation
	if mode == string(pipeline.ModeTranscribeOnly) {
		pipelineMode = pipeline.ModeTranscribeOnly
	}

	ready := make(chan error, 1)
	go func() {
		err := p.app.RunPipeline(context.Background(), pipelineMode)
		select {
		case ready <- err:
		default:
			if err != nil {
				slog.Error("pipeline run ended with error", "err", err)
			}
		}
	}()

	// Give a synchronous failure (already running, device busy) a moment to
	// surface; a healthy run keeps going in the background.
	select {
	case err := <-ready:
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func (p *pipelineController) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.app.stopPipeline(ctx)
	return nil
}

func (p *pipelineController) CancelRun() {
	p.app.mu.Lock()
	cancel := p.app.cancelRun
	p.app.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// permissionStore implements [host.PermissionStore] over the config, with
// write-through to disk when a config path is known.
type permissionStore struct {
	app *App
}

func (s *permissionStore) SetState(kind types.PermissionKind, state types.PermissionState) error {
	a := s.app
	a.mu.Lock()
	if a.cfg.Permissions.Grants == nil {
		a.cfg.Permissions.Grants = map[string]string{}
	}
	a.cfg.Permissions.Grants[string(kind)] = string(state)
	a.mu.Unlock()
	return a.persistConfig()
}

func (s *permissionStore) States() map[string]string {
	a := s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.cfg.Permissions.Grants))
	for k, v := range a.cfg.Permissions.Grants {
		out[k] = v
	}
	return out
}

// onboardingStore implements [onboarding.Store] over the config.
type onboardingStore struct {
	app *App
}

func (s *onboardingStore) Phase() onboarding.Phase {
	phase, ok := onboarding.ParsePhase(s.app.cfg.Onboarding.Phase)
	if !ok {
		return onboarding.PhaseWelcome
	}
	return phase
}

func (s *onboardingStore) SetPhase(p onboarding.Phase) error {
	s.app.cfg.Onboarding.Phase = p.String()
	return s.app.persistConfig()
}

func (s *onboardingStore) SetOnboarded(done bool) error {
	s.app.cfg.Onboarding.Onboarded = done
	return s.app.persistConfig()
}

// persistConfig writes the config back atomically, migrating inline
// credentials to keystore references first. A missing config path disables
// write-through.
func (a *App) persistConfig() error {
	if a.cfgPath == "" {
		return nil
	}
	keystore := credential.NewMemoryStore("com.saorsalabs.fae")
	for i := range a.cfg.LLM.Providers {
		p := &a.cfg.LLM.Providers[i]
		migrated, err := credential.MigrateInline(keystore, p.Name+".api_key", p.APIKey)
		if err == nil {
			p.APIKey = migrated
		}
	}
	return config.Save(a.cfg, a.cfgPath)
}

// ── Provider construction ─────────────────────────────────────────────────────

// newRegistry builds the provider registry with the factories this build
// ships.
func newRegistry(cfg *config.Config) *config.Registry {
	reg := config.NewRegistry()

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		return openai.New(entry.APIKey.Inline, entry.Model)
	})
	for _, name := range []string{"anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"} {
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			return anyllm.New(entry.Name, entry.Model)
		})
	}

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath, _ := entry.Options["model_path"].(string)
		return whisper.NewNative(modelPath, whisper.WithNativeLanguage(cfg.STT.Language))
	})
	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		return whisper.New(entry.BaseURL, whisper.WithLanguage(cfg.STT.Language))
	})

	return reg
}

// buildLLMProvider instantiates the configured default provider and wraps
// the remaining enabled providers as circuit-breaker-guarded fallbacks.
func buildLLMProvider(cfg *config.Config) (llm.Provider, error) {
	reg := newRegistry(cfg)

	ordered := orderedProviders(cfg)
	var primary llm.Provider
	var primaryName string
	var rest []config.ProviderEntry
	var firstErr error

	for i, entry := range ordered {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			slog.Warn("llm provider unavailable", "provider", entry.Name, "err", err)
			continue
		}
		primary = p
		primaryName = entry.Name
		rest = ordered[i+1:]
		break
	}
	if primary == nil {
		if firstErr == nil {
			firstErr = ferrors.New(ferrors.KindConfig, "app.buildLLMProvider", "no enabled llm provider")
		}
		return nil, firstErr
	}

	if len(rest) == 0 {
		return primary, nil
	}
	fallback := resilience.NewLLMFallback(primary, primaryName, resilience.FallbackConfig{})
	for _, entry := range rest {
		if p, err := reg.CreateLLM(entry); err == nil {
			fallback.AddFallback(entry.Name, p)
		}
	}
	return fallback, nil
}

// orderedProviders returns the enabled providers with the default first.
func orderedProviders(cfg *config.Config) []config.ProviderEntry {
	var out []config.ProviderEntry
	for _, p := range cfg.LLM.Providers {
		if p.Enabled && p.Name == cfg.LLM.DefaultProvider {
			out = append(out, p)
		}
	}
	for _, p := range cfg.LLM.Providers {
		if p.Enabled && p.Name != cfg.LLM.DefaultProvider {
			out = append(out, p)
		}
	}
	return out
}

func buildSTTProvider(cfg *config.Config) stt.Provider {
	reg := newRegistry(cfg)
	if p, err := reg.CreateSTT(cfg.STT.Provider); err == nil {
		return p
	} else {
		slog.Warn("no stt backend available; transcription disabled",
			"configured", cfg.STT.Provider.Name, "err", err)
	}
	return &sttmock.Provider{}
}

func defaultDataRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".fae")
}

func jsonStringField(args, field string) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(args), &m); err != nil {
		return ""
	}
	s, _ := m[field].(string)
	return s
}
