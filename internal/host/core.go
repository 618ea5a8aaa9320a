package host

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	ferrors "github.com/saorsa-labs/fae/internal/errors"
	"github.com/saorsa-labs/fae/internal/onboarding"
	"github.com/saorsa-labs/fae/pkg/types"
)

// PipelineController is the slice of the pipeline coordinator the command
// channel drives.
type PipelineController interface {
	// Start launches a pipeline run in the named mode ("conversation" or
	// "transcribe_only"). Starting while running is an error.
	Start(mode string) error

	// Stop shuts the current run down and waits for resources to release.
	Stop() error

	// CancelRun flips the shared cancellation flag without waiting.
	CancelRun()
}

// DeviceLister enumerates audio devices for device.list.
type DeviceLister interface {
	ListInputDevices() ([]string, error)
	ListOutputDevices() ([]string, error)
}

// PermissionStore persists permission grant decisions.
type PermissionStore interface {
	// SetState records the state for kind.
	SetState(kind types.PermissionKind, state types.PermissionState) error

	// States returns the current grant map keyed by wire string.
	States() map[string]string
}

// SkillInfo describes one installed skill for skill.list and health
// reporting.
type SkillInfo struct {
	Name    string `json:"name"`
	Source  string `json:"source"`
	Healthy bool   `json:"healthy"`
}

// SkillManager manages the peripheral skill registry. The core ships an
// in-memory implementation; hosts with a real skill runtime substitute their
// own.
type SkillManager interface {
	Install(name, source string) error
	List() []SkillInfo
	Generate(ctx context.Context, description string) (SkillInfo, error)
	HealthCheck(ctx context.Context) error
	HealthStatus() map[string]any
}

// Core wires the minimum command set onto a [Channel]. Collaborators are
// optional: commands whose collaborator is absent answer with a stable
// error instead of being unregistered, so hosts can always distinguish
// "unsupported here" from "unknown command".
type Core struct {
	channel     *Channel
	pipeline    PipelineController
	devices     DeviceLister
	permissions PermissionStore
	onboard     *onboarding.Machine
	skills      SkillManager
}

// CoreOption configures a Core during construction.
type CoreOption func(*Core)

// WithPipeline attaches the pipeline controller.
func WithPipeline(p PipelineController) CoreOption {
	return func(c *Core) { c.pipeline = p }
}

// WithDevices attaches the audio device lister.
func WithDevices(d DeviceLister) CoreOption {
	return func(c *Core) { c.devices = d }
}

// WithPermissions attaches the permission store.
func WithPermissions(p PermissionStore) CoreOption {
	return func(c *Core) { c.permissions = p }
}

// WithOnboarding attaches the onboarding state machine.
func WithOnboarding(m *onboarding.Machine) CoreOption {
	return func(c *Core) { c.onboard = m }
}

// WithSkills replaces the default in-memory skill manager.
func WithSkills(s SkillManager) CoreOption {
	return func(c *Core) { c.skills = s }
}

// NewCore builds a Core over channel and registers every command.
func NewCore(channel *Channel, opts ...CoreOption) *Core {
	c := &Core{
		channel: channel,
		skills:  newMemorySkills(),
	}
	for _, o := range opts {
		o(c)
	}
	c.register()
	return c
}

// Channel returns the underlying command channel.
func (c *Core) Channel() *Channel { return c.channel }

func (c *Core) register() {
	ch := c.channel

	ch.Register("host.ping", func(context.Context, json.RawMessage) (map[string]any, error) {
		return map[string]any{"pong": true}, nil
	})

	ch.Register("device.list", c.handleDeviceList)
	ch.Register("device.go_home", func(context.Context, json.RawMessage) (map[string]any, error) {
		ch.EmitEvent(NewEvent("device.home_requested", nil))
		return map[string]any{}, nil
	})

	ch.Register("pipeline.start", c.handlePipelineStart)
	ch.Register("pipeline.stop", c.handlePipelineStop)
	ch.Register("pipeline.cancel", c.handlePipelineCancel)

	ch.Register("onboarding.get_state", c.handleOnboardingGetState)
	ch.Register("onboarding.advance", c.handleOnboardingAdvance)
	ch.Register("onboarding.complete", c.handleOnboardingComplete)

	ch.Register("permission.grant", c.permissionHandler(types.PermissionGranted))
	ch.Register("permission.deny", c.permissionHandler(types.PermissionDenied))
	ch.Register("permission.status", c.handlePermissionStatus)

	ch.Register("skill.install", c.handleSkillInstall)
	ch.Register("skill.list", c.handleSkillList)
	ch.Register("skill.generate", c.handleSkillGenerate)
	ch.Register("skill.health_check", c.handleSkillHealthCheck)
	ch.Register("skill.health_status", c.handleSkillHealthStatus)
}

// ── Device commands ───────────────────────────────────────────────────────────

func (c *Core) handleDeviceList(context.Context, json.RawMessage) (map[string]any, error) {
	if c.devices == nil {
		return nil, ferrors.New(ferrors.KindNotFound, "host.device.list", "no audio platform attached")
	}
	inputs, err := c.devices.ListInputDevices()
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindPipeline, "host.device.list", "list input devices", err)
	}
	outputs, err := c.devices.ListOutputDevices()
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindPipeline, "host.device.list", "list output devices", err)
	}
	return map[string]any{"inputs": inputs, "outputs": outputs}, nil
}

// ── Pipeline commands ─────────────────────────────────────────────────────────

type pipelineStartPayload struct {
	Mode string `json:"mode"`
}

func (c *Core) handlePipelineStart(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	if c.pipeline == nil {
		return nil, ferrors.New(ferrors.KindNotFound, "host.pipeline.start", "no pipeline attached")
	}
	var payload pipelineStartPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, ferrors.Wrap(ferrors.KindParse, "host.pipeline.start", "malformed payload", err)
		}
	}
	if payload.Mode == "" {
		payload.Mode = "conversation"
	}
	if err := c.pipeline.Start(payload.Mode); err != nil {
		return nil, err
	}
	return map[string]any{"mode": payload.Mode}, nil
}

func (c *Core) handlePipelineStop(context.Context, json.RawMessage) (map[string]any, error) {
	if c.pipeline == nil {
		return nil, ferrors.New(ferrors.KindNotFound, "host.pipeline.stop", "no pipeline attached")
	}
	if err := c.pipeline.Stop(); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func (c *Core) handlePipelineCancel(context.Context, json.RawMessage) (map[string]any, error) {
	if c.pipeline == nil {
		return nil, ferrors.New(ferrors.KindNotFound, "host.pipeline.cancel", "no pipeline attached")
	}
	c.pipeline.CancelRun()
	return map[string]any{}, nil
}

// ── Onboarding commands ───────────────────────────────────────────────────────

func (c *Core) handleOnboardingGetState(context.Context, json.RawMessage) (map[string]any, error) {
	if c.onboard == nil {
		return nil, ferrors.New(ferrors.KindNotFound, "host.onboarding", "no onboarding state attached")
	}
	return map[string]any{"phase": c.onboard.State().String()}, nil
}

func (c *Core) handleOnboardingAdvance(context.Context, json.RawMessage) (map[string]any, error) {
	if c.onboard == nil {
		return nil, ferrors.New(ferrors.KindNotFound, "host.onboarding", "no onboarding state attached")
	}
	next, err := c.onboard.Advance()
	if err != nil {
		return nil, err
	}
	return map[string]any{"phase": next.String()}, nil
}

func (c *Core) handleOnboardingComplete(context.Context, json.RawMessage) (map[string]any, error) {
	if c.onboard == nil {
		return nil, ferrors.New(ferrors.KindNotFound, "host.onboarding", "no onboarding state attached")
	}
	phase, err := c.onboard.Complete()
	if err != nil {
		return nil, err
	}
	return map[string]any{"phase": phase.String()}, nil
}

// ── Permission commands ───────────────────────────────────────────────────────

type permissionPayload struct {
	Kind string `json:"kind"`
}

func (c *Core) permissionHandler(state types.PermissionState) HandlerFunc {
	return func(_ context.Context, raw json.RawMessage) (map[string]any, error) {
		if c.permissions == nil {
			return nil, ferrors.New(ferrors.KindNotFound, "host.permission", "no permission store attached")
		}
		var payload permissionPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, ferrors.Wrap(ferrors.KindParse, "host.permission", "malformed payload", err)
		}
		kind := types.PermissionKind(payload.Kind)
		if !kind.IsValid() {
			return nil, ferrors.New(ferrors.KindParse, "host.permission", "unknown permission kind: "+payload.Kind)
		}
		if err := c.permissions.SetState(kind, state); err != nil {
			return nil, err
		}
		return map[string]any{"kind": payload.Kind, "state": string(state)}, nil
	}
}

func (c *Core) handlePermissionStatus(context.Context, json.RawMessage) (map[string]any, error) {
	if c.permissions == nil {
		return nil, ferrors.New(ferrors.KindNotFound, "host.permission", "no permission store attached")
	}
	return map[string]any{"grants": c.permissions.States()}, nil
}

// ── Skill commands ────────────────────────────────────────────────────────────

type skillInstallPayload struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

func (c *Core) handleSkillInstall(_ context.Context, raw json.RawMessage) (map[string]any, error) {
	var payload skillInstallPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ferrors.Wrap(ferrors.KindParse, "host.skill.install", "malformed payload", err)
	}
	if err := c.skills.Install(payload.Name, payload.Source); err != nil {
		return nil, err
	}
	return map[string]any{"name": payload.Name}, nil
}

func (c *Core) handleSkillList(context.Context, json.RawMessage) (map[string]any, error) {
	return map[string]any{"skills": c.skills.List()}, nil
}

type skillGeneratePayload struct {
	Description string `json:"description"`
}

func (c *Core) handleSkillGenerate(ctx context.Context, raw json.RawMessage) (map[string]any, error) {
	var payload skillGeneratePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ferrors.Wrap(ferrors.KindParse, "host.skill.generate", "malformed payload", err)
	}
	info, err := c.skills.Generate(ctx, payload.Description)
	if err != nil {
		return nil, err
	}
	return map[string]any{"skill": info}, nil
}

func (c *Core) handleSkillHealthCheck(ctx context.Context, _ json.RawMessage) (map[string]any, error) {
	if err := c.skills.HealthCheck(ctx); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func (c *Core) handleSkillHealthStatus(context.Context, json.RawMessage) (map[string]any, error) {
	return c.skills.HealthStatus(), nil
}

// ── In-memory skill manager ──────────────────────────────────────────────────

// memorySkills is the default [SkillManager]: it tracks installs and health
// in process memory and has no generation backend.
type memorySkills struct {
	mu     sync.Mutex
	skills map[string]SkillInfo
}

func newMemorySkills() *memorySkills {
	return &memorySkills{skills: make(map[string]SkillInfo)}
}

func (m *memorySkills) Install(name, source string) error {
	if name == "" {
		return ferrors.New(ferrors.KindParse, "host.skill.install", "skill name must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skills[name] = SkillInfo{Name: name, Source: source, Healthy: true}
	return nil
}

func (m *memorySkills) List() []SkillInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SkillInfo, 0, len(m.skills))
	for _, s := range m.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *memorySkills) Generate(context.Context, string) (SkillInfo, error) {
	return SkillInfo{}, ferrors.New(ferrors.KindNotFound, "host.skill.generate", "no skill generation backend attached")
}

func (m *memorySkills) HealthCheck(context.Context) error {
	// In-process skills have nothing to probe.
	return nil
}

func (m *memorySkills) HealthStatus() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	healthy := 0
	for _, s := range m.skills {
		if s.Healthy {
			healthy++
		}
	}
	return map[string]any{"installed": len(m.skills), "healthy": healthy}
}
