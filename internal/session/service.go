package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentd/agentd/internal/backend"
	"github.com/agentd/agentd/internal/common/config"
	"github.com/agentd/agentd/internal/common/errors"
	"github.com/agentd/agentd/internal/common/logger"
	"github.com/agentd/agentd/internal/events/bus"
	"github.com/agentd/agentd/internal/model"
	"github.com/agentd/agentd/internal/runner"
	"github.com/agentd/agentd/internal/sandbox/docker"
	"github.com/agentd/agentd/internal/stream"
	"github.com/agentd/agentd/internal/tools"
	v1 "github.com/agentd/agentd/pkg/api/v1"
)

// ModelFactory builds the model client for a resolved catalog entry.
type ModelFactory func(info model.Info) model.Model

// CreateSessionRequest carries the options for a new session.
type CreateSessionRequest struct {
	Model        string   `json:"model"`
	Capabilities []string `json:"capabilities"`
	HITL         bool     `json:"hitl"`
	Sandboxed    bool     `json:"sandboxed"`
}

// Service implements the session lifecycle and turn protocol on top of
// the store, the runner, and the execution backends.
type Service struct {
	store       *Store
	checkpoints *runner.CheckpointStore
	docker      *docker.Client
	cfg         *config.Config
	models      ModelFactory
	bus         bus.EventBus
	logger      *logger.Logger
}

// NewService creates the session service. dockerClient may be nil when
// sandboxing is disabled; eventBus may be nil when no mirror is wired.
func NewService(store *Store, dockerClient *docker.Client, cfg *config.Config, models ModelFactory, eventBus bus.EventBus, log *logger.Logger) *Service {
	return &Service{
		store:       store,
		checkpoints: runner.NewCheckpointStore(),
		docker:      dockerClient,
		cfg:         cfg,
		models:      models,
		bus:         eventBus,
		logger:      log,
	}
}

// CreateSession provisions a session and its execution backend. When a
// sandbox is requested but cannot be built, the session falls back to a
// local shell backend and the failure is logged, not returned.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	alias := req.Model
	if alias == "" {
		alias = s.cfg.Agent.DefaultModel
	}
	info := model.Resolve(alias)

	id := uuid.New().String()
	log := s.logger.WithSessionID(id)

	var exec backend.Executor
	var sb *docker.Sandbox
	if req.Sandboxed && s.docker != nil {
		var err error
		sb, err = docker.NewSandbox(ctx, s.docker, s.cfg.Sandbox, id, s.cfg.Agent.CommandTimeoutDuration(), s.logger)
		if err != nil {
			log.Warn("sandbox unavailable, falling back to local shell", zap.Error(err))
		} else {
			exec = sb
		}
	}
	if exec == nil {
		root := filepath.Join(os.TempDir(), "agentd", id)
		shell, err := backend.NewLocalShell(root, s.cfg.Agent.CommandTimeoutDuration())
		if err != nil {
			return nil, errors.InternalError("failed to create session workspace", err)
		}
		exec = shell
	}

	registry := tools.NewRegistry()
	tools.RegisterFileTools(registry, exec)
	tools.RegisterExecTool(registry, exec)

	sess := &Session{
		ID:           id,
		Model:        info.Alias,
		Capabilities: req.Capabilities,
		HITL:         req.HITL,
		Sandboxed:    sb != nil,
		ThreadID:     uuid.New().String(),
		System:       model.BuildSystemPrompt(req.Capabilities, info.Alias),
		Backend:      exec,
		Sandbox:      sb,
		Runner:       runner.New(s.models(info), registry, s.checkpoints, req.HITL, s.cfg.Agent.MaxIterations, log),
		CreatedAt:    time.Now().UTC(),
		status:       v1.SessionStatusIdle,
	}
	s.store.Put(sess)

	log.Info("session created",
		zap.String("model", info.Alias),
		zap.Bool("hitl", req.HITL),
		zap.Bool("sandboxed", sess.Sandboxed))
	return sess, nil
}

// GetSession looks up a session by id.
func (s *Service) GetSession(id string) (*Session, error) {
	return s.store.Get(id)
}

// ListSessions returns all live sessions ordered by creation time.
func (s *Service) ListSessions() []*Session {
	return s.store.List()
}

// Models returns the model catalog.
func (s *Service) Models() []model.Info {
	return model.Catalog()
}

// SendMessage runs one turn: the user text is appended to the transcript
// and the agent loop executes until it completes, interrupts, or fails.
// Events are delivered to send as they occur; a failed turn terminates
// the stream with an error event rather than returning the failure.
func (s *Service) SendMessage(ctx context.Context, id, text string, send func(v1.Event)) error {
	sess, err := s.store.Get(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.pending != nil {
		return errors.Conflict("session has a pending interrupt awaiting decisions")
	}

	sess.status = v1.SessionStatusRunning
	sess.transcript = append(sess.transcript, v1.TranscriptMessage{Role: model.RoleUser, Content: text})

	tr := stream.NewTranslator(s.emitter(id, send))
	outcome, err := sess.Runner.Run(ctx, sess.ThreadID, sess.System, s.modelMessages(sess), tr.Handle)
	s.finishTurn(sess, tr, outcome, err)
	return nil
}

// SubmitDecisions resumes an interrupted turn. The decision list must
// resolve every pending action in order; a malformed list is rejected
// before any state changes.
func (s *Service) SubmitDecisions(ctx context.Context, id string, decisions []v1.Decision, send func(v1.Event)) error {
	sess, err := s.store.Get(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.pending == nil {
		return errors.BadRequest("session has no pending interrupt")
	}
	if len(decisions) != len(sess.pending.Requests) {
		return errors.BadRequest(fmt.Sprintf("decision count mismatch: got %d, expected %d", len(decisions), len(sess.pending.Requests)))
	}
	for _, d := range decisions {
		switch d.Action {
		case v1.DecisionApprove, v1.DecisionReject, v1.DecisionEdit:
		default:
			return errors.BadRequest(fmt.Sprintf("unknown decision action %q", d.Action))
		}
	}

	sess.pending = nil
	sess.status = v1.SessionStatusRunning

	tr := stream.NewTranslator(s.emitter(id, send))
	outcome, err := sess.Runner.Resume(ctx, sess.ThreadID, decisions, tr.Handle)
	s.finishTurn(sess, tr, outcome, err)
	return nil
}

// DeleteSession removes the session and releases its execution backend
// synchronously, even when a turn is in flight.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	sess, err := s.store.Remove(id)
	if err != nil {
		return err
	}
	sess.Release()
	s.checkpoints.Delete(sess.ThreadID)
	s.logger.WithSessionID(id).Info("session deleted")
	return nil
}

// finishTurn records the outcome of a run or resume and emits the
// terminal event. Caller holds sess.mu.
func (s *Service) finishTurn(sess *Session, tr *stream.Translator, outcome *runner.Outcome, err error) {
	if err != nil {
		sess.status = v1.SessionStatusIdle
		tr.Error(err.Error())
		return
	}
	if outcome.Interrupted {
		sess.pending = &PendingInterrupt{Requests: outcome.Requests, Reviews: outcome.Reviews}
		sess.status = v1.SessionStatusInterrupted
		tr.Interrupt(outcome.Requests, outcome.Reviews)
		return
	}
	sess.transcript = append(sess.transcript, v1.TranscriptMessage{Role: model.RoleAssistant, Content: outcome.Content})
	sess.status = v1.SessionStatusIdle
	tr.Done()
}

// modelMessages projects the transcript into model messages. Tool traffic
// lives in the runner's checkpoints, not the transcript, so only user and
// assistant entries appear here.
func (s *Service) modelMessages(sess *Session) []model.Message {
	msgs := make([]model.Message, 0, len(sess.transcript))
	for _, m := range sess.transcript {
		msgs = append(msgs, model.Message{Role: m.Role, Content: m.Content})
	}
	return msgs
}

// emitter wraps the caller's event sink with the optional bus mirror on
// the session's event subject.
func (s *Service) emitter(sessionID string, send func(v1.Event)) func(v1.Event) {
	subject := fmt.Sprintf("agentd.sessions.%s.events", sessionID)
	return func(ev v1.Event) {
		if send != nil {
			send(ev)
		}
		if s.bus == nil {
			return
		}
		evt := bus.NewEvent(string(ev.EventType()), "agentd", map[string]interface{}{"payload": ev})
		if err := s.bus.Publish(context.Background(), subject, evt); err != nil {
			s.logger.Warn("failed to mirror event", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
}
