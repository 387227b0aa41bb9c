package service

import (
	"context"

	"github.com/ultrathink/discovery-web/internal/domain"
	"github.com/ultrathink/discovery-web/internal/session"
	"github.com/ultrathink/discovery-web/internal/validate"
	"github.com/ultrathink/discovery-web/pkg/log"
)

// DiscoveryService runs discovery pipelines for a session.
type DiscoveryService struct {
	orch     Orchestrator
	sessions *session.Manager
}

// NewDiscoveryService creates a new discovery service.
func NewDiscoveryService(orch Orchestrator, sessions *session.Manager) *DiscoveryService {
	return &DiscoveryService{orch: orch, sessions: sessions}
}

// Run validates req, runs the pipeline and lands the outcome in the
// session's discovery store. A successful result is also saved so it
// survives a reload.
func (s *DiscoveryService) Run(ctx context.Context, sess *session.Session, req domain.DiscoveryRequest) (*domain.DiscoveryResult, error) {
	req = req.WithDefaults()
	r := validate.TargetName(req.TargetName)
	if !r.Valid {
		return nil, invalid("target_name", r)
	}
	req.TargetName = r.Cleaned

	ctx = log.WithStr(ctx, log.FieldTarget, req.TargetName)
	l := log.Ctx(ctx)

	tk := sess.Discovery.Begin()
	res, err := s.orch.Discover(ctx, req)
	if err != nil {
		sess.Discovery.Fail(tk, storeError(err))
		return nil, err
	}
	if res.Target == "" {
		res.Target = req.TargetName
	}

	if !sess.Discovery.Succeed(tk, *res) {
		l.Debug().Msg("discovery result superseded by a newer request")
		return res, nil
	}

	if err := s.sessions.SaveDiscovery(ctx, sess, *res); err != nil {
		l.Warn().Err(err).Msg("failed to save discovery results")
	}

	l.Info().Int("candidates", len(res.TopCandidates)).Msg("discovery completed")
	return res, nil
}

// Clear forgets the session's discovery results, saved copies included.
func (s *DiscoveryService) Clear(ctx context.Context, sess *session.Session) error {
	return s.sessions.ClearDiscovery(ctx, sess)
}

// Targets lists the targets the orchestrator has candidates for.
func (s *DiscoveryService) Targets(ctx context.Context) (*domain.Targets, error) {
	return s.orch.Targets(ctx)
}
