package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ultrathink/discovery-web/internal/domain"
	"github.com/ultrathink/discovery-web/internal/session"
	"github.com/ultrathink/discovery-web/pkg/log"
)

// Backend services whose reachability is reported.
const (
	ServiceOrchestrator = "orchestrator"
	ServiceSmartChem    = "smartchem"
	ServiceBioNeMo      = "bionemo"
)

const statusCheckTimeout = 5 * time.Second

// StatusService checks which backend services are reachable.
type StatusService struct {
	orch Orchestrator
	now  func() time.Time
}

// NewStatusService creates a new status service.
func NewStatusService(orch Orchestrator) *StatusService {
	return &StatusService{orch: orch, now: time.Now}
}

// Check polls every backend in parallel and lands the result in the
// session's connection store. An unreachable service is reported as
// offline, not as a failure.
func (s *StatusService) Check(ctx context.Context, sess *session.Session) domain.ConnectionStatus {
	tk := sess.Connection.Begin()
	status := s.collect(ctx)
	sess.Connection.Succeed(tk, status)
	return status
}

func (s *StatusService) collect(ctx context.Context) domain.ConnectionStatus {
	ctx, cancel := context.WithTimeout(ctx, statusCheckTimeout)
	defer cancel()

	l := log.Ctx(ctx)
	var mu sync.Mutex
	status := domain.ConnectionStatus{}

	set := func(target *domain.ServiceState, state domain.ServiceState) {
		mu.Lock()
		*target = state
		mu.Unlock()
	}

	var g errgroup.Group

	g.Go(func() error {
		state := domain.ServiceState{Name: ServiceOrchestrator, Status: domain.StatusOnline}
		if _, err := s.orch.Health(ctx); err != nil {
			state.Status = domain.StatusOffline
			state.Error = storeError(err).Message
			l.Debug().Err(err).Msg("orchestrator health check failed")
		}
		set(&status.Orchestrator, state)
		return nil
	})

	for _, name := range []string{ServiceSmartChem, ServiceBioNeMo} {
		name := name
		g.Go(func() error {
			state, err := s.orch.ServiceStatus(ctx, name)
			if err != nil {
				state = domain.ServiceState{Name: name, Status: domain.StatusOffline, Error: storeError(err).Message}
				l.Debug().Err(err).Str(log.FieldUpstream, name).Msg("service status check failed")
			}
			if name == ServiceSmartChem {
				set(&status.SmartChem, state)
			} else {
				set(&status.BioNeMo, state)
			}
			return nil
		})
	}

	_ = g.Wait()
	status.CheckedAt = s.now()
	return status
}
