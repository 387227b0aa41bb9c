package service

import (
	"context"
	"strings"

	"github.com/ultrathink/discovery-web/internal/domain"
	"github.com/ultrathink/discovery-web/internal/session"
	"github.com/ultrathink/discovery-web/internal/validate"
	"github.com/ultrathink/discovery-web/pkg/log"
)

// ProteinService predicts protein structures for a session.
type ProteinService struct {
	orch Orchestrator
}

// NewProteinService creates a new protein service.
func NewProteinService(orch Orchestrator) *ProteinService {
	return &ProteinService{orch: orch}
}

// Predict validates the sequence and forwards the cleaned form.
func (s *ProteinService) Predict(ctx context.Context, sess *session.Session, req domain.ProteinRequest) (*domain.ProteinStructure, error) {
	r := validate.ProteinSequence(req.Sequence)
	if !r.Valid {
		return nil, invalid("sequence", r)
	}
	req.Sequence = r.Cleaned
	req.ProteinName = strings.TrimSpace(req.ProteinName)

	l := log.Ctx(ctx)

	tk := sess.Protein.Begin()
	res, err := s.orch.PredictStructure(ctx, req)
	if err != nil {
		sess.Protein.Fail(tk, storeError(err))
		return nil, err
	}
	if res.ProteinName == "" {
		res.ProteinName = req.ProteinName
	}
	if res.SequenceLength == 0 {
		res.SequenceLength = len(req.Sequence)
	}

	if !sess.Protein.Succeed(tk, *res) {
		l.Debug().Msg("protein result superseded by a newer request")
		return res, nil
	}

	l.Info().Str("method", res.Method).Int("sequence_length", res.SequenceLength).Msg("structure predicted")
	return res, nil
}
