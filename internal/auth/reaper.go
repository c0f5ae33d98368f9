package auth

import "time"

// runReaper periodically sweeps expired authorization codes and access
// tokens. The sweep is hygiene only: lazy expiry checks at exchange and
// validation time already reject stale entries, so the interval bounds
// memory growth rather than correctness. Started at construction, stopped by
// Shutdown.
func (s *Server) runReaper() {
	defer close(s.reaperDone)

	ticker := time.NewTicker(s.config.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepExpired()
		case <-s.reaperStop:
			return
		}
	}
}

// sweepExpired runs a single sweep over both stores.
func (s *Server) sweepExpired() {
	codes := s.codes.DeleteExpired()
	tokens := s.tokens.DeleteExpired()

	if codes > 0 || tokens > 0 {
		s.logger.Info("Expiry sweep completed",
			"codes_deleted", codes,
			"tokens_deleted", tokens,
		)
		if s.config.OnReaped != nil {
			s.config.OnReaped(codes + tokens)
		}
	}
}
