package takarakuji

import (
	"context"
	"sync"
	"time"
)

// Service is the ticket checking facade. It resolves draws through the
// cache and hands tickets to the per-game match engines.
type Service struct {
	cache  *DrawCache
	config *Config
	logger Logger
	mu     sync.RWMutex // protects history recorder swaps

	monitor *PerformanceMonitor
	history HistoryRecorder
}

var _ TicketChecker = (*Service)(nil)

// NewService creates a service over the given draw source with default
// configuration.
func NewService(source DrawSource) *Service {
	return NewServiceWithConfigAndLogger(source, DefaultConfig(), &DefaultLogger{})
}

// NewServiceWithConfig creates a service with custom configuration.
func NewServiceWithConfig(source DrawSource, config *Config) *Service {
	return NewServiceWithConfigAndLogger(source, config, &DefaultLogger{})
}

// NewServiceWithLogger creates a service with a custom logger.
func NewServiceWithLogger(source DrawSource, logger Logger) *Service {
	return NewServiceWithConfigAndLogger(source, DefaultConfig(), logger)
}

// NewServiceWithConfigAndLogger creates a service with custom
// configuration and logger.
func NewServiceWithConfigAndLogger(source DrawSource, config *Config, logger Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = &DefaultLogger{}
	}

	return &Service{
		cache:   NewDrawCache(source, config.Cache, logger),
		config:  config,
		logger:  logger,
		monitor: NewPerformanceMonitor(),
	}
}

// SetHistoryRecorder attaches a recorder for finished checks. Passing
// nil turns recording off.
func (s *Service) SetHistoryRecorder(recorder HistoryRecorder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = recorder
}

// GetConfig returns a copy of the service configuration.
func (s *Service) GetConfig() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	configCopy := *s.config
	return &configCopy
}

// CheckTicket evaluates one ticket against a draw. Period 0 means the
// latest published draw.
func (s *Service) CheckTicket(ctx context.Context, req CheckRequest) (*TicketResult, error) {
	s.logger.Debug("CheckTicket called with game=%s, period=%d", req.Game, req.Period)
	startTime := time.Now()

	// Validation happens before any provider traffic.
	if err := req.Validate(); err != nil {
		s.logger.Error("CheckTicket validation failed: %v", err)
		s.monitor.RecordCheck(false, false, 0, time.Since(startTime))
		return nil, err
	}

	draw, err := s.cache.GetDraw(ctx, req.Game, req.Period)
	if err != nil {
		s.logger.Error("CheckTicket draw lookup failed: game=%s, period=%d, error=%v", req.Game, req.Period, err)
		s.monitor.RecordCheck(false, false, 0, time.Since(startTime))
		return nil, err
	}

	result, err := s.checkOne(draw, &req.Ticket)
	if err != nil {
		s.logger.Error("CheckTicket evaluation failed: game=%s, period=%d, error=%v", req.Game, draw.Period, err)
		s.monitor.RecordCheck(false, false, 0, time.Since(startTime))
		return nil, err
	}

	s.monitor.RecordCheck(true, result.Winning, 1, time.Since(startTime))
	s.recordHistory(ctx, result)

	s.logger.Info("CheckTicket completed: game=%s, period=%d, winning=%t, total=%s",
		req.Game, draw.Period, result.Winning, result.TotalDisplay())
	return result, nil
}

// CheckTickets evaluates a batch of tickets against the same draw and
// aggregates the winnings.
func (s *Service) CheckTickets(ctx context.Context, req BatchCheckRequest) (*CheckSummary, error) {
	s.logger.Debug("CheckTickets called with game=%s, period=%d, tickets=%d", req.Game, req.Period, len(req.Tickets))
	startTime := time.Now()

	if err := req.Validate(); err != nil {
		s.logger.Error("CheckTickets validation failed: %v", err)
		s.monitor.RecordCheck(false, false, 0, time.Since(startTime))
		return nil, err
	}

	draw, err := s.cache.GetDraw(ctx, req.Game, req.Period)
	if err != nil {
		s.logger.Error("CheckTickets draw lookup failed: game=%s, period=%d, error=%v", req.Game, req.Period, err)
		s.monitor.RecordCheck(false, false, 0, time.Since(startTime))
		return nil, err
	}

	summary := &CheckSummary{
		Game:       req.Game,
		Period:     draw.Period,
		Draw:       draw,
		Results:    make([]TicketResult, 0, len(req.Tickets)),
		Tickets:    len(req.Tickets),
		TotalKnown: true,
	}

	for i := range req.Tickets {
		result, err := s.checkOne(draw, &req.Tickets[i])
		if err != nil {
			s.logger.Error("CheckTickets evaluation failed at ticket %d: %v", i+1, err)
			s.monitor.RecordCheck(false, false, 0, time.Since(startTime))
			return nil, err
		}

		summary.Results = append(summary.Results, *result)
		if result.Winning {
			summary.Wins++
			summary.TotalYen += result.TotalYen
		}
		if !result.TotalKnown {
			summary.TotalKnown = false
		}
		s.recordHistory(ctx, result)
	}

	s.monitor.RecordCheck(true, summary.Wins > 0, summary.Tickets, time.Since(startTime))
	s.logger.Info("CheckTickets completed: game=%s, period=%d, %s", req.Game, draw.Period, summary.Summary())
	return summary, nil
}

// Draw returns the parsed draw for a specific period. Period 0 means
// the latest published draw. This is the read-only lookup path used by
// the result browser; no ticket is involved.
func (s *Service) Draw(ctx context.Context, game Game, period int) (*Draw, error) {
	s.logger.Debug("Draw called with game=%s, period=%d", game, period)
	return s.cache.GetDraw(ctx, game, period)
}

// LatestDraw returns the most recent published draw for a game.
func (s *Service) LatestDraw(ctx context.Context, game Game) (*Draw, error) {
	s.logger.Debug("LatestDraw called with game=%s", game)
	return s.cache.GetLatestDraw(ctx, game)
}

// QuickPick generates a random ticket for a selection game.
func (s *Service) QuickPick(game Game) (*Ticket, error) {
	spec, err := game.Spec()
	if err != nil {
		return nil, err
	}

	generator := NewSecureTicketGenerator()
	ticket, err := generator.GenerateTicket(spec)
	if err != nil {
		s.logger.Error("QuickPick generation failed for %s: %v", game, err)
		return nil, err
	}

	s.logger.Debug("QuickPick generated for %s: %s", game, ticket.String())
	return ticket, nil
}

// checkOne dispatches a validated ticket to the game family's engine.
func (s *Service) checkOne(draw *Draw, ticket *Ticket) (*TicketResult, error) {
	spec, err := draw.Game.Spec()
	if err != nil {
		return nil, err
	}

	if spec.Kind == KindSelection {
		return CheckSelectionTicket(spec, draw, ticket)
	}
	return CheckTraditionalTicket(spec, draw, ticket)
}

// recordHistory hands a finished result to the recorder, if one is
// attached. Failures are logged and counted, never propagated.
func (s *Service) recordHistory(ctx context.Context, result *TicketResult) {
	s.mu.RLock()
	recorder := s.history
	s.mu.RUnlock()

	if recorder == nil {
		return
	}
	if err := recorder.RecordResult(ctx, result); err != nil {
		s.monitor.RecordRedisError()
		s.logger.Error("history recording failed: %v", err)
	}
}

// InvalidateLatest forces the next latest-draw request for a game to
// reconfirm with the provider.
func (s *Service) InvalidateLatest(game Game) {
	s.cache.InvalidateLatest(game)
	s.logger.Info("latest pointer invalidated for %s", game)
}

// PurgeCache drops every cached draw.
func (s *Service) PurgeCache() {
	s.cache.Purge()
	s.logger.Info("draw cache purged")
}

// CacheStats reports draw cache occupancy and traffic.
func (s *Service) CacheStats() map[string]any {
	return s.cache.Stats()
}

// GetPerformanceMetrics returns a copy of the current check metrics.
func (s *Service) GetPerformanceMetrics() PerformanceMetrics {
	return s.monitor.GetMetrics()
}

// ResetPerformanceMetrics restarts the metrics collection window.
func (s *Service) ResetPerformanceMetrics() {
	s.monitor.ResetMetrics()
}

// EnablePerformanceMonitoring turns metric recording on.
func (s *Service) EnablePerformanceMonitoring() {
	s.monitor.Enable()
}

// DisablePerformanceMonitoring turns metric recording off.
func (s *Service) DisablePerformanceMonitoring() {
	s.monitor.Disable()
}

// HealthCheck reports the service's moving parts for the health
// endpoint.
func (s *Service) HealthCheck() map[string]any {
	metrics := s.monitor.GetMetrics()
	return map[string]any{
		"status": "healthy",
		"cache":  s.cache.Stats(),
		"checks": map[string]any{
			"total":        metrics.TotalChecks,
			"failed":       metrics.FailedChecks,
			"success_rate": metrics.GetSuccessRate(),
			"win_rate":     metrics.GetWinRate(),
			"throughput":   metrics.GetThroughput(),
		},
	}
}
