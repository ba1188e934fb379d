// Package web serves the ticket checking frontend: the check form, the
// winning-number browser, the admin dashboard and the operational
// endpoints.
package web

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"takarakuji"
	"takarakuji/internal/history"
)

//go:embed templates/*.html
var templateFS embed.FS

// adminRecentSearches is how many history records the dashboard shows.
const adminRecentSearches = 25

// Server wires the checker service into an HTTP frontend.
type Server struct {
	checker   *takarakuji.Service
	config    *takarakuji.Config
	logger    takarakuji.Logger
	history   *history.Store
	templates *template.Template

	tracker *TrafficTracker
	limiter *RateLimiter
	guard   *ScanGuard

	httpServer *http.Server

	statsMu    sync.Mutex
	lastHits   int64
	lastMisses int64
}

// NewServer builds the frontend over an assembled checker. The history
// store may be nil; the dashboard then shows no recent searches.
func NewServer(checker *takarakuji.Service, config *takarakuji.Config, hist *history.Store, logger takarakuji.Logger) (*Server, error) {
	if config == nil {
		config = takarakuji.DefaultConfig()
	}
	if logger == nil {
		logger = &takarakuji.DefaultLogger{}
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		checker:   checker,
		config:    config,
		logger:    logger,
		history:   hist,
		templates: templates,
		tracker:   NewTrafficTracker(),
		limiter:   NewRateLimiter(config.Server.RateLimitRPS, config.Server.RateLimitBurst),
		guard:     NewScanGuard(),
	}

	gin.SetMode(config.Server.Mode)
	s.httpServer = &http.Server{
		Addr:         config.Server.Addr,
		Handler:      s.Router(),
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}
	return s, nil
}

// Router assembles the gin engine with the full middleware chain.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.guard.Middleware())
	router.Use(s.limiter.Middleware())
	router.Use(s.tracker.Middleware())
	router.Use(InstrumentMiddleware())

	router.GET("/", s.handleIndex)
	router.POST("/", s.handleCheck)
	router.GET("/results", s.handleResults)
	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(MetricsHandler()))

	if s.config.Server.AdminUser != "" {
		admin := router.Group("/admin", gin.BasicAuth(gin.Accounts{
			s.config.Server.AdminUser: s.config.Server.AdminPassword,
		}))
		admin.GET("", s.handleAdmin)
	}

	return router
}

// ListenAndServe runs the HTTP server until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("web server listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops listening.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// clientIP resolves the caller's address, trusting the first hop of
// X-Forwarded-For when a proxy filled it in.
func clientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}
	return c.Request.RemoteAddr
}

// renderPage executes the content template into a buffer, then hands
// the rendered fragment to the layout.
func (s *Server) renderPage(c *gin.Context, status int, contentTmpl, title string, data gin.H) {
	buf := new(bytes.Buffer)
	if err := s.templates.ExecuteTemplate(buf, contentTmpl, data); err != nil {
		s.logger.Error("template %s failed: %v", contentTmpl, err)
		c.String(http.StatusInternalServerError, "template rendering error")
		return
	}

	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	err := s.templates.ExecuteTemplate(c.Writer, "layout.html", gin.H{
		"title":       title,
		"PageContent": template.HTML(buf.String()),
	})
	if err != nil {
		s.logger.Error("layout template failed: %v", err)
	}
}

// resultView is one results-table row, preformatted for the template.
type resultView struct {
	Ticket  string
	Winning bool
	Outcome string
	Total   string
}

func newResultView(r *takarakuji.TicketResult) resultView {
	view := resultView{
		Ticket:  r.Ticket.String(),
		Winning: r.Winning,
		Outcome: "はずれ",
		Total:   r.TotalDisplay(),
	}
	if !r.Winning {
		return view
	}
	if r.Rank != "" {
		view.Outcome = r.Rank
		return view
	}
	labels := make([]string, 0, len(r.Hits))
	for _, hit := range r.Hits {
		labels = append(labels, hit.Label)
	}
	view.Outcome = strings.Join(labels, "、")
	return view
}

func (s *Server) handleIndex(c *gin.Context) {
	s.renderPage(c, http.StatusOK, "index.html", "当せん確認", gin.H{
		"Games":       takarakuji.Games(),
		"FormGame":    string(takarakuji.GameLoto6),
		"FormPeriod":  "",
		"FormTickets": "",
	})
}

func (s *Server) handleCheck(c *gin.Context) {
	gameRaw := c.PostForm("game")
	periodRaw := strings.TrimSpace(c.PostForm("period"))
	ticketsRaw := c.PostForm("tickets")

	form := gin.H{
		"Games":       takarakuji.Games(),
		"FormGame":    gameRaw,
		"FormPeriod":  periodRaw,
		"FormTickets": ticketsRaw,
	}

	game, err := takarakuji.ParseGame(gameRaw)
	if err != nil {
		s.renderError(c, form, err)
		return
	}
	spec, err := game.Spec()
	if err != nil {
		s.renderError(c, form, err)
		return
	}

	period := 0
	if periodRaw != "" {
		period, err = strconv.Atoi(periodRaw)
		if err != nil {
			s.renderError(c, form, takarakuji.ErrInvalidPeriod.WithDetailsf("period %q is not a number", periodRaw))
			return
		}
	}

	tickets, err := parseTicketLines(spec, ticketsRaw)
	if err != nil {
		s.renderError(c, form, err)
		return
	}

	ctx := history.WithClientIP(c.Request.Context(), clientIP(c))
	start := time.Now()
	summary, err := s.checker.CheckTickets(ctx, takarakuji.BatchCheckRequest{
		Game:    game,
		Period:  period,
		Tickets: tickets,
	})
	RecordDrawLookup(string(game), time.Since(start), err)
	s.syncCacheMetrics()
	if err != nil {
		s.renderError(c, form, err)
		return
	}

	views := make([]resultView, 0, len(summary.Results))
	for i := range summary.Results {
		result := &summary.Results[i]
		RecordTicketCheck(string(result.Game), result.Winning)
		views = append(views, newResultView(result))
	}

	form["Summary"] = summary
	form["Results"] = views
	form["DrawTitle"] = summary.Draw.Title
	form["SummaryLine"] = summary.Summary()
	s.renderPage(c, http.StatusOK, "index.html", "確認結果", form)
}

func (s *Server) handleResults(c *gin.Context) {
	gameRaw := c.DefaultQuery("game", string(takarakuji.GameJumbo))
	periodRaw := strings.TrimSpace(c.Query("period"))

	data := gin.H{
		"Games":        takarakuji.Games(),
		"SelectedGame": gameRaw,
		"FormPeriod":   periodRaw,
	}

	game, err := takarakuji.ParseGame(gameRaw)
	if err != nil {
		s.renderResultsError(c, data, err)
		return
	}

	period := 0
	if periodRaw != "" {
		period, err = strconv.Atoi(periodRaw)
		if err != nil {
			s.renderResultsError(c, data, takarakuji.ErrInvalidPeriod.WithDetailsf("period %q is not a number", periodRaw))
			return
		}
	}

	start := time.Now()
	draw, err := s.checker.Draw(c.Request.Context(), game, period)
	RecordDrawLookup(string(game), time.Since(start), err)
	s.syncCacheMetrics()
	if err != nil {
		s.renderResultsError(c, data, err)
		return
	}

	data["Draw"] = draw
	s.renderPage(c, http.StatusOK, "results.html", "当せん番号", data)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleAdmin(c *gin.Context) {
	var recent []history.Record
	if s.history != nil {
		var err error
		recent, err = s.history.Recent(c.Request.Context(), adminRecentSearches)
		if err != nil {
			s.logger.Error("admin history read failed: %v", err)
		}
	}

	metrics := s.checker.GetPerformanceMetrics()
	cacheStats := s.checker.CacheStats()

	s.renderPage(c, http.StatusOK, "admin.html", "ダッシュボード", gin.H{
		"Traffic":     s.tracker.Snapshot(),
		"Recent":      recent,
		"CachedDraws": cacheStats["cached_draws"],
		"TotalChecks": metrics.TotalChecks,
	})
}

// renderError maps a checker error onto the form page with the right
// status code.
func (s *Server) renderError(c *gin.Context, form gin.H, err error) {
	status, message := s.mapError(c, err)
	form["Error"] = message
	s.renderPage(c, status, "index.html", "当せん確認", form)
}

func (s *Server) renderResultsError(c *gin.Context, data gin.H, err error) {
	status, message := s.mapError(c, err)
	data["Error"] = message
	s.renderPage(c, status, "results.html", "当せん番号", data)
}

// mapError turns the error taxonomy into HTTP semantics. Fetch trouble
// is the provider's fault and retryable; parse trouble means the
// provider changed its format and retrying will not help.
func (s *Server) mapError(c *gin.Context, err error) (int, string) {
	switch {
	case takarakuji.IsValidationError(err):
		s.logger.Debug("rejected input: %v", err)
		return http.StatusBadRequest, err.Error()
	case takarakuji.IsNotFoundError(err):
		s.logger.Info("draw not found: %v", err)
		return http.StatusNotFound, "指定された回号の抽せん結果が見つかりません。"
	case takarakuji.IsFetchError(err):
		s.logger.Error("provider unreachable: %v", err)
		c.Header("Retry-After", "60")
		return http.StatusServiceUnavailable, "結果の取得に失敗しました。しばらくしてからもう一度お試しください。"
	case takarakuji.IsParseError(err):
		s.logger.Error("format drift: %v", err)
		return http.StatusBadGateway, "提供元のデータ形式が変わった可能性があります。"
	default:
		s.logger.Error("internal error: %v", err)
		return http.StatusInternalServerError, "内部エラーが発生しました。"
	}
}

// parseTicketLines reads the textarea, one ticket per line. Selection
// lines carry picked numbers; traditional lines carry group and serial.
func parseTicketLines(spec *takarakuji.GameSpec, raw string) ([]takarakuji.Ticket, error) {
	var tickets []takarakuji.Ticket

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(tickets) >= takarakuji.MaxBatchTickets {
			return nil, takarakuji.ErrInvalidParameters.WithDetailsf("at most %d tickets per check", takarakuji.MaxBatchTickets)
		}

		var (
			ticket takarakuji.Ticket
			err    error
		)
		if spec.Kind == takarakuji.KindSelection {
			ticket, err = takarakuji.ParseSelectionTicket(spec, line)
		} else {
			group, serial, splitErr := splitTraditionalLine(line)
			if splitErr != nil {
				return nil, splitErr
			}
			ticket, err = takarakuji.ParseTraditionalTicket(spec, group, serial)
		}
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}

	if len(tickets) == 0 {
		return nil, takarakuji.ErrInvalidTicket.WithDetails("no tickets entered")
	}
	return tickets, nil
}

// splitTraditionalLine separates "16組 139476" (or "16 139476") into
// its group and serial halves.
func splitTraditionalLine(line string) (string, string, error) {
	if before, after, found := strings.Cut(line, "組"); found {
		return before, after, nil
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return "", "", takarakuji.ErrInvalidTicket.WithDetailsf("line %q should look like 16組 139476", line)
	}
	return fields[0], fields[1], nil
}

// syncCacheMetrics folds the draw cache's counters into the prometheus
// registry by delta.
func (s *Server) syncCacheMetrics() {
	stats := s.checker.CacheStats()
	hits, _ := stats["hits"].(int64)
	misses, _ := stats["misses"].(int64)

	s.statsMu.Lock()
	deltaHits := hits - s.lastHits
	deltaMisses := misses - s.lastMisses
	s.lastHits = hits
	s.lastMisses = misses
	s.statsMu.Unlock()

	AddCacheLookups(float64(deltaHits), float64(deltaMisses))
}
