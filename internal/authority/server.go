package authority

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"kanban-cli/internal/model"
)

const APIPrefix = "/api/v1"

type serverMetrics struct {
	requests *prometheus.CounterVec
	puts     prometheus.Counter
	watchers prometheus.Gauge
}

func newServerMetrics(reg prometheus.Registerer) serverMetrics {
	f := promauto.With(reg)
	return serverMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kanban_authority_requests_total",
			Help: "HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		puts: f.NewCounter(prometheus.CounterOpts{
			Name: "kanban_authority_board_versions_total",
			Help: "Board versions written",
		}),
		watchers: f.NewGauge(prometheus.GaugeOpts{
			Name: "kanban_authority_watchers",
			Help: "Open push channel connections",
		}),
	}
}

// requestValidator plugs go-playground/validator into echo's Context.Validate.
type requestValidator struct {
	v *validator.Validate
}

func (rv requestValidator) Validate(i any) error {
	if err := rv.v.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

type createBoardRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// Server is the reference board authority: REST over the store plus a websocket push
// channel per board.
type Server struct {
	store   *Store
	hub     *Hub
	echo    *echo.Echo
	reg     *prometheus.Registry
	metrics serverMetrics
	log     *log.Entry
}

func NewServer(store *Store, hub *Hub) *Server {
	reg := prometheus.NewRegistry()
	s := &Server{
		store:   store,
		hub:     hub,
		echo:    echo.New(),
		reg:     reg,
		metrics: newServerMetrics(reg),
		log:     log.WithField("component", "authority"),
	}
	s.routes()
	return s
}

func (s *Server) Registry() *prometheus.Registry { return s.reg }

func (s *Server) routes() {
	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Validator = requestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogMethod:  true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			s.metrics.requests.WithLabelValues(route, v.Method, strconv.Itoa(v.Status)).Inc()
			entry := s.log.WithFields(log.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request failed")
				return nil
			}
			entry.Debug("request")
			return nil
		},
	}))

	api := e.Group(APIPrefix)
	api.GET("/boards", s.handleListBoards)
	api.POST("/boards", s.handleCreateBoard)
	api.GET("/boards/:id", s.handleGetBoard)
	api.PUT("/boards/:id", s.handlePutBoard)
	api.GET("/boards/:id/watch", s.handleWatch)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
}

// Handler returns the HTTP handler with permissive CORS applied.
func (s *Server) Handler() http.Handler {
	return cors.AllowAll().Handler(s.echo)
}

func (s *Server) storeError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "board not found")
	case isValidation(err):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return err
	}
}

func isValidation(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs) || errors.Is(err, model.ErrInvalidBoard)
}

func (s *Server) handleListBoards(c echo.Context) error {
	boards, err := s.store.List(c.Request().Context())
	if err != nil {
		return err
	}
	if boards == nil {
		boards = []model.Board{}
	}
	return c.JSON(http.StatusOK, boards)
}

func (s *Server) handleCreateBoard(c echo.Context) error {
	var req createBoardRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := c.Validate(&req); err != nil {
		return err
	}
	b, err := s.store.Create(c.Request().Context(), req.Name)
	if err != nil {
		return s.storeError(err)
	}
	s.log.WithFields(log.Fields{"board": b.ID, "name": b.Name}).Info("board created")
	return c.JSON(http.StatusCreated, b)
}

func (s *Server) handleGetBoard(c echo.Context) error {
	b, err := s.store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.storeError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (s *Server) handlePutBoard(c echo.Context) error {
	var in model.Board
	if err := c.Bind(&in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	b, err := s.store.Put(ctx, c.Param("id"), in)
	if err != nil {
		return s.storeError(err)
	}
	s.metrics.puts.Inc()
	s.hub.Publish(ctx, b)
	return c.JSON(http.StatusOK, b)
}

// Run serves on addr until ctx is cancelled. When the hub has a relay attached the
// relay runs alongside the listener.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.WithField("addr", ln.Addr().String()).Info("authority listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if s.hub.relay != nil {
		g.Go(func() error {
			s.hub.relay.Run(gctx)
			return nil
		})
	}
	return g.Wait()
}
