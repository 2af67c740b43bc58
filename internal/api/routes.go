package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"outthedoor/backend/internal/contracts"
	"outthedoor/backend/internal/jobs"
	"outthedoor/backend/internal/notify"
	"outthedoor/backend/internal/quotes"
	"outthedoor/backend/internal/store"
	"outthedoor/backend/internal/timeline"
)

// Config defines server dependencies.
type Config struct {
	DBPath         string
	RedisURL       string
	AllowedOrigins []string
	SilentDB       bool
	AppBaseURL     string
	Mail           notify.Config
}

// Server wires HTTP handlers with persistence and the quote and contract
// services.
type Server struct {
	db             *store.Database
	events         *timeline.Recorder
	quotes         *quotes.Service
	contracts      *contracts.Service
	queue          *jobs.Queue
	rdb            *redis.Client
	allowedOrigins []string
	mailEnabled    bool
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if strings.TrimSpace(cfg.RedisURL) != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
		logrus.Info("redis configured for job queue and locks")
	}

	var mailer notify.Mailer
	if strings.TrimSpace(cfg.Mail.APIKey) == "" {
		logrus.Info("email notifications disabled - no API key configured")
	} else {
		client, err := notify.NewClient(cfg.Mail)
		if err != nil {
			return nil, fmt.Errorf("mail client: %w", err)
		}
		mailer = client
		logrus.WithField("from", cfg.Mail.From).Info("email notifications enabled")
	}

	events := timeline.NewRecorder(db)
	contractSvc := contracts.NewService(db, events, mailer, rdb, cfg.AppBaseURL)
	quoteSvc := quotes.NewService(db, events, mailer, cfg.AppBaseURL)

	queue, err := jobs.NewQueue(cfg.RedisURL, contractSvc)
	if err != nil {
		return nil, fmt.Errorf("job queue: %w", err)
	}

	return &Server{
		db:             db,
		events:         events,
		quotes:         quoteSvc,
		contracts:      contractSvc,
		queue:          queue,
		rdb:            rdb,
		allowedOrigins: cfg.AllowedOrigins,
		mailEnabled:    mailer != nil,
	}, nil
}

// Start launches the background diff worker. No-op without Redis.
func (s *Server) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Close releases the database and queue connections.
func (s *Server) Close() error {
	err := s.queue.Close()
	if dbErr := s.db.Close(); dbErr != nil && err == nil {
		err = dbErr
	}
	return err
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)

	api := r.Group("/api")
	{
		api.POST("/dealers", s.handleCreateDealer)
		api.GET("/dealers/:id", s.handleGetDealer)

		api.POST("/briefs", s.handleCreateBrief)
		api.GET("/briefs/:id", s.handleGetBrief)
		api.GET("/briefs/:id/timeline", s.handleTimeline)
		api.POST("/briefs/:id/invite", s.handleInviteDealers)
		api.POST("/briefs/:id/quotes", s.handleSubmitQuote)

		api.GET("/quotes/:id", s.handleGetQuote)
		api.POST("/quotes/:id/publish", s.handlePublishQuote)
		api.POST("/quotes/:id/accept", s.handleAcceptQuote)
		api.POST("/quotes/:id/counter", s.handleCounterQuote)
		api.POST("/quotes/:id/contract", s.handleUploadContract)

		api.GET("/contracts/:id", s.handleGetContract)
		api.POST("/contracts/:id/check", s.handleCheckContract)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"redis_enabled": s.rdb != nil,
		"mail_enabled":  s.mailEnabled,
	})
}

func (s *Server) handleCreateDealer(c *gin.Context) {
	var req DealerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	dealer := &store.Dealer{
		ID:           uuid.NewString(),
		Name:         req.Name,
		City:         req.City,
		State:        req.State,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		Phone:        req.Phone,
	}
	if err := s.db.CreateDealer(dealer); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, DealerFromModel(dealer))
}

func (s *Server) handleGetDealer(c *gin.Context) {
	dealer, err := s.db.GetDealer(c.Param("id"))
	if err != nil {
		if store.IsNotFound(err) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("dealer %s not found", c.Param("id")))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}
	c.JSON(http.StatusOK, DealerFromModel(dealer))
}

func (s *Server) handleCreateBrief(c *gin.Context) {
	var req BriefRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	brief := &store.Brief{
		ID:          uuid.NewString(),
		BuyerID:     req.BuyerID,
		Status:      store.BriefStatusSourcing,
		Zipcode:     req.Zipcode,
		PaymentType: req.PaymentType,
		MaxOTD:      req.MaxOTD,
	}
	brief.SetMakes(req.Makes)
	brief.SetModels(req.Models)
	if err := s.db.CreateBrief(brief); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	s.events.Record(brief.ID, store.EventBriefCreated, store.ActorBuyer, map[string]any{
		"makes":        req.Makes,
		"payment_type": req.PaymentType,
	}, "")

	c.JSON(http.StatusCreated, BriefFromModel(brief))
}

func (s *Server) handleGetBrief(c *gin.Context) {
	brief, err := s.db.GetBrief(c.Param("id"))
	if err != nil {
		if store.IsNotFound(err) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("brief %s not found", c.Param("id")))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}
	c.JSON(http.StatusOK, BriefFromModel(brief))
}

func (s *Server) handleTimeline(c *gin.Context) {
	briefID := c.Param("id")
	if _, err := s.db.GetBrief(briefID); err != nil {
		if store.IsNotFound(err) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("brief %s not found", briefID))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}

	events, err := s.db.ListTimeline(briefID)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": TimelineFromModel(events)})
}

func (s *Server) handleInviteDealers(c *gin.Context) {
	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	briefID := c.Param("id")
	brief, err := s.db.GetBrief(briefID)
	if err != nil {
		if store.IsNotFound(err) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("brief %s not found", briefID))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}
	for _, dealerID := range req.DealerIDs {
		if _, err := s.db.GetDealer(dealerID); err != nil {
			if store.IsNotFound(err) {
				s.renderError(c, http.StatusNotFound, fmt.Errorf("dealer %s not found", dealerID))
			} else {
				s.renderError(c, http.StatusInternalServerError, err)
			}
			return
		}
	}

	if brief.Status == store.BriefStatusDraft {
		if err := s.db.UpdateBriefStatus(briefID, store.BriefStatusSourcing); err != nil {
			s.renderError(c, http.StatusInternalServerError, err)
			return
		}
		brief.Status = store.BriefStatusSourcing
	}

	s.events.Record(briefID, store.EventDealersInvited, store.ActorOps, map[string]any{
		"dealer_ids": req.DealerIDs,
	}, "")

	c.JSON(http.StatusOK, gin.H{"brief_id": briefID, "invited": len(req.DealerIDs), "status": brief.Status})
}

func (s *Server) handleSubmitQuote(c *gin.Context) {
	var req QuoteSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	quote, err := s.quotes.Submit(c.Request.Context(), c.Param("id"), req.DealerID, req.Source, req.Input())
	if err != nil {
		s.renderServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, QuoteFromModel(quote))
}

func (s *Server) handleGetQuote(c *gin.Context) {
	quote, err := s.db.GetQuote(c.Param("id"))
	if err != nil {
		if store.IsNotFound(err) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("quote %s not found", c.Param("id")))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}
	c.JSON(http.StatusOK, QuoteFromModel(quote))
}

func (s *Server) handlePublishQuote(c *gin.Context) {
	quote, err := s.quotes.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, QuoteFromModel(quote))
}

func (s *Server) handleAcceptQuote(c *gin.Context) {
	quote, err := s.quotes.Accept(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, QuoteFromModel(quote))
}

func (s *Server) handleCounterQuote(c *gin.Context) {
	var req CounterRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if req.Type == quotes.CounterMatchTarget && !req.TargetOTD.IsPositive() {
		s.renderError(c, http.StatusBadRequest, errors.New("target_otd must be positive"))
		return
	}
	if req.Type == quotes.CounterRemoveAddons && len(req.AddonNames) == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("addon_names must not be empty"))
		return
	}

	quote, err := s.quotes.Counter(c.Request.Context(), c.Param("id"), quotes.CounterRequest{
		Type:       req.Type,
		AddonNames: req.AddonNames,
		TargetOTD:  req.TargetOTD,
	})
	if err != nil {
		s.renderServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, QuoteFromModel(quote))
}

func (s *Server) handleUploadContract(c *gin.Context) {
	contract, err := s.contracts.Upload(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ContractFromModel(contract))
}

func (s *Server) handleGetContract(c *gin.Context) {
	contract, err := s.db.GetContract(c.Param("id"))
	if err != nil {
		if store.IsNotFound(err) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("contract %s not found", c.Param("id")))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}
	c.JSON(http.StatusOK, ContractFromModel(contract))
}

// handleCheckContract diffs a claim against the quote. With ?async=true the
// run is queued and the endpoint returns 202 immediately.
func (s *Server) handleCheckContract(c *gin.Context) {
	var req ContractCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	contractID := c.Param("id")

	if c.Query("async") == "true" {
		if err := s.queue.Enqueue(c.Request.Context(), contractID, req.Claim()); err != nil {
			s.renderError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"contract_id": contractID, "queued": true})
		return
	}

	contract, err := s.contracts.Check(c.Request.Context(), contractID, req.Claim())
	if err != nil {
		s.renderServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ContractFromModel(contract))
}

// renderServiceError maps service sentinels onto HTTP statuses.
func (s *Server) renderServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, quotes.ErrNotFound) || errors.Is(err, contracts.ErrNotFound):
		s.renderError(c, http.StatusNotFound, err)
	case errors.Is(err, quotes.ErrPrecondition) || errors.Is(err, contracts.ErrPrecondition):
		s.renderError(c, http.StatusConflict, err)
	default:
		s.renderError(c, http.StatusInternalServerError, err)
	}
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
