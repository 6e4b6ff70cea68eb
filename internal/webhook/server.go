// Package webhook serves the HTTP surface: the WhatsApp webhook pair,
// report and media downloads, the admin listing and the health check.
package webhook

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/helpline1930/helpline/internal/conversation"
	"github.com/helpline1930/helpline/internal/models"
)

// Dispatcher runs one inbound event through the conversation engine.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev conversation.Event) error
}

// Media resolves and downloads inbound media objects.
type Media interface {
	MediaURL(ctx context.Context, mediaID string) (string, error)
	DownloadMedia(ctx context.Context, mediaID, mediaURL string) (string, error)
}

// Records is the read surface the HTTP handlers need.
type Records interface {
	Get(id uint) (*models.Complaint, error)
	List(limit int) ([]models.Complaint, error)
}

// Renderer locates and regenerates report artifacts.
type Renderer interface {
	Render(rec *models.Complaint) (string, error)
	PathFor(id uint) string
	Exists(id uint) bool
}

// Server wires the HTTP routes.
type Server struct {
	db          *gorm.DB
	dispatcher  Dispatcher
	media       Media
	records     Records
	renderer    Renderer
	verifyToken string
	mediaDir    string
}

// Opts holds parameters for creating a Server.
type Opts struct {
	DB          *gorm.DB
	Dispatcher  Dispatcher
	Media       Media
	Records     Records
	Renderer    Renderer
	VerifyToken string
	MediaDir    string
}

// New creates a Server.
func New(opts Opts) (*Server, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("webhook: db is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("webhook: dispatcher is required")
	}
	if opts.Records == nil {
		return nil, fmt.Errorf("webhook: records is required")
	}
	if opts.Renderer == nil {
		return nil, fmt.Errorf("webhook: renderer is required")
	}
	if opts.VerifyToken == "" {
		return nil, fmt.Errorf("webhook: verify token is required")
	}
	return &Server{
		db:          opts.DB,
		dispatcher:  opts.Dispatcher,
		media:       opts.Media,
		records:     opts.Records,
		renderer:    opts.Renderer,
		verifyToken: opts.VerifyToken,
		mediaDir:    opts.MediaDir,
	}, nil
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s.RegisterRoutes(router)
	return router
}

// RegisterRoutes attaches the handlers to a router.
func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", s.health)
	router.GET("/webhook", s.verify)
	router.POST("/webhook", s.incoming)
	router.GET("/reports/:name", s.report)
	router.GET("/api/complaints", s.listComplaints)
	if s.mediaDir != "" {
		router.Static("/media", s.mediaDir)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int, out io.Writer) error {
	if port <= 0 {
		port = 8000
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if out != nil {
		fmt.Fprintf(out, "Webhook listening at http://localhost:%d\n", port)
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// verify answers the channel's subscription handshake. Both the hub.*
// names Meta sends and the bare names local tools use are accepted.
func (s *Server) verify(c *gin.Context) {
	mode := first(c, "hub.mode", "mode")
	challenge := first(c, "hub.challenge", "challenge")
	token := first(c, "hub.verify_token", "verify_token", "token")

	if mode == "subscribe" && token == s.verifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	c.JSON(http.StatusForbidden, gin.H{"detail": "Verification failed"})
}

func first(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			return v
		}
	}
	return ""
}

// Inbound payload shapes per the Cloud API webhook reference. Only the
// parts we consume are modeled.
type incomingPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From string `json:"from"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
	Image *struct {
		ID string `json:"id"`
	} `json:"image"`
}

// incoming handles webhook deliveries. Each message is dispatched
// independently; a failure is logged and acknowledged anyway, since the
// channel would otherwise retry the whole batch including the messages
// that already succeeded.
func (s *Server) incoming(c *gin.Context) {
	var payload incomingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				ev, ok := s.toEvent(ctx, msg)
				if !ok {
					continue
				}
				s.upsertUser(ev.SenderID)
				if err := s.dispatcher.Dispatch(ctx, ev); err != nil {
					log.Printf("webhook: dispatch for %s: %v", ev.SenderID, err)
				}
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// toEvent converts a channel message to a conversation event.
func (s *Server) toEvent(ctx context.Context, msg inboundMessage) (conversation.Event, bool) {
	if msg.From == "" {
		return conversation.Event{}, false
	}
	ev := conversation.Event{SenderID: msg.From}

	switch msg.Type {
	case "text":
		if msg.Text == nil {
			return conversation.Event{}, false
		}
		ev.Kind = conversation.KindText
		ev.Text = msg.Text.Body
	case "interactive":
		if msg.Interactive == nil {
			return conversation.Event{}, false
		}
		switch {
		case msg.Interactive.ButtonReply != nil:
			ev.Kind = conversation.KindButton
			ev.ButtonID = msg.Interactive.ButtonReply.ID
			if ev.ButtonID == "" {
				ev.ButtonID = msg.Interactive.ButtonReply.Title
			}
		case msg.Interactive.ListReply != nil:
			ev.Kind = conversation.KindList
			ev.ListID = msg.Interactive.ListReply.ID
			if ev.ListID == "" {
				ev.ListID = msg.Interactive.ListReply.Title
			}
		default:
			return conversation.Event{}, false
		}
	case "image":
		if msg.Image == nil || msg.Image.ID == "" {
			return conversation.Event{}, false
		}
		ev.Kind = conversation.KindImage
		ev.ImageRef = s.fetchMedia(ctx, msg.Image.ID)
	default:
		return conversation.Event{}, false
	}
	return ev, true
}

// fetchMedia resolves and downloads an inbound image, returning its
// stable /media/... reference. Download failures keep the reference so
// the sweep or a later regeneration can retry.
func (s *Server) fetchMedia(ctx context.Context, mediaID string) string {
	if s.media == nil {
		return "/media/" + mediaID + ".jpg"
	}
	url, err := s.media.MediaURL(ctx, mediaID)
	if err != nil {
		log.Printf("webhook: media url %s: %v", mediaID, err)
	}
	path, err := s.media.DownloadMedia(ctx, mediaID, url)
	if err != nil {
		log.Printf("webhook: download media %s: %v", mediaID, err)
	}
	return path
}

// upsertUser records first contact; repeat senders are a no-op.
func (s *Server) upsertUser(waID string) {
	user := models.User{WaID: waID}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wa_id"}},
		DoNothing: true,
	}).Create(&user).Error
	if err != nil {
		log.Printf("webhook: upsert user %s: %v", waID, err)
	}
}

// report serves report_<id>.pdf, regenerating a missing artifact on
// demand when the record still exists.
func (s *Server) report(c *gin.Context) {
	name := c.Param("name")
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "report_"), ".pdf")
	id, err := strconv.ParseUint(trimmed, 10, 32)
	if err != nil || !strings.HasSuffix(name, ".pdf") {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Report not found"})
		return
	}

	recordID := uint(id)
	if !s.renderer.Exists(recordID) {
		rec, err := s.records.Get(recordID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Report not found"})
			return
		}
		if _, err := s.renderer.Render(rec); err != nil {
			log.Printf("webhook: on-demand render %d: %v", recordID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Report unavailable"})
			return
		}
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=report_%d.pdf", recordID))
	c.File(s.renderer.PathFor(recordID))
}

type complaintSummary struct {
	ID              uint   `json:"id"`
	ReferenceNumber string `json:"reference_number,omitempty"`
	Status          string `json:"status"`
	ComplaintType   string `json:"complaint_type"`
	MainCategory    string `json:"main_category,omitempty"`
	FraudType       string `json:"fraud_type,omitempty"`
	SubType         string `json:"sub_type,omitempty"`
	District        string `json:"district,omitempty"`
	WaID            string `json:"wa_id"`
	CreatedAt       string `json:"created_at"`
}

func (s *Server) listComplaints(c *gin.Context) {
	limit := 200
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	recs, err := s.records.List(limit)
	if err != nil {
		log.Printf("webhook: list complaints: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Listing unavailable"})
		return
	}

	out := make([]complaintSummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, complaintSummary{
			ID:              r.ID,
			ReferenceNumber: r.ReferenceNumber,
			Status:          r.Status,
			ComplaintType:   r.ComplaintType,
			MainCategory:    r.MainCategory,
			FraudType:       r.FraudType,
			SubType:         r.SubType,
			District:        r.District,
			WaID:            r.WaID,
			CreatedAt:       r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	c.JSON(http.StatusOK, out)
}
