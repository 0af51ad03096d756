package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger"

	"acornbox/internal/apperr"
	"acornbox/internal/auth"
	"acornbox/internal/logger"
	"acornbox/internal/metrics"
	"acornbox/internal/model"
)

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	// Public
	r.Get("/healthz", a.Health)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Secured
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.JWTAuthMiddleware)

		r.Route("/acornboxes", func(r chi.Router) {
			r.Post("/", a.CreateMessage)
			r.Get("/random", a.PickRandomMessage)
			r.Get("/user", a.ListOwnedMessages)
			r.Get("/{id}", a.GetMessage)
			r.Post("/{id}/open", a.ClaimMessage)
			r.Post("/{id}/retire", a.RetireMessage)
		})

		r.Route("/replies", func(r chi.Router) {
			r.Post("/", a.CreateReply)
			r.Get("/", a.ListSentReplies)
			r.Get("/received", a.ListReceivedReplies)
			r.Get("/received/unread", a.CountUnreadReplies)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		logger.Info("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// @Summary Health check
// @Tags System
// @Success 200 {object} map[string]string
// @Failure 503 {object} ErrorResponse
// @Router /healthz [get]
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.Ping(r.Context()); err != nil {
		logger.Error("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "unavailable", Message: "store unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// @Summary Create a sealed message
// @Tags AcornBoxes
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param body body CreateMessageRequest true "Message"
// @Success 201 {object} MessageView
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/acornboxes [post]
func (a *API) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var body CreateMessageRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	allowReplies := true
	if body.AllowReplies != nil {
		allowReplies = *body.AllowReplies
	}

	owner := principal(r)
	m, err := a.Boxes.CreateMessage(r.Context(), owner, body.Body, allowReplies)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, presentMessage(m, owner))
}

// @Summary Pick a random available message
// @Description Advisory only: the message may be claimed by someone else before you open it.
// @Tags AcornBoxes
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} MessageView
// @Failure 404 {object} ErrorResponse
// @Router /api/acornboxes/random [get]
func (a *API) PickRandomMessage(w http.ResponseWriter, r *http.Request) {
	m, err := a.Boxes.PickRandom(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presentMessage(m, principal(r)))
}

// @Summary Get a message
// @Tags AcornBoxes
// @Security ApiKeyAuth
// @Produce json
// @Param id path string true "Message UUID"
// @Success 200 {object} MessageView
// @Failure 404 {object} ErrorResponse
// @Router /api/acornboxes/{id} [get]
func (a *API) GetMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := a.Boxes.GetMessage(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presentMessage(m, principal(r)))
}

// @Summary Open (claim) a message
// @Description Exactly one caller wins; the rest receive 409.
// @Tags AcornBoxes
// @Security ApiKeyAuth
// @Produce json
// @Param id path string true "Message UUID"
// @Success 200 {object} MessageView
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/acornboxes/{id}/open [post]
func (a *API) ClaimMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	claimant := principal(r)
	m, err := a.Boxes.Claim(r.Context(), id, claimant)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presentMessage(m, claimant))
}

// @Summary Retire a message
// @Tags AcornBoxes
// @Security ApiKeyAuth
// @Produce json
// @Param id path string true "Message UUID"
// @Success 200 {object} MessageView
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/acornboxes/{id}/retire [post]
func (a *API) RetireMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	owner := principal(r)
	m, err := a.Boxes.Retire(r.Context(), id, owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presentMessage(m, owner))
}

// @Summary List the caller's messages
// @Tags AcornBoxes
// @Security ApiKeyAuth
// @Produce json
// @Param page query int false "Page number (1-based)"
// @Param limit query int false "Items per page"
// @Success 200 {object} MessagePage
// @Failure 400 {object} ErrorResponse
// @Router /api/acornboxes/user [get]
func (a *API) ListOwnedMessages(w http.ResponseWriter, r *http.Request) {
	page, limit, err := a.pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	owner := principal(r)
	result, err := a.Boxes.ListOwned(r.Context(), owner, page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]MessageView, 0, len(result.Items))
	for i := range result.Items {
		views = append(views, presentMessage(&result.Items[i], owner))
	}
	writeJSON(w, http.StatusOK, model.NewPage(views, result.Page, result.Limit, result.Total))
}

// @Summary Reply to a message
// @Tags Replies
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param body body CreateReplyRequest true "Reply"
// @Success 201 {object} model.Reply
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/replies [post]
func (a *API) CreateReply(w http.ResponseWriter, r *http.Request) {
	var body CreateReplyRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.MessageID == uuid.Nil {
		writeError(w, r, apperr.Validation("messageId is required"))
		return
	}

	reply, err := a.Replies.CreateReply(r.Context(), body.MessageID, principal(r), body.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

// @Summary List replies the caller has sent
// @Tags Replies
// @Security ApiKeyAuth
// @Produce json
// @Param page query int false "Page number (1-based)"
// @Param limit query int false "Items per page"
// @Success 200 {object} ReplyPage
// @Router /api/replies [get]
func (a *API) ListSentReplies(w http.ResponseWriter, r *http.Request) {
	page, limit, err := a.pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := a.Replies.ListSent(r.Context(), principal(r), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// @Summary List replies received on the caller's messages
// @Description Marks exactly the replies on the returned page as read.
// @Tags Replies
// @Security ApiKeyAuth
// @Produce json
// @Param page query int false "Page number (1-based)"
// @Param limit query int false "Items per page"
// @Success 200 {object} ReplyPage
// @Router /api/replies/received [get]
func (a *API) ListReceivedReplies(w http.ResponseWriter, r *http.Request) {
	page, limit, err := a.pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := a.Replies.ListReceived(r.Context(), principal(r), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// @Summary Count unread received replies
// @Tags Replies
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} UnreadResponse
// @Router /api/replies/received/unread [get]
func (a *API) CountUnreadReplies(w http.ResponseWriter, r *http.Request) {
	n, err := a.Replies.CountUnread(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UnreadResponse{Unread: n})
}
