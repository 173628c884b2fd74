package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/profile-preview/internal/metrics"
	"github.com/JakeFAU/profile-preview/internal/preview"
)

const (
	invalidIdentifierBody = "Invalid profile identifier"
	internalErrorBody     = "Internal Server Error"
)

type metaResponse struct {
	Identifier string       `json:"identifier"`
	Found      bool         `json:"found"`
	Meta       preview.Meta `json:"meta"`
}

func (s *Server) missingIdentifier(w http.ResponseWriter, _ *http.Request) {
	metrics.ObserveRender(string(preview.AudienceHuman), "invalid")
	writeText(w, http.StatusBadRequest, invalidIdentifierBody)
}

func (s *Server) profilePreview(w http.ResponseWriter, r *http.Request) {
	segment, ok := identifierParam(r)
	if !ok {
		s.missingIdentifier(w, r)
		return
	}
	logger := s.requestLogger(r)

	res, err := s.svc.Render(r.Context(), preview.Request{
		Segment:   segment,
		UserAgent: r.UserAgent(),
	})
	if res.Audience == preview.AudienceCrawler {
		metrics.ObserveCrawlerHit(res.BotToken)
	}
	switch {
	case errors.Is(err, preview.ErrInvalidIdentifier):
		metrics.ObserveRender(string(preview.AudienceHuman), "invalid")
		writeText(w, http.StatusBadRequest, invalidIdentifierBody)
		return
	case err != nil:
		logger.Error("profile preview failed",
			zap.String("field", string(res.Key.Field)),
			zap.String("value", res.Key.Value),
			zap.String("audience", string(res.Audience)),
			zap.Bool("timeout", errors.Is(err, preview.ErrUpstreamTimeout)),
			zap.Error(err),
		)
		metrics.ObserveRender(string(res.Audience), "error")
		s.publishServed(r.Context(), res, http.StatusInternalServerError)
		writeInternalError(w)
		return
	}

	outcome := "default"
	if res.Found {
		outcome = "found"
	}
	metrics.ObserveRender(string(res.Audience), outcome)

	cacheControl := s.cache.Human
	if res.Audience == preview.AudienceCrawler {
		cacheControl = s.cache.Crawler
	}
	body := []byte(res.Body)
	status := writeCached(w, r, http.StatusOK, "text/html; charset=utf-8", cacheControl, body)
	s.publishServed(r.Context(), res, status)
}

func (s *Server) profileMeta(w http.ResponseWriter, r *http.Request) {
	segment, ok := identifierParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, strings.ToLower(invalidIdentifierBody))
		return
	}
	m, found, err := s.svc.Meta(r.Context(), segment)
	switch {
	case errors.Is(err, preview.ErrInvalidIdentifier):
		writeError(w, http.StatusBadRequest, strings.ToLower(invalidIdentifierBody))
		return
	case err != nil:
		s.requestLogger(r).Error("profile meta failed", zap.String("identifier", segment), zap.Error(err))
		w.Header().Set("Cache-Control", "no-store")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	body, err := encodeJSON(metaResponse{Identifier: segment, Found: found, Meta: m})
	if err != nil {
		s.requestLogger(r).Error("encode meta response", zap.Error(err))
		writeInternalError(w)
		return
	}
	writeCached(w, r, http.StatusOK, "application/json", s.cache.Human, body)
}

// identifierParam returns the decoded identifier segment. Percent-encoded
// slashes stay inside the segment and are rejected by validation.
func identifierParam(r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "identifier")
	if raw == "" {
		return "", false
	}
	if r.URL.RawPath == "" {
		return raw, true
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	return decoded, true
}

// publishServed emits a crawler-hit event off the request path.
func (s *Server) publishServed(ctx context.Context, res preview.Result, status int) {
	if s.pub == nil || res.Audience != preview.AudienceCrawler {
		return
	}
	logger := s.logger.With(zap.String("request_id", requestID(ctx)))
	eventID, err := s.ids.NewID()
	if err != nil {
		logger.Warn("event id generation failed", zap.Error(err))
		return
	}
	ev := preview.ServedEvent{
		EventID:    eventID,
		Identifier: res.Key.Value,
		Field:      string(res.Key.Field),
		Bot:        res.BotToken,
		Found:      res.Found,
		Status:     status,
		ServedAt:   s.clock.Now(),
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		if _, err := s.pub.Publish(pubCtx, ServedTopic, ev); err != nil {
			logger.Warn("publish served event failed", zap.String("bot", ev.Bot), zap.Error(err))
		}
	}()
}

func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return s.logger.With(zap.String("request_id", requestID(r.Context())))
}
