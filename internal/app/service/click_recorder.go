package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/linkpulse/internal/app/apperror"
	"github.com/sifan077/linkpulse/internal/app/clientinfo"
	"github.com/sifan077/linkpulse/internal/app/model"
	"github.com/sifan077/linkpulse/internal/app/repository"
	infraPrometheus "github.com/sifan077/linkpulse/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	maxUserAgentLength = 512
	maxReferrerLength  = 255
	maxCountryLength   = 64
	maxCityLength      = 128
	visitorHashLength  = 16
)

// ClientContext is what the redirect edge knows about a visitor. Values must
// not alias request buffers once handed to a dispatcher.
type ClientContext struct {
	EventID    string
	IP         string
	UserAgent  string
	Referrer   string
	Country    string
	City       string
	OccurredAt time.Time
}

// ClickRecorder persists click events and advances link counters.
type ClickRecorder struct {
	clicks  repository.ClickEventRepository
	logger  *zap.Logger
	metrics *infraPrometheus.Metrics
	now     func() time.Time
}

func NewClickRecorder(clicks repository.ClickEventRepository, logger *zap.Logger, metrics *infraPrometheus.Metrics) *ClickRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickRecorder{clicks: clicks, logger: logger, metrics: metrics, now: time.Now}
}

// Record stores one click for linkID. A redelivered event id returns
// apperror.ErrDuplicateClick and leaves the counter alone.
func (r *ClickRecorder) Record(ctx context.Context, linkID string, cc ClientContext) (*model.ClickEvent, error) {
	event := NewClickEvent(linkID, cc, r.now())

	if err := r.clicks.Record(ctx, event); err != nil {
		if errors.Is(err, apperror.ErrDuplicateClick) {
			r.logger.Debug("duplicate click ignored", zap.String("event_id", event.ID))
			return nil, err
		}
		r.metrics.ClickFailed()
		return nil, fmt.Errorf("record click: %w", err)
	}

	r.metrics.ClickRecorded()
	r.logger.Debug("click recorded",
		zap.String("event_id", event.ID),
		zap.String("link_id", linkID),
		zap.String("device", event.Device),
		zap.String("browser", event.Browser),
	)
	return event, nil
}

// NewClickEvent derives the stored event from raw client data.
func NewClickEvent(linkID string, cc ClientContext, now time.Time) *model.ClickEvent {
	id := cc.EventID
	if id == "" {
		id = uuid.NewString()
	}
	occurred := cc.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}

	info := clientinfo.Parse(cc.UserAgent)
	return &model.ClickEvent{
		ID:          id,
		LinkID:      linkID,
		OccurredAt:  occurred.UTC(),
		Device:      info.Device,
		Browser:     info.Browser,
		OS:          info.OS,
		Country:     truncate(strings.TrimSpace(cc.Country), maxCountryLength),
		City:        truncate(strings.TrimSpace(cc.City), maxCityLength),
		Referrer:    ReferrerHost(cc.Referrer),
		VisitorHash: VisitorHash(cc.IP, cc.UserAgent),
		UserAgent:   truncate(cc.UserAgent, maxUserAgentLength),
	}
}

// VisitorHash identifies a client without storing its address.
func VisitorHash(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + userAgent))
	return hex.EncodeToString(sum[:])[:visitorHashLength]
}

// ReferrerHost reduces a Referer header to its host, or "Direct" when absent.
func ReferrerHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.DirectReferrer
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return truncate(raw, maxReferrerLength)
	}
	return truncate(strings.ToLower(u.Hostname()), maxReferrerLength)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
