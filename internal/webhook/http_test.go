package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavecrate/presetstore/internal/checkout"
	"github.com/wavecrate/presetstore/internal/events"
	"github.com/wavecrate/presetstore/internal/payments/stripe"
)

type recordingPublisher struct {
	events.Noop
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic, _ string, _ any) error {
	p.topics = append(p.topics, topic)
	return nil
}

func deliver(t *testing.T, h *HTTP, payload []byte, sig string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", sig)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Receive(e.NewContext(req, rec)))
	return rec
}

func TestReceive_BadSignatureIs400(t *testing.T) {
	svc, _ := newTestService(t)
	h := &HTTP{Svc: svc}

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	rec := deliver(t, h, payload, "t=123,v1=deadbeef")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReceive_CorruptMetadataAcksAndAlerts(t *testing.T) {
	svc, _ := newTestService(t)
	publisher := &recordingPublisher{}
	svc.Publisher = publisher
	h := &HTTP{Svc: svc}

	payload, sig := completedPayload(t, "evt_1", "cs_1", 100, map[string]string{
		checkout.MetadataUserID: "not-a-uuid",
	})
	rec := deliver(t, h, payload, sig)

	// 200 so the processor stops retrying a delivery that can never succeed.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
	assert.Contains(t, publisher.topics, events.TopicOperatorAlerts)
}

func TestReceive_HandledDeliveryIs200(t *testing.T) {
	svc, db := newTestService(t)
	h := &HTTP{Svc: svc}
	userID := uuid.New()
	ref := seedPreset(t, db, 9.99)

	payload, sig := completedPayload(t, "evt_1", "cs_1", 999, metadataFor(t, userID,
		checkout.ManifestEntry{ID: ref.ID, Type: ref.Kind, Price: 9.99}))
	rec := deliver(t, h, payload, sig)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Replays keep returning 200.
	rec = deliver(t, h, payload, stripe.SignPayload(payload, testSecret, time.Now()))
	assert.Equal(t, http.StatusOK, rec.Code)
}
