package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cspulse/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	intents []Intent
	err     error
}

func (r *recordingNotifier) Notify(ctx context.Context, intent Intent) error {
	r.intents = append(r.intents, intent)
	return r.err
}

type fakeLists struct {
	pushed map[string][]string
	err    error
}

func (f *fakeLists) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "lpush", key)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	if f.pushed == nil {
		f.pushed = map[string][]string{}
	}
	for _, v := range values {
		f.pushed[key] = append(f.pushed[key], string(v.([]byte)))
	}
	cmd.SetVal(int64(len(f.pushed[key])))
	return cmd
}

func TestMultiNotifier_FansOutAndJoinsErrors(t *testing.T) {
	ok := &recordingNotifier{}
	bad := &recordingNotifier{err: errors.New("boom")}
	m := NewMultiNotifier(ok, nil, bad)
	assert.Equal(t, 2, m.Len())

	err := m.Notify(context.Background(), Intent{Template: TemplateSurveyRequest, Recipient: "a@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Len(t, ok.intents, 1)
	assert.Len(t, bad.intents, 1)

	assert.NoError(t, NewMultiNotifier().Notify(context.Background(), Intent{Template: TemplateSurveyReminder}))
}

func TestOutboxNotifier(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:notify_outbox?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	require.NoError(t, db.AutoMigrate(&models.NotificationIntent{}))

	n := NewOutboxNotifier(db)
	require.NoError(t, n.Notify(context.Background(), Intent{
		Template:   TemplateSurveyRequest,
		Recipient:  "a@example.com",
		CustomerID: 3,
		Data:       map[string]interface{}{"survey_url": "https://example.com/s/abc", "survey_type": "csat"},
	}))
	require.NoError(t, n.Notify(context.Background(), Intent{Template: TemplateSurveyReminder, Recipient: "b@example.com"}))
	assert.Error(t, n.Notify(context.Background(), Intent{}))

	pending, err := n.Pending(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, TemplateSurveyRequest, pending[0].Template)
	assert.Equal(t, "https://example.com/s/abc", pending[0].Payload["survey_url"])

	marked, err := n.MarkDispatched(context.Background(), pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	pending, err = n.Pending(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRedisNotifier(t *testing.T) {
	lists := &fakeLists{}
	n := NewRedisNotifier(lists, "")

	require.NoError(t, n.Notify(context.Background(), Intent{Template: TemplateSurveyCompleted, Recipient: "c@example.com", CustomerID: 7}))
	require.Len(t, lists.pushed[defaultRedisListKey], 1)

	var got Intent
	require.NoError(t, json.Unmarshal([]byte(lists.pushed[defaultRedisListKey][0]), &got))
	assert.Equal(t, TemplateSurveyCompleted, got.Template)
	assert.Equal(t, uint(7), got.CustomerID)

	failing := NewRedisNotifier(&fakeLists{err: errors.New("connection refused")}, "q")
	assert.Error(t, failing.Notify(context.Background(), Intent{Template: TemplateSurveyCompleted}))
}

func TestWebhookNotifier(t *testing.T) {
	var received Intent
	var token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		token = r.Header.Get("X-CSPulse-Token")
		if received.Recipient == "fail@example.com" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "s3cret", time.Second)
	require.NoError(t, n.Notify(context.Background(), Intent{Template: TemplateSurveyLowScoreFollowup, Recipient: "csm@example.com"}))
	assert.Equal(t, TemplateSurveyLowScoreFollowup, received.Template)
	assert.Equal(t, "s3cret", token)

	err := n.Notify(context.Background(), Intent{Template: TemplateSurveyLowScoreFollowup, Recipient: "fail@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

type templateFailingNotifier struct {
	recordingNotifier
	failTemplate string
}

func (f *templateFailingNotifier) Notify(ctx context.Context, intent Intent) error {
	if intent.Template == f.failTemplate {
		return errors.New("sink unavailable")
	}
	return f.recordingNotifier.Notify(ctx, intent)
}

func TestOutboxNotifier_Relay(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:notify_relay?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	require.NoError(t, db.AutoMigrate(&models.NotificationIntent{}))

	outbox := NewOutboxNotifier(db)
	ctx := context.Background()
	require.NoError(t, outbox.Notify(ctx, Intent{Template: TemplateSurveyRequest, Recipient: "a@example.com", Data: map[string]interface{}{"survey_type": "nps"}}))
	require.NoError(t, outbox.Notify(ctx, Intent{Template: TemplateSurveyReminder, Recipient: "b@example.com"}))
	require.NoError(t, outbox.Notify(ctx, Intent{Template: TemplateSurveyCompleted, Recipient: "c@example.com"}))

	sink := &templateFailingNotifier{failTemplate: TemplateSurveyReminder}
	n, err := outbox.Relay(ctx, sink, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink unavailable")
	assert.Equal(t, 2, n)
	require.Len(t, sink.intents, 2)
	assert.Equal(t, "nps", sink.intents[0].Data["survey_type"])

	pending, err := outbox.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, TemplateSurveyReminder, pending[0].Template)

	sink.failTemplate = ""
	n, err = outbox.Relay(ctx, sink, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = outbox.Relay(ctx, sink, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
