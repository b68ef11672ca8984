package domain_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/pusha/internal/domain"
)

// Keys from RFC 8291 Appendix A.
const (
	uaPublic = "BCVxsr7N_eNgVRqvHtD0zTZsEc6-VV-JvLexhqUzORcxaOzi6-AYWXvTBHm4bjyPjs7Vd8pZGH6SRpkNtoIAiw4"
	uaAuth   = "BTBZMqHH6r4Tts7J_aSIgg"
)

func TestNewSubscription(t *testing.T) {
	sub, err := domain.NewSubscription("https://fcm.googleapis.com/fcm/send/abc:123", uaPublic, uaAuth)
	require.NoError(t, err)

	assert.Equal(t, "https://fcm.googleapis.com", sub.Origin())
	assert.Len(t, sub.PublicKey(), domain.PublicKeySize)
	assert.Len(t, sub.AuthSecret(), domain.AuthSecretSize)
	assert.False(t, sub.IsZero())

	// accessors hand out copies
	sub.PublicKey()[0] = 0
	assert.Equal(t, byte(0x04), sub.PublicKey()[0])
}

func TestNewSubscription_PaddedBase64(t *testing.T) {
	_, err := domain.NewSubscription("https://push.example.net/x", uaPublic+"=", uaAuth+"==")
	assert.NoError(t, err)
}

func TestNewSubscription_Invalid(t *testing.T) {
	offCurve := "BAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

	tests := []struct {
		name     string
		endpoint string
		p256dh   string
		auth     string
		want     error
	}{
		{"empty endpoint", "", uaPublic, uaAuth, domain.ErrInvalidEndpoint},
		{"relative endpoint", "/push/abc", uaPublic, uaAuth, domain.ErrInvalidEndpoint},
		{"ftp endpoint", "ftp://push.example.net/abc", uaPublic, uaAuth, domain.ErrInvalidEndpoint},
		{"empty p256dh", "https://push.example.net/x", "", uaAuth, domain.ErrInvalidP256dh},
		{"short p256dh", "https://push.example.net/x", "BCVxsr7N", uaAuth, domain.ErrInvalidP256dh},
		{"p256dh off curve", "https://push.example.net/x", offCurve, uaAuth, domain.ErrInvalidP256dh},
		{"bad auth encoding", "https://push.example.net/x", uaPublic, "!!!", domain.ErrInvalidAuth},
		{"short auth", "https://push.example.net/x", uaPublic, "BTBZ", domain.ErrInvalidAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.NewSubscription(tt.endpoint, tt.p256dh, tt.auth)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, domain.IsValidation(err))
		})
	}
}

func TestJobOptions_Validate(t *testing.T) {
	neg, zero := -1, 0
	tests := []struct {
		name string
		opts domain.JobOptions
		want error
	}{
		{"empty", domain.JobOptions{}, nil},
		{"zero ttl", domain.JobOptions{TTL: &zero}, nil},
		{"negative ttl", domain.JobOptions{TTL: &neg}, domain.ErrInvalidTTL},
		{"urgency", domain.JobOptions{Urgency: domain.UrgencyVeryLow}, nil},
		{"bad urgency", domain.JobOptions{Urgency: "urgent"}, domain.ErrInvalidUrgency},
		{"topic", domain.JobOptions{Topic: "scores_2026-10"}, nil},
		{"topic too long", domain.JobOptions{Topic: "abcdefghijklmnopqrstuvwxyz0123456"}, domain.ErrInvalidTopic},
		{"topic bad chars", domain.JobOptions{Topic: "a/b"}, domain.ErrInvalidTopic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewJob_OwnsItsInputs(t *testing.T) {
	sub, err := domain.NewSubscription("https://push.example.net/x", uaPublic, uaAuth)
	require.NoError(t, err)

	payload := []byte("hello")
	ttl := 60
	job := domain.NewJob(sub, payload, domain.JobOptions{TTL: &ttl})

	payload[0] = 'j'
	ttl = 5

	assert.Equal(t, "hello", string(job.Payload))
	assert.Equal(t, 60, *job.Options.TTL)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, job.ID, job.Completion().JobID())
	assert.Equal(t, time.UTC, job.EnqueuedAt.Location())
}

func TestCompletion_ResolvesOnce(t *testing.T) {
	sub, err := domain.NewSubscription("https://push.example.net/x", uaPublic, uaAuth)
	require.NoError(t, err)
	job := domain.NewJob(sub, []byte("x"), domain.JobOptions{})

	_, ok := job.Completion().Outcome()
	assert.False(t, ok)

	assert.True(t, job.Resolve(domain.Outcome{Status: domain.StatusAccepted}))
	assert.False(t, job.Resolve(domain.Outcome{Status: domain.StatusGone}))

	o, ok := job.Completion().Outcome()
	require.True(t, ok)
	assert.Equal(t, domain.StatusAccepted, o.Status)
	assert.Equal(t, job.ID, o.JobID)
}

func TestCompletion_ManyWaiters(t *testing.T) {
	sub, err := domain.NewSubscription("https://push.example.net/x", uaPublic, uaAuth)
	require.NoError(t, err)
	job := domain.NewJob(sub, []byte("x"), domain.JobOptions{})

	var wg sync.WaitGroup
	results := make([]domain.Status, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o, err := job.Completion().Wait(context.Background())
			if err == nil {
				results[i] = o.Status
			}
		}(i)
	}

	job.Resolve(domain.Outcome{Status: domain.StatusTimeout})
	wg.Wait()
	for i, s := range results {
		assert.Equal(t, domain.StatusTimeout, s, "waiter %d", i)
	}
}

func TestCompletion_WaitHonoursContext(t *testing.T) {
	c := domain.NewCompletion()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want domain.Status
	}{
		{nil, domain.StatusAccepted},
		{errors.Wrap(domain.ErrPayloadTooLarge, "4000 bytes"), domain.StatusRejected},
		{domain.ErrInvalidTopic, domain.StatusRejected},
		{errors.Mark(errors.New("gcm seal"), domain.ErrEncryption), domain.StatusEncryptionError},
		{errors.Wrap(domain.ErrInvalidExpiry, "25h"), domain.StatusSignatureError},
		{domain.ErrInvalidSigningKey, domain.StatusSignatureError},
		{errors.WithHint(domain.ErrGone, domain.ResubscribeHint), domain.StatusGone},
		{domain.ErrRateLimited, domain.StatusRateLimited},
		{errors.Mark(errors.New("i/o timeout"), domain.ErrDeliveryTimeout), domain.StatusTimeout},
		{context.DeadlineExceeded, domain.StatusTimeout},
		{errors.Mark(errors.New("502"), domain.ErrTransport), domain.StatusTransportError},
		{errors.New("unexpected"), domain.StatusTransportError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, domain.Classify(tt.err), "error: %v", tt.err)
	}
}

func TestDelivery_Apply(t *testing.T) {
	sub, err := domain.NewSubscription("https://push.example.net/x", uaPublic, uaAuth)
	require.NoError(t, err)
	job := domain.NewJob(sub, []byte("x"), domain.JobOptions{})

	d := domain.NewDelivery(job)
	assert.Equal(t, domain.StatusQueued, d.Status)
	assert.Equal(t, "https://push.example.net", d.Origin)
	assert.Nil(t, d.CompletedAt)

	done := time.Now().UTC()
	d.Apply(domain.Outcome{
		Status:      domain.StatusGone,
		StatusCode:  410,
		Err:         domain.ErrGone,
		Latency:     42 * time.Millisecond,
		CompletedAt: done,
	})

	assert.Equal(t, domain.StatusGone, d.Status)
	require.NotNil(t, d.StatusCode)
	assert.Equal(t, 410, *d.StatusCode)
	require.NotNil(t, d.ErrorMessage)
	assert.Equal(t, domain.ErrGone.Error(), *d.ErrorMessage)
	assert.Equal(t, int64(42), *d.LatencyMS)
	assert.Nil(t, d.MessageID)
	assert.True(t, d.Status.IsFinal())
}
