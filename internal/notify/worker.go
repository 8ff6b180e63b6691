// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/sacredconnect/sacredconnect/internal/config"
	"github.com/sacredconnect/sacredconnect/internal/database"
	"github.com/sacredconnect/sacredconnect/internal/logging"
	"github.com/sacredconnect/sacredconnect/internal/metrics"
	"github.com/sacredconnect/sacredconnect/internal/models"
	"github.com/sacredconnect/sacredconnect/internal/notify/delivery"
	"github.com/sacredconnect/sacredconnect/internal/queue"
)

// Directory looks up user delivery records.
type Directory interface {
	FindUser(ctx context.Context, id string) (*models.User, error)
	FindUsers(ctx context.Context, ids []string) ([]*models.User, error)
	RemoveDeviceTokens(ctx context.Context, userID string, tokens []string) error
}

// WorkerStore records delivery outcomes on persisted notifications.
type WorkerStore interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, cause string) error
}

// Processors registers job handlers. Satisfied by queue.Router.
type Processors interface {
	RegisterProcessor(job string, retry queue.RetryPolicy, fn queue.ProcessorFunc)
	RegisterProcessorWithFallback(job string, retry queue.RetryPolicy, fn queue.ProcessorFunc, fallback queue.FallbackFunc)
}

// Worker executes delivery jobs: it resolves the recipient, filters the
// requested channels through the user's preferences, and fans out to the
// channel adapters. Push and SMS failures are terminal per job; email is
// split into its own job so the queue retries it independently. A record
// with email among its eligible channels stays pending until the email job
// resolves it, so a permanent email failure is recorded as failed.
type Worker struct {
	store WorkerStore
	dir   Directory
	q     Enqueuer

	push  delivery.PushSender
	email delivery.EmailSender
	sms   delivery.SMSSender

	tokensPerCall int
	emailBatch    int
	emailRetry    queue.RetryPolicy

	// limiter bounds outbound email to EmailBatchSize sends per
	// EmailBatchInterval. The bound is per consumer process; with several
	// NATS consumers the aggregate rate is N times this.
	limiter *rate.Limiter
}

// NewWorker wires a delivery worker. Any nil sender disables its channel.
func NewWorker(cfg config.NotifyConfig, store WorkerStore, dir Directory, q Enqueuer,
	push delivery.PushSender, email delivery.EmailSender, sms delivery.SMSSender) *Worker {
	w := &Worker{
		store:         store,
		dir:           dir,
		q:             q,
		push:          push,
		email:         email,
		sms:           sms,
		tokensPerCall: cfg.PushTokensPerCall,
		emailBatch:    cfg.EmailBatchSize,
		emailRetry:    queue.RetryPolicy{Attempts: cfg.EmailAttempts, Backoff: cfg.EmailBackoff},
	}
	if w.tokensPerCall <= 0 {
		w.tokensPerCall = 500
	}
	if w.emailBatch <= 0 {
		w.emailBatch = 50
	}
	if w.emailRetry.Attempts <= 0 {
		w.emailRetry.Attempts = 1
	}
	if cfg.EmailBatchInterval > 0 {
		w.limiter = rate.NewLimiter(
			rate.Limit(float64(w.emailBatch)/cfg.EmailBatchInterval.Seconds()),
			w.emailBatch)
	}
	return w
}

// Register attaches the worker's handlers to the router. Send and bulk jobs
// never retry at the queue level; a failed push attempt must not repeat.
// Email jobs retry, and on exhaustion the fallback records the failure
// before the message is poisoned.
func (w *Worker) Register(r Processors) {
	r.RegisterProcessor(JobSend, queue.NoRetry, w.handleSend)
	r.RegisterProcessor(JobBulk, queue.NoRetry, w.handleBulk)
	r.RegisterProcessorWithFallback(JobEmail, w.emailRetry, w.handleEmail, w.emailExhausted)
}

// outcome accumulates per-notification delivery results.
type outcome struct {
	attempted int
	failed    int
	// emailPending means an email job was enqueued; the terminal status
	// transition belongs to that job, not to the current handler.
	emailPending bool
}

// finalize writes the terminal status for a delivered notification, unless
// an email job now owns the transition.
func (w *Worker) finalize(ctx context.Context, id string, o outcome) {
	if o.emailPending {
		return
	}
	if o.attempted > 0 && o.failed == o.attempted {
		if err := w.store.MarkFailed(ctx, id, "all delivery channels failed"); err != nil {
			logging.Err(err).Str("notification_id", id).Msg("Failed to mark notification failed")
		}
		return
	}
	// Zero eligible channels means the user opted out; suppression is a
	// successful outcome, not an error.
	if err := w.store.MarkSent(ctx, id, time.Now().UTC()); err != nil {
		logging.Err(err).Str("notification_id", id).Msg("Failed to mark notification sent")
	}
}

// handleSend delivers one persisted notification to one user.
func (w *Worker) handleSend(ctx context.Context, payload []byte) error {
	var job SendJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decode send job: %w", err)
	}

	user, err := w.dir.FindUser(ctx, job.UserID)
	if errors.Is(err, database.ErrNotFound) {
		// The user was deleted between dispatch and delivery. The record
		// stays pending; there is nobody to deliver to.
		logging.Warn().
			Str("notification_id", job.NotificationID).
			Str("user_id", job.UserID).
			Msg("Recipient not found, skipping delivery")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find user %s: %w", job.UserID, err)
	}

	eligible := user.EligibleChannels(job.Type, job.Channels)
	o := w.deliver(ctx, user, job.NotificationID, job.Type, job.Title, job.Message, job.Data, eligible)
	w.finalize(ctx, job.NotificationID, o)
	return nil
}

// deliver fans one notification out to the given channels.
func (w *Worker) deliver(ctx context.Context, user *models.User, notificationID string,
	typ models.NotificationType, title, message string, data models.Properties, channels []models.Channel) outcome {
	var o outcome
	for _, c := range channels {
		switch c {
		case models.ChannelPush:
			o.attempted++
			if err := w.sendPush(ctx, user, title, message, pushData(notificationID, typ, data)); err != nil {
				o.failed++
				logging.Err(err).
					Str("notification_id", notificationID).
					Str("user_id", user.ID).
					Msg("Push delivery failed")
			}
		case models.ChannelEmail:
			o.attempted++
			if err := w.enqueueEmail(ctx, user, notificationID, typ, title, message, data); err != nil {
				o.failed++
				logging.Err(err).
					Str("notification_id", notificationID).
					Str("user_id", user.ID).
					Msg("Email enqueue failed")
			} else {
				o.emailPending = true
			}
		case models.ChannelSMS:
			// Best effort: an SMS failure never fails the notification.
			o.attempted++
			if w.sms != nil {
				err := w.sms.Send(ctx, user.PhoneNumber, title+": "+message)
				metrics.RecordDelivery("sms", err)
				if err != nil {
					logging.Err(err).Str("user_id", user.ID).Msg("SMS delivery failed")
				}
			}
		}
	}
	return o
}

// sendPush multicasts to the user's tokens in bounded chunks, then removes
// any tokens the provider rejected as dead.
func (w *Worker) sendPush(ctx context.Context, user *models.User, title, body string, data map[string]string) error {
	if w.push == nil {
		return errors.New("push channel not configured")
	}

	total := &delivery.PushResult{}
	tokens := user.DeviceTokens
	var callErr error
	for start := 0; start < len(tokens); start += w.tokensPerCall {
		end := start + w.tokensPerCall
		if end > len(tokens) {
			end = len(tokens)
		}
		res, err := w.push.SendMulticast(ctx, tokens[start:end], title, body, data)
		metrics.RecordDelivery("push", err)
		if err != nil {
			callErr = err
			continue
		}
		total.Merge(res)
	}

	w.removeInvalidTokens(ctx, user.ID, total.InvalidTokens)

	if total.SuccessCount == 0 && callErr != nil {
		return callErr
	}
	return nil
}

// removeInvalidTokens drops dead device tokens from the directory.
// Removal failures are logged only; delivery is already decided.
func (w *Worker) removeInvalidTokens(ctx context.Context, userID string, tokens []string) {
	if len(tokens) == 0 {
		return
	}
	if err := w.dir.RemoveDeviceTokens(ctx, userID, tokens); err != nil {
		logging.Err(err).Str("user_id", userID).Msg("Failed to remove invalid device tokens")
		return
	}
	metrics.InvalidTokensRemoved.Add(float64(len(tokens)))
	logging.Info().
		Str("user_id", userID).
		Int("tokens", len(tokens)).
		Msg("Removed invalid device tokens")
}

// enqueueEmail hands email delivery to its own queue job, which owns the
// notification's terminal status from this point on.
func (w *Worker) enqueueEmail(ctx context.Context, user *models.User, notificationID string,
	typ models.NotificationType, title, message string, data models.Properties) error {
	if w.email == nil {
		return errors.New("email channel not configured")
	}
	return w.q.Enqueue(ctx, JobEmail, EmailJob{
		NotificationID: notificationID,
		To:             user.Email,
		Type:           typ,
		Title:          title,
		Message:        message,
		Data:           data,
	}, queue.JobOptions{})
}

// bulkRecipient is one user's share of a bulk chunk.
type bulkRecipient struct {
	user *models.User
	n    *models.Notification
	out  outcome

	pushTokens   int
	failedTokens int
}

// handleBulk delivers one chunk of a bulk send. Push is batched across the
// whole chunk: eligible tokens from every recipient are collected and
// multicast together in bounded calls, instead of one gateway call per
// user. Inactive users are skipped entirely.
func (w *Worker) handleBulk(ctx context.Context, payload []byte) error {
	var job BulkJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decode bulk job: %w", err)
	}

	users, err := w.dir.FindUsers(ctx, job.UserIDs)
	if err != nil {
		return fmt.Errorf("find bulk recipients: %w", err)
	}

	var recipients []*bulkRecipient
	var tokens []string
	owner := map[string]*bulkRecipient{}

	for _, user := range users {
		if !user.IsActive {
			continue
		}
		n := models.NewNotification(user.ID, job.Type, job.Title, job.Message)
		n.Data = job.Data
		n.Channels = job.Channels
		if err := w.store.InsertNotification(ctx, n); err != nil {
			logging.Err(err).Str("user_id", user.ID).Msg("Failed to persist bulk notification")
			continue
		}
		rec := &bulkRecipient{user: user, n: n}
		recipients = append(recipients, rec)

		for _, c := range user.EligibleChannels(job.Type, job.Channels) {
			switch c {
			case models.ChannelPush:
				rec.out.attempted++
				if w.push == nil {
					rec.out.failed++
					continue
				}
				rec.pushTokens = len(user.DeviceTokens)
				for _, tok := range user.DeviceTokens {
					tokens = append(tokens, tok)
					owner[tok] = rec
				}
			case models.ChannelEmail:
				rec.out.attempted++
				if err := w.enqueueEmail(ctx, user, n.ID, job.Type, job.Title, job.Message, job.Data); err != nil {
					rec.out.failed++
					logging.Err(err).
						Str("notification_id", n.ID).
						Str("user_id", user.ID).
						Msg("Email enqueue failed")
				} else {
					rec.out.emailPending = true
				}
			case models.ChannelSMS:
				rec.out.attempted++
				if w.sms != nil {
					err := w.sms.Send(ctx, user.PhoneNumber, job.Title+": "+job.Message)
					metrics.RecordDelivery("sms", err)
					if err != nil {
						logging.Err(err).Str("user_id", user.ID).Msg("SMS delivery failed")
					}
				}
			}
		}
	}

	w.multicastChunk(ctx, tokens, owner, job)

	for _, rec := range recipients {
		// Push counts as failed for a user only when every call carrying
		// one of their tokens errored.
		if rec.pushTokens > 0 && rec.failedTokens == rec.pushTokens {
			rec.out.failed++
		}
		w.finalize(ctx, rec.n.ID, rec.out)
	}

	logging.Info().
		Int("users", len(recipients)).
		Int("tokens", len(tokens)).
		Str("type", string(job.Type)).
		Msg("Bulk chunk delivered")
	return nil
}

// multicastChunk pushes all collected bulk tokens in bounded calls and
// routes invalid tokens back to their owners for cleanup.
func (w *Worker) multicastChunk(ctx context.Context, tokens []string, owner map[string]*bulkRecipient, job BulkJob) {
	if len(tokens) == 0 || w.push == nil {
		return
	}

	data := map[string]string{"type": string(job.Type)}
	for k, v := range job.Data {
		data[k] = fmt.Sprint(v)
	}

	invalid := map[*bulkRecipient][]string{}
	for start := 0; start < len(tokens); start += w.tokensPerCall {
		end := start + w.tokensPerCall
		if end > len(tokens) {
			end = len(tokens)
		}
		chunk := tokens[start:end]
		res, err := w.push.SendMulticast(ctx, chunk, job.Title, job.Message, data)
		metrics.RecordDelivery("push", err)
		if err != nil {
			for _, tok := range chunk {
				owner[tok].failedTokens++
			}
			logging.Err(err).Int("tokens", len(chunk)).Msg("Bulk push call failed")
			continue
		}
		for _, tok := range res.InvalidTokens {
			if rec, ok := owner[tok]; ok {
				invalid[rec] = append(invalid[rec], tok)
			}
		}
	}

	for rec, dead := range invalid {
		w.removeInvalidTokens(ctx, rec.user.ID, dead)
	}
}

// handleEmail renders and sends one email, then settles the notification:
// sent on success, failed on a permanent error. Transient errors propagate
// so the queue retry policy applies; exhaustion lands in emailExhausted.
func (w *Worker) handleEmail(ctx context.Context, payload []byte) error {
	var job EmailJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decode email job: %w", err)
	}
	if w.email == nil {
		return errors.New("email channel not configured")
	}

	html, err := delivery.RenderEmail(job.Title, job.Message)
	if err != nil {
		return err
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	err = w.email.Send(ctx, job.To, delivery.EmailSubject(job.Type, job.Title), html)
	metrics.RecordDelivery("email", err)
	if err == nil {
		if markErr := w.store.MarkSent(ctx, job.NotificationID, time.Now().UTC()); markErr != nil {
			logging.Err(markErr).Str("notification_id", job.NotificationID).Msg("Failed to mark notification sent")
		}
		return nil
	}

	if !delivery.IsTransient(err) {
		logging.Err(err).
			Str("notification_id", job.NotificationID).
			Msg("Permanent email failure, not retrying")
		if markErr := w.store.MarkFailed(ctx, job.NotificationID, err.Error()); markErr != nil {
			logging.Err(markErr).Str("notification_id", job.NotificationID).Msg("Failed to mark notification failed")
		}
		return nil
	}

	metrics.EmailRetries.Inc()
	return fmt.Errorf("send email for notification %s: %w", job.NotificationID, err)
}

// emailExhausted records a failed status once an email job's retry budget
// is spent and the message is about to be poisoned.
func (w *Worker) emailExhausted(ctx context.Context, payload []byte, cause error) {
	var job EmailJob
	if err := json.Unmarshal(payload, &job); err != nil {
		logging.Err(err).Msg("Failed to decode exhausted email job")
		return
	}
	logging.Err(cause).
		Str("notification_id", job.NotificationID).
		Int("attempts", w.emailRetry.Attempts).
		Msg("Email retries exhausted")
	if err := w.store.MarkFailed(ctx, job.NotificationID, "email delivery failed: "+cause.Error()); err != nil {
		logging.Err(err).Str("notification_id", job.NotificationID).Msg("Failed to mark notification failed")
	}
}

// pushData flattens notification data to the string map the push provider
// accepts, always including the type and notification id.
func pushData(notificationID string, typ models.NotificationType, data models.Properties) map[string]string {
	out := map[string]string{
		"notification_id": notificationID,
		"type":            string(typ),
	}
	for k, v := range data {
		out[k] = fmt.Sprint(v)
	}
	return out
}
