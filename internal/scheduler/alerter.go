package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimewatch/internal/domain"
	"github.com/hamed0406/uptimewatch/internal/metrics"
	"github.com/hamed0406/uptimewatch/internal/notify"
	"github.com/hamed0406/uptimewatch/internal/probe"
)

// Alerter turns transitions into notifications. Delivery is best effort:
// one attempt, failures are logged and never touch monitoring state.
type Alerter struct {
	Notifier notify.Notifier
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

type Alert struct {
	Target     *domain.Target
	Owner      domain.OwnerLimits
	Transition domain.Transition
	Result     probe.CheckResult
	At         time.Time
	Closed     *domain.DowntimeInterval // set on recovery when an interval was closed
}

func (a *Alerter) Notify(ctx context.Context, al Alert) error {
	if a == nil || a.Notifier == nil || al.Transition == domain.NoTransition {
		return nil
	}
	msg := buildMessage(al)
	if err := a.Notifier.Send(ctx, msg); err != nil {
		a.Metrics.Notification(false)
		a.Logger.Warn("alert_send_error",
			zap.String("target_id", string(al.Target.ID)),
			zap.String("url", al.Target.URL),
			zap.Stringer("transition", al.Transition),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", domain.ErrNotificationDelivery, err)
	}
	a.Metrics.Notification(true)
	a.Logger.Info("alert_sent",
		zap.String("target_id", string(al.Target.ID)),
		zap.Stringer("transition", al.Transition),
		zap.String("recipient", msg.Recipient),
	)
	return nil
}

func buildMessage(al Alert) notify.Message {
	t := al.Target
	name := t.Name
	if name == "" {
		name = t.URL
	}

	ev := notify.Event{
		TargetID:   string(t.ID),
		TargetName: t.Name,
		URL:        t.URL,
		OwnerID:    t.OwnerID,
		Kind:       notify.KindDown,
		Reason:     al.Result.Message,
		StatusCode: al.Result.StatusCode,
		LatencyMS:  al.Result.LatencyMS,
		At:         al.At,
	}
	title := "🔴 Target DOWN: " + name
	if al.Transition == domain.CameBackUp {
		ev.Kind = notify.KindUp
		title = "🟢 Target RECOVERED: " + name
	}

	httpTxt := "n/a"
	if al.Result.StatusCode != 0 {
		httpTxt = fmt.Sprintf("%d", al.Result.StatusCode)
	}
	latencyTxt := "n/a"
	if al.Result.LatencyMS != nil {
		latencyTxt = fmt.Sprintf("%d ms", *al.Result.LatencyMS)
	}
	text := fmt.Sprintf(
		"URL: %s\nHTTP: %s\nLatency: %s\nReason: %s\nChecked: %s",
		t.URL, httpTxt, latencyTxt, al.Result.Message, al.At.Format(time.RFC3339),
	)
	if al.Closed != nil {
		d := al.Closed.Duration(al.At)
		down := int64(d.Seconds())
		ev.DowntimeSeconds = &down
		text += "\nDowntime: " + d.Round(time.Second).String()
	}

	return notify.Message{
		Recipient: al.Owner.Email,
		Subject:   title,
		Body:      text,
		Event:     ev,
	}
}
