// Package alerting delivers watcher messages to chat channels.
//
// alerting 包负责把监控消息推送到 Discord / Telegram。
package alerting

import (
	"context"
	"errors"
)

// Notifier 定义告警投递接口。
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Multi fans a message out to every configured channel. One failing channel
// does not stop the others; the joined error carries every failure.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Notifier = (Multi)(nil)
