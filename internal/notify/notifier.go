// Package notify emails buyers and sellers when orders and payments change.
package notify

import (
	"context"
	"fmt"
	"sync"

	evbus "github.com/asaskevich/EventBus"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/souqlab/souq/internal/domain"
	"github.com/souqlab/souq/pkg/metrics"
)

// EmailResolver maps user ids to addresses
type EmailResolver interface {
	Emails(ctx context.Context, ids ...int64) (map[int64]string, error)
}

type mail struct {
	userID  int64
	subject string
	body    string
}

// Notifier turns bus events into emails. Delivery runs on a bounded,
// non-blocking worker pool: publishers never wait on SMTP, and a notification
// arriving while every worker is busy is dropped and counted.
type Notifier struct {
	mailer Mailer
	emails EmailResolver
	pool   *ants.Pool
	wg     sync.WaitGroup
}

func NewNotifier(mailer Mailer, emails EmailResolver, poolSize int) (*Notifier, error) {
	if poolSize <= 0 {
		poolSize = 4
	}
	pool, err := ants.NewPool(poolSize,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p interface{}) {
			zap.L().Error("notification worker panic", zap.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create notification pool")
	}
	return &Notifier{mailer: mailer, emails: emails, pool: pool}, nil
}

// Subscribe registers the notifier's handlers on bus
func (n *Notifier) Subscribe(bus evbus.Bus) error {
	if err := bus.Subscribe(domain.TopicOrderCreated, n.OnOrderCreated); err != nil {
		return err
	}
	if err := bus.Subscribe(domain.TopicOrderStatus, n.OnOrderStatus); err != nil {
		return err
	}
	if err := bus.Subscribe(domain.TopicOrderOversold, n.OnOrderOversold); err != nil {
		return err
	}
	return bus.Subscribe(domain.TopicPaymentFailed, n.OnPaymentFailed)
}

func (n *Notifier) OnOrderCreated(ev domain.OrderEvent) {
	n.dispatch(
		mail{
			userID:  ev.BuyerID,
			subject: fmt.Sprintf("Order confirmed: %s", ev.ProductTitle),
			body:    fmt.Sprintf("Thanks for your purchase. Your order %d for %q is confirmed.", ev.OrderID, ev.ProductTitle),
		},
		mail{
			userID:  ev.SellerID,
			subject: fmt.Sprintf("You sold %s", ev.ProductTitle),
			body:    fmt.Sprintf("Order %d for %q has been paid. Please prepare it for shipping.", ev.OrderID, ev.ProductTitle),
		},
	)
}

func (n *Notifier) OnOrderStatus(ev domain.OrderEvent) {
	n.dispatch(mail{
		userID:  ev.BuyerID,
		subject: fmt.Sprintf("Order %s: %s", ev.Status, ev.ProductTitle),
		body:    fmt.Sprintf("Your order %d for %q is now %s.", ev.OrderID, ev.ProductTitle, ev.Status),
	})
}

// OnOrderOversold asks the seller to settle a second paid order for a listing
func (n *Notifier) OnOrderOversold(ev domain.OrderEvent) {
	n.dispatch(mail{
		userID:  ev.SellerID,
		subject: fmt.Sprintf("Action needed: %s was paid for twice", ev.ProductTitle),
		body:    fmt.Sprintf("Order %d for %q was paid after the item had already sold. Please contact the buyer and arrange a refund.", ev.OrderID, ev.ProductTitle),
	})
}

func (n *Notifier) OnPaymentFailed(ev domain.PaymentEvent) {
	n.dispatch(mail{
		userID:  ev.BuyerID,
		subject: "Payment failed",
		body:    fmt.Sprintf("Your payment of %.2f %s could not be completed. You can try again from the product page.", ev.Amount, ev.Currency),
	})
}

func (n *Notifier) dispatch(mails ...mail) {
	n.wg.Add(1)
	err := n.pool.Submit(func() {
		defer n.wg.Done()
		n.deliver(mails)
	})
	if errors.Is(err, ants.ErrPoolOverload) {
		n.wg.Done()
		metrics.Inc("notification_dropped")
		zap.L().Warn("notification pool busy, dropping", zap.Int("mails", len(mails)))
	} else if err != nil {
		n.wg.Done()
		zap.L().Error("submit notification", zap.Error(err))
	}
}

func (n *Notifier) deliver(mails []mail) {
	ids := make([]int64, 0, len(mails))
	for _, m := range mails {
		ids = append(ids, m.userID)
	}
	addrs, err := n.emails.Emails(context.Background(), ids...)
	if err != nil {
		zap.L().Error("resolve notification recipients", zap.Error(err))
		return
	}
	for _, m := range mails {
		to, ok := addrs[m.userID]
		if !ok {
			zap.L().Warn("no email for user", zap.Int64("user_id", m.userID))
			continue
		}
		if err := n.mailer.Send(to, m.subject, m.body); err != nil {
			metrics.Inc("notification_failed")
			zap.L().Error("send notification", zap.String("to", to), zap.Error(err))
			continue
		}
		metrics.Inc("notification_sent")
	}
}

// Wait blocks until queued notifications are delivered
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Close drains pending notifications and stops the pool
func (n *Notifier) Close() {
	n.wg.Wait()
	n.pool.Release()
}
