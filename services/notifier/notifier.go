package notifsvc

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/KeviinDCV/NotionK4S/core"
	"github.com/KeviinDCV/NotionK4S/core/notif"
	"github.com/KeviinDCV/NotionK4S/core/user"
	"github.com/KeviinDCV/NotionK4S/realtime"
)

// service persists notifications and fans them out on the realtime feed,
// with an optional email copy to the recipient. Failures are logged and
// swallowed so callers never block or fail on delivery.
type service struct {
	repo    notif.Repository
	usrSvc  user.Service
	mailSvc core.EmailService
	feed    realtime.Feed
	logger  core.Logger
}

var _ core.Notifier = (*service)(nil)

func NewService(repo notif.Repository, usrSvc user.Service, mailSvc core.EmailService, feed realtime.Feed, logger core.Logger) core.Notifier {
	return &service{
		repo:    repo,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		feed:    feed,
		logger:  logger,
	}
}

func (svc *service) Notify(notifs ...*core.Notification) {
	go svc.deliver(notifs)
}

func (svc *service) deliver(notifs []*core.Notification) {
	now := time.Now().UTC()
	toCreate := make([]core.Notification, 0, len(notifs))
	for _, n := range notifs {
		if n == nil || n.Recipient == "" {
			continue
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		toCreate = append(toCreate, *n)
	}
	if len(toCreate) == 0 {
		return
	}

	ctx := context.Background()
	created, err := svc.repo.CreateNotifications(ctx, toCreate...)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("persisting notifications: %v", err), err)
		return
	}

	for _, n := range created {
		if svc.feed != nil {
			ev := realtime.Event{Op: realtime.OpInsert, Family: notif.Family, Scope: n.Recipient, RowID: n.ID}
			if err := svc.feed.Publish(ev); err != nil {
				svc.logger.Error(fmt.Sprintf("publishing notification event: %v", err), err)
			}
		}
		svc.email(ctx, n)
	}
}

func (svc *service) email(ctx context.Context, n core.Notification) {
	if svc.mailSvc == nil || svc.usrSvc == nil {
		return
	}
	usr, err := svc.usrSvc.GetByID(ctx, n.Recipient)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("looking up notification recipient %s: %v", n.Recipient, err), err)
		return
	}
	if usr.Email == "" || !usr.IsActive {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: n.Title,
		BodyStr: n.Message,
	})
}
