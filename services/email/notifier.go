package emailsvc

import (
	"fmt"
	"net/mail"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/change"
	"github.com/trezcool/darasa/core/reconcile"
)

// AddressResolver maps a requesting editor's username to a mailbox.
// Unknown editors simply get no mail.
type AddressResolver func(username string) (mail.Address, bool)

// resolutionNotifier emails the editor who submitted a change request once its
// resolution comes through. Pending counts are on-screen badges, not mail;
// they are ignored here.
type resolutionNotifier struct {
	emailSvc core.EmailService
	resolve  AddressResolver
}

var _ reconcile.Notifier = (*resolutionNotifier)(nil)

func NewResolutionNotifier(emailSvc core.EmailService, resolve AddressResolver) reconcile.Notifier {
	return &resolutionNotifier{emailSvc: emailSvc, resolve: resolve}
}

func (n *resolutionNotifier) PendingCount(mt change.ModelType, count int) {}

func (n *resolutionNotifier) ResolutionAlert(res reconcile.Resolution) {
	addr, ok := n.resolve(res.Request.RequestedBy)
	if !ok {
		return
	}

	req := res.Request
	verb := "approved"
	if res.Outcome == change.StatusRejected {
		verb = "rejected"
	}
	body := fmt.Sprintf("Your change request was %s.\n\n%s\n\n%s",
		verb, req.Summary(), change.DiffSummary(req.OldData, req.NewData))
	if req.Notes != "" {
		body += "\nReviewer notes: " + req.Notes + "\n"
	}

	n.emailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{addr},
		Subject: fmt.Sprintf("Change request #%d %s", req.ID, verb),
		BodyStr: body,
	})
}
