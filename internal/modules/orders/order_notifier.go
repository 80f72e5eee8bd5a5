package orders

import (
	"context"
	"fmt"

	"laundry-pickup/internal/models"
	"laundry-pickup/pkg/email"
)

// ContactLookup returns where to reach a customer.
type ContactLookup interface {
	Contact(ctx context.Context, userID string) (emailAddr, name string, err error)
}

// EmailNotifier mails the customer on every order change.
type EmailNotifier struct {
	sender    email.ServiceInterface
	templates *email.TemplateManager
	contacts  ContactLookup
	baseURL   string
}

func NewEmailNotifier(sender email.ServiceInterface, templates *email.TemplateManager, contacts ContactLookup, baseURL string) *EmailNotifier {
	return &EmailNotifier{sender: sender, templates: templates, contacts: contacts, baseURL: baseURL}
}

var statusTitles = map[models.OrderStatus]string{
	models.StatusPending:   "We received your order",
	models.StatusAccepted:  "A driver accepted your order",
	models.StatusPickingUp: "Your driver is on the way",
	models.StatusWashing:   "Your laundry is being washed",
	models.StatusReturning: "Your laundry is on its way back",
	models.StatusDelivered: "Your laundry was delivered",
	models.StatusRejected:  "We are looking for another driver",
	models.StatusCancelled: "Your order was cancelled",
}

func (n *EmailNotifier) OrderChanged(ctx context.Context, o *models.Order) error {
	to, name, err := n.contacts.Contact(ctx, o.CustomerID)
	if err != nil {
		return fmt.Errorf("notifier.OrderChanged: %w", err)
	}

	title := statusTitles[o.Status]
	data := email.TemplateData{
		Name:        name,
		Link:        fmt.Sprintf("%s/orders/%s", n.baseURL, o.ID),
		OrderID:     o.ID,
		Status:      o.Status.String(),
		PickupSlot:  o.PickupSlot.Display,
		ReturnSlot:  o.ReturnSlot.Display,
		FinalPrice:  o.FinalPrice.StringFixed(2),
		StatusTitle: title,
	}
	html, err := n.templates.OrderStatusHTML(data)
	if err != nil {
		return fmt.Errorf("notifier.OrderChanged: %w", err)
	}
	plain := fmt.Sprintf("%s\n\nOrder %s is now %s.\nPickup: %s\nReturn: %s\nTotal: %s EUR\n",
		title, o.ID, o.Status, data.PickupSlot, data.ReturnSlot, data.FinalPrice)

	if err := n.sender.SendEmail(ctx, to, title, plain, html); err != nil {
		return fmt.Errorf("notifier.OrderChanged: %w", err)
	}
	return nil
}
