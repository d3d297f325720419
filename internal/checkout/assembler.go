package checkout

import (
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/money"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// OrderInput is what the checkout form submits on top of the resolved
// cart snapshot.
type OrderInput struct {
	UserID        string `validate:"required"`
	Customer      domain.CustomerInfo
	Cart          domain.Cart          `validate:"required,min=1"`
	PaymentMethod domain.PaymentMethod `validate:"oneof=BANKING COD"`
}

type customerRules struct {
	Name    string `validate:"max=200"`
	Email   string `validate:"omitempty,email"`
	Phone   string `validate:"max=32"`
	Address string `validate:"required,max=500"`
}

// Quote is the money breakdown shown on the checkout screen.
type Quote struct {
	Subtotal    money.VND
	ShippingFee money.VND
	FinalAmount money.VND
}

type Assembler struct {
	classifier Classifier
	shipping   ShippingPolicy
	validate   *validator.Validate
	now        func() time.Time
}

func NewAssembler(classifier Classifier, shipping ShippingPolicy) *Assembler {
	if classifier == nil {
		classifier = ProductIDClassifier{}
	}
	if shipping == nil {
		shipping = FlatRate(DefaultShippingFee)
	}
	return &Assembler{
		classifier: classifier,
		shipping:   shipping,
		validate:   validator.New(),
		now:        time.Now,
	}
}

func (a *Assembler) Quote(snap *Snapshot) Quote {
	fee := a.shipping.Fee(snap.Cart, snap.Subtotal)
	return Quote{
		Subtotal:    snap.Subtotal,
		ShippingFee: fee,
		FinalAmount: ComputeFinal(snap.Subtotal, fee),
	}
}

// AssembleOrder builds a new processing order from the form input. The
// customer info is copied, so later profile edits never reach the order.
func (a *Assembler) AssembleOrder(in OrderInput) (*domain.OrderRecord, error) {
	const op = "assemble order"

	in.Customer = trimCustomer(in.Customer)
	if in.PaymentMethod == "" {
		in.PaymentMethod = domain.PaymentCOD
	}

	if err := a.validate.Struct(in); err != nil {
		return nil, apperr.Validation(op, err)
	}
	if err := a.validate.Struct(customerRules(in.Customer)); err != nil {
		return nil, apperr.Validation(op, err)
	}

	subtotal, err := cart.ComputeTotal(in.Cart)
	if err != nil {
		return nil, err
	}
	fee := a.shipping.Fee(in.Cart, subtotal)

	items := make([]domain.OrderItem, 0, len(in.Cart))
	for _, line := range in.Cart {
		items = append(items, domain.OrderItem{CartLine: line, Type: a.classifier.Classify(line)})
	}

	now := a.now()
	return &domain.OrderRecord{
		ID:            newOrderID(now),
		UserID:        in.UserID,
		CustomerInfo:  in.Customer,
		Items:         items,
		TotalAmount:   money.Format(subtotal),
		ShippingFee:   money.Format(fee),
		FinalAmount:   money.Format(ComputeFinal(subtotal, fee)),
		PaymentMethod: in.PaymentMethod,
		Status:        domain.OrderStatusProcessing,
		OrderDate:     now,
	}, nil
}

// PrefillCustomer fills blank contact fields from the user's profile.
func PrefillCustomer(c domain.CustomerInfo, profile domain.UserProfile) domain.CustomerInfo {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = profile.FullName
	}
	if strings.TrimSpace(c.Email) == "" {
		c.Email = profile.Email
	}
	if strings.TrimSpace(c.Phone) == "" {
		c.Phone = profile.PhoneNumber
	}
	return c
}

func trimCustomer(c domain.CustomerInfo) domain.CustomerInfo {
	return domain.CustomerInfo{
		Name:    strings.TrimSpace(c.Name),
		Email:   strings.TrimSpace(c.Email),
		Phone:   strings.TrimSpace(c.Phone),
		Address: strings.TrimSpace(c.Address),
	}
}

// newOrderID is "<unix millis>-<random>", sortable by creation time.
func newOrderID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), strings.SplitN(uuid.NewString(), "-", 2)[0])
}
