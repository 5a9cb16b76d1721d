package services

import (
	"context"
	"fmt"
	"time"

	"pear/internal/models"
)

// MessageProvider supplies the human-readable text for a status.
type MessageProvider interface {
	StatusMessage(ctx context.Context, status models.OrderStatus) (string, error)
}

// TextGenerator produces free text from a prompt.
type TextGenerator interface {
	Enabled() bool
	Generate(ctx context.Context, prompt string) (string, error)
}

const genericStatusMessage = "Your order status has been updated."

// PlacedMessage is the text of the initial update of an order.
func PlacedMessage(orderID string) string {
	return fmt.Sprintf("Your order #%s has been successfully placed. We're getting it ready for you.", orderID)
}

// FallbackMessage is the text used when no provider message is available.
func FallbackMessage(status models.OrderStatus) string {
	return fmt.Sprintf("Your order is now: %s. We'll notify you of the next steps.", status)
}

// LocalMessageProvider returns deterministic messages after a fixed latency.
type LocalMessageProvider struct {
	latency time.Duration
}

// NewLocalMessageProvider creates a LocalMessageProvider.
func NewLocalMessageProvider(latency time.Duration) *LocalMessageProvider {
	return &LocalMessageProvider{latency: latency}
}

func (p *LocalMessageProvider) StatusMessage(ctx context.Context, status models.OrderStatus) (string, error) {
	if p.latency > 0 {
		if err := sleepContext(ctx, p.latency); err != nil {
			return "", err
		}
	}
	return FallbackMessage(status), nil
}

var statusPrompts = map[models.OrderStatus]string{
	models.StatusProcessing: "Write a friendly, reassuring message confirming that a customer's phone order is now being processed.",
	models.StatusPackaged:   "Write an exciting message that a customer's phone order has been carefully packaged and is ready for shipment.",
	models.StatusShipped:    "Write a professional message informing a customer that their phone order has been shipped and is on its way. Mention that tracking details will be available soon.",
	models.StatusDelivered:  "Write a cheerful and welcoming message confirming that a customer's new phone has been delivered. Encourage them to enjoy their new device.",
}

// RemoteMessageProvider asks a text generator for status messages.
// When the generator is disabled it answers with FallbackMessage.
type RemoteMessageProvider struct {
	gen TextGenerator
}

// NewRemoteMessageProvider creates a RemoteMessageProvider.
func NewRemoteMessageProvider(gen TextGenerator) *RemoteMessageProvider {
	return &RemoteMessageProvider{gen: gen}
}

func (p *RemoteMessageProvider) StatusMessage(ctx context.Context, status models.OrderStatus) (string, error) {
	if p.gen == nil || !p.gen.Enabled() {
		return FallbackMessage(status), nil
	}
	prompt, ok := statusPrompts[status]
	if !ok {
		return genericStatusMessage, nil
	}
	text, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		return "", &ProviderError{Status: status, Err: err}
	}
	return text, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
