package notify

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/vinitamart/storefront/internal/domain/otp"
)

// OTPSender mails verification codes synchronously.
type OTPSender struct {
	renderer *Renderer
	sender   Sender
}

var _ otp.CodeSender = (*OTPSender)(nil)

// NewOTPSender creates an OTPSender.
func NewOTPSender(r *Renderer, s Sender) *OTPSender {
	return &OTPSender{renderer: r, sender: s}
}

// SendCode renders and sends the code email.
func (s *OTPSender) SendCode(ctx context.Context, email, code string, ttl time.Duration) error {
	msg, err := s.renderer.RenderOTP(email, code, ttl)
	if err != nil {
		return errors.Wrap(err, "render otp")
	}
	return s.sender.Send(ctx, msg)
}
