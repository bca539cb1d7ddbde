package jobqueue

import (
	"context"
	"fmt"

	"github.com/ManuelReschke/ScriptHub/internal/pkg/mail"
)

// NewSendEmailHandler delivers queued messages through mailer.
func NewSendEmailHandler(mailer mail.Mailer) Handler {
	return func(ctx context.Context, job *Job) error {
		payload, err := SendEmailJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("decode send_email payload: %w", err)
		}
		if payload.To == "" {
			return fmt.Errorf("send_email job %s has no recipient", job.ID)
		}
		return mailer.Send(payload.Message())
	}
}
