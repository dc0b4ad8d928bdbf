package notification

import "errors"

var (
	ErrRecipientRequired = errors.New("recipient email is required")
	ErrTransportDisabled = errors.New("email transport is not configured")
)
