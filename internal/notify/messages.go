package notify

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Message is a rendered plain-text notification.
type Message struct {
	Subject string
	Body    string
}

// Messages renders the account notifications. BaseURL is the public address
// links in the mail point to.
type Messages struct {
	BaseURL string
}

func (m Messages) link(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return strings.TrimRight(m.BaseURL, "/") + "/" + strings.Join(escaped, "/")
}

func (m Messages) Activation(username, code string) Message {
	return Message{
		Subject: "Confirmation mail",
		Body: fmt.Sprintf("Hello %s,\n\nconfirm your email by opening the link below:\n%s\n",
			username, m.link("auth", "confirm", code)),
	}
}

func (m Messages) ResendActivation(username, code string) Message {
	msg := m.Activation(username, code)
	msg.Subject = "New confirmation mail"
	return msg
}

func (m Messages) PasswordReset(username, token string, ttl time.Duration) Message {
	return Message{
		Subject: "Forget password",
		Body: fmt.Sprintf("Hello %s,\n\nuse the link below to choose a new password. It is valid for %s.\n%s\n\n"+
			"If you did not ask for a reset, ignore this mail.\n",
			username, ttl, m.link("auth", "reset-password", token)),
	}
}

func (m Messages) PasswordOTP(username, code string, ttl time.Duration) Message {
	return Message{
		Subject: "Forget password OTP",
		Body: fmt.Sprintf("Hello %s,\n\nyour one-time code is %s. It is valid for %s.\n\n"+
			"If you did not ask for a reset, ignore this mail.\n",
			username, code, ttl),
	}
}

func (m Messages) AccountRecovery(username, token string, deadline time.Time) Message {
	return Message{
		Subject: "Account recovery - action required",
		Body: fmt.Sprintf("Hello %s,\n\nyour account was deactivated and will be removed permanently on %s.\n"+
			"To restore it, open the link below before that date:\n%s\n",
			username, deadline.UTC().Format(time.RFC1123), m.link("user", "recover", token)),
	}
}
