// Copyright © 2025 Benjamin Schmitz

// This file is part of Nimbus.

// Nimbus is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License
// as published by the Free Software Foundation,
// either version 3 of the License, or (at your option)
// any later version.

// Nimbus is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public License
// along with Nimbus.  If not, see <http://www.gnu.org/licenses/>.

package users

import (
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/spf13/viper"
	"umbasa.net/nimbus/logging"
)

// Mailer delivers verification codes for the password reset flow.
type Mailer interface {
	Send(to string, subject string, body string) error
}

func NewMailer(v *viper.Viper, logger *logging.Logger) Mailer {
	v.SetDefault("smtp.port", 587)

	host := v.GetString("smtp.host")
	if host == "" {
		return &logMailer{log: logger.GetLogger("mailer")}
	}

	return &smtpMailer{
		addr:     fmt.Sprintf("%s:%d", host, v.GetInt("smtp.port")),
		from:     v.GetString("smtp.from"),
		auth:     smtp.PlainAuth("", v.GetString("smtp.user"), v.GetString("smtp.password"), host),
		withAuth: v.GetString("smtp.user") != "",
	}
}

type smtpMailer struct {
	addr     string
	from     string
	auth     smtp.Auth
	withAuth bool
}

func (m *smtpMailer) Send(to string, subject string, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.from, to, subject, body)
	var auth smtp.Auth
	if m.withAuth {
		auth = m.auth
	}
	return smtp.SendMail(m.addr, auth, m.from, []string{to}, []byte(msg))
}

// logMailer is used when no smtp host is configured. The code still
// appears in the server log so the flow remains usable in development.
type logMailer struct {
	log *slog.Logger
}

func (m *logMailer) Send(to string, subject string, body string) error {
	m.log.Info("mail delivery skipped: no smtp host configured", "to", to, "subject", subject, "body", body)
	return nil
}
