package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type templateData struct {
	Subject  string
	Intro    string
	Purpose  string
	Fallback string
}

func intentTemplate(intent Intent, code string) templateData {
	switch intent {
	case IntentVerify:
		return templateData{
			Subject:  "Verify your Linkup Account",
			Intro:    "Verify your Linkup Account",
			Purpose:  "Use the code below to verify your Linkup account. This code is valid for a limited time only.",
			Fallback: fmt.Sprintf("Your Linkup verification code is: %s\n\nIf you did not request this code, please ignore this email.", code),
		}
	case IntentForgotPassword:
		return templateData{
			Subject:  "Reset your Linkup Password",
			Intro:    "Password Reset Code",
			Purpose:  "Use the code below to reset your Linkup account password. This code is valid for a limited time only.",
			Fallback: fmt.Sprintf("Your Linkup password reset code is: %s\n\nIf you did not request a password reset, please ignore this email.", code),
		}
	default:
		return templateData{
			Subject:  "Your Linkup OTP Code",
			Intro:    "Your One-Time Passcode (OTP)",
			Purpose:  "Use the code below to complete your operation. This code is valid for a limited time only.",
			Fallback: fmt.Sprintf("Your OTP code is: %s\n\nIf you did not request this code, please ignore this email.", code),
		}
	}
}

var otpHTML = template.Must(template.New("otp").Parse(`<div style="font-family: Arial, sans-serif; max-width:400px; margin:auto; padding:24px;">
  <h2 style="color:#2e3a59; margin:0 0 16px 0;">{{.Intro}}</h2>
  <p style="font-size:16px; color:#333;">{{.Purpose}}</p>
  <div style="font-size:2.2em; letter-spacing:8px; text-align:center; font-family:'Courier New', monospace; margin:24px 0;">{{.Code}}</div>
  <p style="font-size:14px; color:#6b7280;">This code expires in {{.ExpiryMinutes}} minutes. If you didn't request this code, you can safely ignore this email.</p>
  <div style="font-size:12px; color:#9ca3af; text-align:center;">&copy; {{.Year}} Linkup</div>
</div>
`))

// formatPurpose turns "password_reset" into "Password Reset".
func formatPurpose(purpose string) string {
	p := strings.ReplaceAll(purpose, "_", " ")
	return cases.Title(language.English).String(p)
}

// RenderOTP builds the email for intent carrying code. ttl is quoted to the
// reader in whole minutes.
func RenderOTP(to string, intent Intent, code string, ttl time.Duration) (Message, error) {
	data := intentTemplate(intent, code)
	minutes := int(ttl.Minutes())

	var html bytes.Buffer
	err := otpHTML.Execute(&html, struct {
		templateData
		Code          string
		ExpiryMinutes int
		Year          int
	}{data, code, minutes, time.Now().Year()})
	if err != nil {
		return Message{}, fmt.Errorf("render %s email: %w", intent, err)
	}

	text := fmt.Sprintf("%s\n\nYour code for %s is valid for %d minutes.",
		data.Fallback, formatPurpose(intent.purpose()), minutes)

	return Message{
		To:      to,
		Subject: data.Subject,
		HTML:    html.String(),
		Text:    text,
	}, nil
}
