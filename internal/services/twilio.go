package services

import (
	"fmt"
	"log"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// MessageSender delivers outbound messages to a user. The session
// orchestrator and the check-in trigger only know this interface; the
// Twilio implementation below is the production transport.
type MessageSender interface {
	SendMessage(phone, text string) error
}

// TwilioService sends WhatsApp messages via Twilio
type TwilioService struct {
	client *twilio.RestClient
	from   string // Twilio WhatsApp number, format "whatsapp:+14155238886"
}

var twilioServiceInstance *TwilioService

// SetTwilioService sets the global twilio service instance
func SetTwilioService(ts *TwilioService) {
	twilioServiceInstance = ts
}

// GetTwilioService returns the global twilio service instance
func GetTwilioService() *TwilioService {
	return twilioServiceInstance
}

// NewTwilioService creates a new Twilio service instance
func NewTwilioService() (*TwilioService, error) {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	from := os.Getenv("TWILIO_WHATSAPP_FROM")

	if accountSid == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials in environment variables")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	return &TwilioService{
		client: client,
		from:   from,
	}, nil
}

// SendMessage sends a WhatsApp message via Twilio
func (t *TwilioService) SendMessage(phone, text string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(fmt.Sprintf("whatsapp:%s", phone))
	params.SetBody(text)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		log.Printf("❌ Failed to send WhatsApp message: %v", err)
		return err
	}

	log.Printf("✅ WhatsApp message sent! SID: %s", *resp.Sid)
	return nil
}
