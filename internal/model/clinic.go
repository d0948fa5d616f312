// internal/model/clinic.go
package model

// Clinic is the tenant. WhatsApp credentials are scoped per clinic; a
// clinic without an API key is skipped by every trigger, not failed.
type Clinic struct {
	ID               string `db:"id" json:"id"`
	Name             string `db:"name" json:"name"`
	Timezone         string `db:"timezone" json:"timezone"`
	WhatsAppAPIKey   string `db:"whatsapp_api_key" json:"-"`
	WhatsAppSender   string `db:"whatsapp_sender" json:"whatsapp_sender"`
	RemindersEnabled bool   `db:"reminders_enabled" json:"reminders_enabled"`
	ReminderLeadHrs  int    `db:"reminder_lead_hours" json:"reminder_lead_hours"`
}

// HasCredentials reports whether the clinic can send WhatsApp messages.
func (c *Clinic) HasCredentials() bool {
	return c.WhatsAppAPIKey != "" && c.WhatsAppSender != ""
}
