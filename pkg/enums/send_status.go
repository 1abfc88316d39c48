package enums

// SendStatus records the outcome written to the email send history.
type SendStatus string

const (
	SendStatusSent   SendStatus = "SEND"
	SendStatusFailed SendStatus = "FAILED"
)
