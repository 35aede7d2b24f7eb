package models

// SQSTriggerMessageBody is the trigger-queue message format. An external
// time-based scheduler (EventBridge) delivers one of these per cadence tick.
type SQSTriggerMessageBody struct {
	Action string `json:"action"` // "RUN_CYCLE"
	Source string `json:"source,omitempty"`
}

// BookChangeEvent is the CDC-style book upsert event consumed from Kafka.
// Only the fields the dispatcher cares about are decoded.
type BookChangeEvent struct {
	Payload struct {
		Operation string `json:"op"` // "c", "u", "d", "r"
		After     struct {
			ID              string `json:"id"`
			UserID          string `json:"user_id"`
			ReminderEnabled bool   `json:"reminder_enabled"`
		} `json:"after"`
	} `json:"payload"`
}
