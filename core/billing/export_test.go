package billing

// SetReminderTemplate swaps the reminder email template until the returned func is called.
func SetReminderTemplate(name string) (restore func()) {
	prev := reminderTemplate
	reminderTemplate = name
	return func() { reminderTemplate = prev }
}
