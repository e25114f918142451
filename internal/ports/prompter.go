package ports

// PasswordPrompter abstracts interactive secret entry.
// Implementations may use a TUI form or a test fake.
type PasswordPrompter interface {
	// Password asks the user for a secret. The input is not echoed.
	Password(title, description string) (string, error)

	// Confirm asks a yes/no question.
	Confirm(title string) (bool, error)
}
