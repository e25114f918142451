// Package fakeprompter provides a test fake for ports.PasswordPrompter.
package fakeprompter

import "sync"

// Prompter returns canned answers and records the questions asked.
type Prompter struct {
	mu sync.Mutex

	// Answer is returned by Password.
	Answer string
	// Confirmed is returned by Confirm.
	Confirmed bool
	// Err, when set, is returned by every call.
	Err error

	titles []string
}

// New returns a fake that answers Password with answer.
func New(answer string) *Prompter {
	return &Prompter{Answer: answer, Confirmed: true}
}

// Password records the title and returns Answer.
func (p *Prompter) Password(title, description string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.titles = append(p.titles, title)
	if p.Err != nil {
		return "", p.Err
	}
	return p.Answer, nil
}

// Confirm records the title and returns Confirmed.
func (p *Prompter) Confirm(title string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.titles = append(p.titles, title)
	if p.Err != nil {
		return false, p.Err
	}
	return p.Confirmed, nil
}

// Titles returns the prompts shown so far.
func (p *Prompter) Titles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.titles...)
}
