// Package wizard drives the ten-step application flow: gated navigation over
// anonymous drafts, and the one-shot migration that turns those drafts into
// a submitted application once the user signs in.
package wizard

import (
	"boldx.dev/intake/internal/draft"
	"boldx.dev/intake/internal/intake"
	"boldx.dev/intake/internal/validate"
)

// Controller tracks the anonymous wizard position. Steps are 0-indexed.
// Forward movement requires the current step to validate; jumping ahead is
// allowed only up to one past the highest step completed so far.
type Controller struct {
	drafts           *draft.Store
	current          int
	highestCompleted int
	errors           []string
}

// NewController restores progress from the stored drafts, so a returning
// visitor resumes where their data actually supports resuming.
func NewController(drafts *draft.Store) *Controller {
	c := &Controller{drafts: drafts, highestCompleted: -1}
	c.highestCompleted = c.restoreProgress()
	return c
}

// Current returns the 0-indexed active step.
func (c *Controller) Current() int { return c.current }

// CurrentSection describes the active step.
func (c *Controller) CurrentSection() intake.SectionInfo { return intake.Sections[c.current] }

// HighestCompleted returns the watermark step index, -1 when nothing is
// complete yet.
func (c *Controller) HighestCompleted() int { return c.highestCompleted }

// Errors returns the validation messages from the last blocked move.
func (c *Controller) Errors() []string { return c.errors }

// validateStep runs the step's validator against its draft. The documents
// step always passes anonymously: files only upload after sign-in.
func (c *Controller) validateStep(idx int) []string {
	key := intake.Sections[idx].Key
	if key == intake.SectionDocuments {
		return nil
	}
	return validate.ForSection(key, c.drafts.Data(key), nil)
}

// Next advances one step if the current step validates. A blocked move
// leaves the position unchanged and exposes the messages through Errors.
func (c *Controller) Next() bool {
	if c.current >= len(intake.Sections)-1 {
		return false
	}
	if errs := c.validateStep(c.current); len(errs) > 0 {
		c.errors = errs
		return false
	}
	c.errors = nil
	if c.current > c.highestCompleted {
		c.highestCompleted = c.current
	}
	c.current++
	return true
}

// Prev moves one step back. Backward movement is never gated.
func (c *Controller) Prev() bool {
	if c.current == 0 {
		return false
	}
	c.errors = nil
	c.current--
	return true
}

// GoTo jumps to a step. Backward jumps and the current step are always
// allowed; forward jumps only up to one past the watermark. Locked steps
// are ignored.
func (c *Controller) GoTo(idx int) bool {
	if idx < 0 || idx >= len(intake.Sections) {
		return false
	}
	if idx <= c.current || idx <= c.highestCompleted+1 {
		c.errors = nil
		c.current = idx
		return true
	}
	return false
}

// SubmitReady validates the summary step, the precondition for showing the
// sign-in prompt. Nil means ready.
func (c *Controller) SubmitReady() []string {
	return c.validateStep(len(intake.Sections) - 1)
}

// restoreProgress finds the highest step where every step up to it holds
// data that validates. The scan stops at the first incomplete step.
func (c *Controller) restoreProgress() int {
	highest := -1
	for i, info := range intake.Sections {
		if info.Key == intake.SectionDocuments {
			highest = i
			continue
		}
		data := c.drafts.Data(info.Key)
		if len(data) > 0 && len(validate.ForSection(info.Key, data, nil)) == 0 {
			highest = i
		} else {
			break
		}
	}
	return highest
}
