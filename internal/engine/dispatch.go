package engine

import (
	"errors"

	"imbridge/internal/candidate"
	"imbridge/internal/im"
	"imbridge/internal/preedit"
	"imbridge/internal/surrounding"
)

// dispatch reacts to one input method callback.
func (s *Session) dispatch(ctx im.Context, kind im.CallbackKind) {
	s.bind(ctx)
	if s.ctx == nil {
		return
	}

	switch kind {
	case im.PreeditStart, im.PreeditDone, im.StatusStart:
		s.host.HidePreeditText()
	case im.PreeditDraw:
		s.updatePreedit()
	case im.StatusDraw:
		s.updateStatus()
	case im.CandidatesStart, im.CandidatesDone:
		s.host.HideLookupTable()
		s.host.HideAuxiliaryText()
	case im.CandidatesDraw:
		s.updateCandidates()
	case im.GetSurroundingText:
		s.getSurrounding()
	case im.DeleteSurroundingText:
		s.deleteSurrounding()
	case im.StatusDone, im.SetSpot, im.Toggle:
	default:
		s.logger.Debug("unknown callback", "kind", kind)
	}
}

// updatePreedit shows the current preedit with the class style. An empty
// preedit is sent invisible.
func (s *Session) updatePreedit() {
	if s.ctx == nil {
		return
	}
	run := preedit.Project(s.ctx.Preedit(), s.ctx.CursorPos(), s.class.Style())
	s.host.UpdatePreeditText(run)
}

func (s *Session) updateStatus() {
	status := s.ctx.Status()
	if status != "" && status != s.class.Title() {
		s.status.Label = status
		s.status.Visible = true
	} else {
		s.status.Label = ""
		s.status.Visible = false
	}
	s.host.UpdateProperty(s.status)
}

func (s *Session) updateCandidates() {
	if !s.ctx.CandidatesShown() {
		s.hideCandidates()
		return
	}

	page, err := candidate.Locate(s.ctx.Candidates(), s.ctx.CandidateIndex())
	if err != nil {
		s.hideCandidates()
		return
	}
	if page.Clamped {
		s.logger.Warn("candidate index outside list",
			"index", s.ctx.CandidateIndex(), "candidates", s.ctx.Candidates().Len())
	}

	s.host.UpdateLookupTable(page.Table(s.class.Style().Orientation), true)
	s.host.UpdateAuxiliaryText(page.Label(), true)
}

func (s *Session) hideCandidates() {
	s.host.HideLookupTable()
	s.host.HideAuxiliaryText()
}

func (s *Session) getSurrounding() {
	if s.host.Capabilities()&CapSurroundingText == 0 {
		return
	}

	text, cursor, _ := s.host.SurroundingText()
	excerpt, err := surrounding.Excerpt(text, cursor, s.ctx.SurroundingRequest())
	if err != nil {
		if errors.Is(err, surrounding.ErrInvalidText) {
			s.logger.Warn("abandoning surrounding text request", "error", err)
		}
		return
	}
	s.ctx.SetSurroundingText(excerpt)
}

func (s *Session) deleteSurrounding() {
	if s.host.Capabilities()&CapSurroundingText == 0 {
		return
	}

	if d, ok := surrounding.Delete(s.ctx.SurroundingRequest()); ok {
		s.host.DeleteSurroundingText(d.Offset, d.Count)
	}
}
