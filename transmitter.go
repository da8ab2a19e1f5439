package serialmon

import "fmt"

// LineTerminator ends every transmitted line.
const LineTerminator = "\r\n"

// Send writes text followed by CR+LF. A failure is reported as an error
// event and returned; the session stays usable.
func (s *Session) Send(text string) error {
	s.mu.Lock()
	port := s.port
	state := s.state
	s.mu.Unlock()

	if port == nil || (state != StateConnected && state != StateMonitoring) {
		return s.sendFailed(ErrNotConnected)
	}
	if _, err := port.Write([]byte(text + LineTerminator)); err != nil {
		return s.sendFailed(err)
	}
	s.sent.Add(1)
	s.emit(KindSend, text)
	return nil
}

func (s *Session) sendFailed(err error) error {
	s.log.Debug().Err(err).Msg("send failed")
	s.emit(KindError, fmt.Sprintf("Send error: %v", err))
	return fmt.Errorf("%w: %w", ErrSend, err)
}
