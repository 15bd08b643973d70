package filesaga

// Close stops accepting new calls and waits for in-flight calls to finish.
//
// The stores are owned by the caller and are not closed. Calling Close more
// than once is safe.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.inFlight.Wait()
	return nil
}

// enter registers an in-flight call. It returns false once Close has started.
func (s *Service) enter() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	s.inFlight.Add(1)
	return true
}

func (s *Service) leave() {
	s.inFlight.Done()
}
