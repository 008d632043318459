package telephony

import "context"

// TwilioSynthesizer speaks via <Say> TwiML and reports completion when
// the trailing Redirect hits the voice webhook again. It satisfies the
// tts.Synthesizer contract: Speak returns only after playback finished
// (or ctx expired, e.g. the call died mid-utterance).
type TwilioSynthesizer struct {
	Dialer Dialer
	Waiter *PlaybackWaiter
}

func (s *TwilioSynthesizer) Speak(ctx context.Context, callID, text string) error {
	// Register before sending so a fast webhook cannot race the wait.
	ch := s.Waiter.Expect(callID)
	if err := s.Dialer.Say(ctx, callID, text); err != nil {
		s.Waiter.Drop(callID)
		return err
	}
	return s.Waiter.Await(ctx, callID, ch)
}
