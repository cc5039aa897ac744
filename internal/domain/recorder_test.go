package domain

import "sync"

type sent struct {
	roomID  string
	msg     *Message
	exclude string
}

type recorder struct {
	mu   sync.Mutex
	sent []sent
}

func (r *recorder) Broadcast(roomID string, msg *Message, excludeUserID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, sent{roomID: roomID, msg: msg, exclude: excludeUserID})
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = nil
}

func (r *recorder) all() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]sent(nil), r.sent...)
}

func (r *recorder) actions() []string {
	var out []string
	for _, s := range r.all() {
		if a, ok := s.msg.Payload.(VideoAction); ok {
			out = append(out, a.Action)
		}
	}

	return out
}
