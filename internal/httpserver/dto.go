package httpserver

// reason strings are stable policy states the UI keys messages off, distinct
// from generic errors.
type Reason struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func reasonResponse(reason, message string) Reason {
	return Reason{Reason: reason, Message: message}
}

type UnlockResponse struct {
	Unlocked   bool   `json:"unlocked"`
	ClearInput bool   `json:"clear_input"`
	Message    string `json:"message,omitempty"`
}

type SessionStatus struct {
	SignedIn      bool   `json:"signed_in"`
	State         string `json:"state"`
	ExpiredNotice bool   `json:"expired_notice"`
	Redirect      string `json:"redirect,omitempty"`
}
