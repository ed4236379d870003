package donation

import "fmt"

// StoreError is an error body returned by a remote store (PostgREST). Code is
// the SQLSTATE or PGRST code it reports.
type StoreError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Hint       string `json:"hint,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *StoreError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}
