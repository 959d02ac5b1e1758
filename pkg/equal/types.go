package equal

import "fmt"

// APIError is a non-2xx answer of the backend.
type APIError struct {
	URL    string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed (url: %s, status: %d): %s", e.URL, e.Status, e.Body)
}
