package adapter

import (
	"net/http"

	"github.com/akolanti/PageIndexAPI/internal/api"
	"github.com/akolanti/PageIndexAPI/internal/pageindex"
)

// ToErrorResponse maps a service error onto the status code and body the
// HTTP API returns. Server-side failures do not leak their cause.
func ToErrorResponse(id string, err error) (int, api.JobResponse) {
	code, retry := pageindex.StatusFor(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		message = "Internal Server Error"
	}
	res := BadRequest(id, message, code)
	res.Error.Retry = retry
	return code, res
}
