// internal/evaluation/submission.go
package evaluation

import "github.com/oklog/ulid/v2"

// NewSubmissionID returns a sortable id for one form submission. It tags log
// lines and lets front ends drop messages from superseded submissions.
func NewSubmissionID() string {
	return ulid.Make().String()
}
