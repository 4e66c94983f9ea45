package client

import "fmt"

// GraphQLError reports a failed GraphQL request with enough context to
// diagnose which query and variables were involved.
type GraphQLError struct {
	QueryName string
	Variables map[string]any
	Status    int
	Err       error
}

func (e *GraphQLError) Error() string {
	msg := fmt.Sprintf("graphql query %s failed", e.QueryName)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Variables) > 0 {
		msg = fmt.Sprintf("%s, variables %v", msg, e.Variables)
	}
	return msg
}

func (e *GraphQLError) Unwrap() error { return e.Err }

// DownloadError reports a failed asset fetch. A 404 is not a DownloadError;
// it is an expected outcome modeled as a plain result value.
type DownloadError struct {
	URL    string
	Status int
	Err    error
}

func (e *DownloadError) Error() string {
	msg := fmt.Sprintf("failed to download %s", e.URL)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DownloadError) Unwrap() error { return e.Err }
